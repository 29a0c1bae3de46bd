// Package signing issues short-lived, per-user video URLs so a lecture's
// video locator is only playable by the enrolled learner it was handed to.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Signer struct {
	Secret []byte
	Now    func() time.Time
}

type Signed struct {
	URL string
	Exp int64
	UID string
	Sig string
}

func New(secret string) *Signer {
	return &Signer{Secret: []byte(secret), Now: time.Now}
}

func (s *Signer) Sign(videoURL, userID string, exp time.Time) Signed {
	sig := s.signValue(videoURL, userID, exp.Unix())
	return Signed{URL: videoURL, Exp: exp.Unix(), UID: userID, Sig: sig}
}

func (s *Signer) Verify(videoURL, userID string, exp int64, sig string) bool {
	if s.now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.signValue(videoURL, userID, exp)))
}

func (s *Signer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Signer) signValue(videoURL, userID string, exp int64) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(videoURL))
	mac.Write([]byte("|"))
	mac.Write([]byte(userID))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SignedURL appends exp/uid/sig to videoURL, keeping any query it already has.
func (s *Signer) SignedURL(videoURL, userID string, ttl time.Duration) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}
	signed := s.Sign(stripSignature(u), userID, s.now().Add(ttl))
	q := u.Query()
	q.Set("exp", strconv.FormatInt(signed.Exp, 10))
	q.Set("uid", signed.UID)
	q.Set("sig", signed.Sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerifyURL checks a URL produced by SignedURL.
func (s *Signer) VerifyURL(signedURL string) (string, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	uid := strings.TrimSpace(q.Get("uid"))
	expStr := strings.TrimSpace(q.Get("exp"))
	sig := strings.TrimSpace(q.Get("sig"))
	if uid == "" || expStr == "" || sig == "" {
		return "", fmt.Errorf("missing signed params")
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", err
	}
	if !s.Verify(stripSignature(u), uid, exp, sig) {
		return "", fmt.Errorf("invalid or expired signature")
	}
	return uid, nil
}

func stripSignature(u *url.URL) string {
	c := *u
	q := c.Query()
	q.Del("exp")
	q.Del("uid")
	q.Del("sig")
	c.RawQuery = q.Encode()
	return c.String()
}

// ProxyURL signs videoURL for userID and returns it as a request to the
// video proxy at proxyBase, which verifies the signature before streaming.
func (s *Signer) ProxyURL(proxyBase, videoURL, userID string, ttl time.Duration) (string, error) {
	return BuildProxyURL(proxyBase, s.Sign(videoURL, userID, s.now().Add(ttl)))
}

// BuildProxyURL encodes signed as url/exp/uid/sig query params on base.
func BuildProxyURL(base string, signed Signed) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("url", signed.URL)
	q.Set("exp", strconv.FormatInt(signed.Exp, 10))
	q.Set("uid", signed.UID)
	q.Set("sig", signed.Sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractProxied reads the params written by BuildProxyURL. It does not
// verify the signature.
func ExtractProxied(query url.Values) (Signed, error) {
	rawURL := strings.TrimSpace(query.Get("url"))
	uid := strings.TrimSpace(query.Get("uid"))
	expStr := strings.TrimSpace(query.Get("exp"))
	sig := strings.TrimSpace(query.Get("sig"))
	if rawURL == "" || uid == "" || expStr == "" || sig == "" {
		return Signed{}, fmt.Errorf("missing signed params")
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return Signed{}, fmt.Errorf("exp: %w", err)
	}
	return Signed{URL: rawURL, Exp: exp, UID: uid, Sig: sig}, nil
}
