// Package proxy streams lecture video from its origin to learners holding
// a valid signed URL.
package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/video-proxy/internal/rewriter"
)

// maxRedirects matches net/http's default redirect limit.
const maxRedirects = 10

var errForeignRedirect = errors.New("proxy: redirect to a disallowed origin")

// maxPlaylistBytes caps how much of an HLS playlist is buffered for rewriting.
const maxPlaylistBytes = 4 << 20

// forwarded request headers; Range is what lets the player seek an MP4.
var requestHeaders = []string{"Range", "If-Range", "If-None-Match", "If-Modified-Since"}

var responseHeaders = []string{
	"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges",
	"ETag", "Last-Modified", "Cache-Control", "Expires",
}

type Options struct {
	OriginHosts []string
	PublicBase  string
	Logger      *zap.Logger
}

type Handler struct {
	signer     *signing.Signer
	client     *http.Client
	origins    map[string]bool
	publicBase string
	log        *zap.Logger
}

// New copies client so redirects can be held to the origin allow-list.
func New(signer *signing.Signer, client *http.Client, opts Options) *Handler {
	if client == nil {
		client = http.DefaultClient
	}
	h := &Handler{
		signer:     signer,
		publicBase: opts.PublicBase,
		log:        opts.Logger,
	}
	c := *client
	c.CheckRedirect = h.checkRedirect
	h.client = &c
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if len(opts.OriginHosts) > 0 {
		h.origins = make(map[string]bool, len(opts.OriginHosts))
		for _, host := range opts.OriginHosts {
			h.origins[strings.ToLower(host)] = true
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	signed, err := signing.ExtractProxied(r.URL.Query())
	if err != nil {
		api.Forbidden(w, api.CodeForbidden, "Video link is invalid.", rid)
		return
	}
	if !h.signer.Verify(signed.URL, signed.UID, signed.Exp, signed.Sig) {
		api.Forbidden(w, api.CodeForbidden, "Video link has expired.", rid)
		return
	}
	target, err := url.Parse(signed.URL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		api.BadRequest(w, api.CodeInvalidInput, "Video link is invalid.", rid, nil)
		return
	}
	if !h.allowed(target) {
		api.Forbidden(w, api.CodeForbidden, "Video origin is not allowed.", rid)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, signed.URL, nil)
	if err != nil {
		api.BadRequest(w, api.CodeInvalidInput, "Video link is invalid.", rid, nil)
		return
	}
	for _, k := range requestHeaders {
		if v := r.Header.Get(k); v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := h.client.Do(req)
	if errors.Is(err, errForeignRedirect) {
		h.log.Warn("video upstream redirected off the allow-list", zap.String("host", target.Host), zap.String("request_id", rid))
		api.Forbidden(w, api.CodeForbidden, "Video origin is not allowed.", rid)
		return
	}
	if err != nil {
		h.log.Warn("video upstream failed", zap.String("host", target.Host), zap.String("request_id", rid), zap.Error(err))
		api.WriteError(w, http.StatusBadGateway, api.CodeUnavailable, "Video source is unavailable.", rid, nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 && rewriter.IsPlaylist(resp.Header.Get("Content-Type"), signed.URL) {
		h.servePlaylist(w, r, resp, signed)
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		// the learner navigated away mid-stream
		h.log.Debug("video stream interrupted", zap.String("request_id", rid), zap.Error(err))
	}
}

func (h *Handler) allowed(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return h.origins == nil || h.origins[strings.ToLower(u.Hostname())]
}

func (h *Handler) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("proxy: stopped after 10 redirects")
	}
	if !h.allowed(req.URL) {
		return errForeignRedirect
	}
	return nil
}

func (h *Handler) servePlaylist(w http.ResponseWriter, r *http.Request, resp *http.Response, parent signing.Signed) {
	rid := httpserver.RequestIDFromContext(r.Context())
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		api.WriteError(w, http.StatusBadGateway, api.CodeUnavailable, "Video source is unavailable.", rid, nil)
		return
	}

	base := h.base(r)
	exp := time.Unix(parent.Exp, 0)
	body := rewriter.RewriteM3U8(string(data), parent.URL, func(target string) string {
		u, err := signing.BuildProxyURL(base, h.signer.Sign(target, parent.UID, exp))
		if err != nil {
			return target
		}
		return u
	})

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/vnd.apple.mpegurl"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, body)
	}
}

// base is the URL rewritten playlist entries point at.
func (h *Handler) base(r *http.Request) string {
	if h.publicBase != "" {
		return h.publicBase
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func copyHeaders(dst, src http.Header) {
	for _, k := range responseHeaders {
		if v := src.Values(k); len(v) > 0 {
			dst[k] = v
		}
	}
}
