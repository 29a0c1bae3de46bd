// Package rewriter points every URI in an HLS playlist back at the video
// proxy so segments and variant playlists are fetched with a signature too.
package rewriter

import (
	"net/url"
	"path"
	"strings"
)

// ProxyFunc turns an absolute upstream URL into a signed proxy URL.
type ProxyFunc func(target string) string

// IsPlaylist reports whether an upstream response is an HLS playlist.
func IsPlaylist(contentType, upstreamURL string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	if u, err := url.Parse(upstreamURL); err == nil {
		return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
	}
	return false
}

func RewriteM3U8(body, baseURL string, proxy ProxyFunc) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			// tags such as EXT-X-KEY and EXT-X-I-FRAME-STREAM-INF carry URI="..."
			if strings.Contains(trim, "URI=\"") {
				line = rewriteURITag(line, baseURL, proxy)
			}
			out = append(out, line)
			continue
		}
		out = append(out, proxy(resolveURL(baseURL, trim)))
	}
	return strings.Join(out, "\n")
}

func rewriteURITag(line, baseURL string, proxy ProxyFunc) string {
	start := strings.Index(line, "URI=\"")
	if start == -1 {
		return line
	}
	start += len("URI=\"")
	end := strings.Index(line[start:], "\"")
	if end == -1 {
		return line
	}
	uri := line[start : start+end]
	return line[:start] + proxy(resolveURL(baseURL, uri)) + line[start+end:]
}

func resolveURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		base.Path = ref
		base.RawQuery = ""
		return base.String()
	}
	base.Path = path.Join(path.Dir(base.Path), ref)
	base.RawQuery = ""
	return base.String()
}
