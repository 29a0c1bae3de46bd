package rewriter

import (
	"net/url"
	"strings"
	"testing"
)

const (
	testProxyBase = "https://video.example.com/v1/video"
	testBaseURL   = "https://cdn.example.com/lectures/l1/index.m3u8"
	testSegment   = "seg0.ts"
)

// testProxy mimics the signed proxy URL without a real signature.
func testProxy(target string) string {
	return testProxyBase + "?url=" + url.QueryEscape(target) + "&sig=x"
}

func TestRewriteM3U8_CommentsAndEmptyLinesPassThrough(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-VERSION:3\n\n#EXT-X-ENDLIST"
	got := RewriteM3U8(body, testBaseURL, testProxy)
	if got != body {
		t.Fatalf("expected comments/empty lines unchanged\nwant: %q\ngot:  %q", body, got)
	}
}

func TestRewriteM3U8_RelativeSegmentResolvedAndProxied(t *testing.T) {
	got := RewriteM3U8("#EXTM3U\nseg0.ts", testBaseURL, testProxy)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	want := testProxy("https://cdn.example.com/lectures/l1/seg0.ts")
	if lines[1] != want {
		t.Fatalf("want %q, got %q", want, lines[1])
	}
}

func TestRewriteM3U8_AbsoluteSegmentStillProxied(t *testing.T) {
	got := RewriteM3U8("#EXTM3U\nhttps://other.cdn.net/l1/seg0.ts", testBaseURL, testProxy)
	lines := strings.Split(got, "\n")
	if lines[1] != testProxy("https://other.cdn.net/l1/seg0.ts") {
		t.Fatalf("absolute URL should be forwarded to proxy: %q", lines[1])
	}
}

func TestRewriteM3U8_URITagRewritten(t *testing.T) {
	body := `#EXT-X-KEY:METHOD=AES-128,URI="key.bin",IV=0x1`
	got := RewriteM3U8(body, testBaseURL, testProxy)
	if !strings.Contains(got, `URI="`+testProxy("https://cdn.example.com/lectures/l1/key.bin")+`"`) {
		t.Fatalf("URI= tag value should be rewritten to proxy URL: %q", got)
	}
	if !strings.HasSuffix(got, ",IV=0x1") {
		t.Fatalf("rest of the tag should survive: %q", got)
	}
}

func TestRewriteM3U8_MultiSegmentPlaylist(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-VERSION:3\nseg0.ts\nseg1.ts\nseg2.ts\n#EXT-X-ENDLIST"
	got := RewriteM3U8(body, testBaseURL, testProxy)
	lines := strings.Split(got, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d", len(lines))
	}
	for _, i := range []int{2, 3, 4} {
		if !strings.HasPrefix(lines[i], testProxyBase) {
			t.Fatalf("line %d should be a proxied URL: %q", i, lines[i])
		}
	}
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		ct, url string
		want    bool
	}{
		{"application/vnd.apple.mpegurl", "https://cdn/x", true},
		{"audio/x-mpegURL", "https://cdn/x", true},
		{"application/octet-stream", "https://cdn/l1/index.m3u8?v=2", true},
		{"video/mp4", "https://cdn/l1/video.mp4", false},
	}
	for _, tt := range tests {
		if got := IsPlaylist(tt.ct, tt.url); got != tt.want {
			t.Fatalf("IsPlaylist(%q, %q) = %v, want %v", tt.ct, tt.url, got, tt.want)
		}
	}
}

func TestResolveURL_AbsoluteURLUnchanged(t *testing.T) {
	got := resolveURL(testBaseURL, "https://cdn.net/seg.ts")
	if got != "https://cdn.net/seg.ts" {
		t.Fatalf("absolute URL should pass through unchanged: %q", got)
	}
}

func TestResolveURL_RelativePath(t *testing.T) {
	got := resolveURL(testBaseURL, testSegment)
	want := "https://cdn.example.com/lectures/l1/seg0.ts"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestResolveURL_AbsolutePath(t *testing.T) {
	got := resolveURL(testBaseURL, "/hls/seg0.ts")
	want := "https://cdn.example.com/hls/seg0.ts"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
