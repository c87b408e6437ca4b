package security

import (
	"net/http"
	"testing"
)

func TestFilterHeaders_OnlyAllowListed(t *testing.T) {
	src := http.Header{}
	src.Set("Cache-Control", "no-cache")
	src.Set("X-Forwarded-For", "2001:db8::1")
	src.Set("Accept", "image/*")

	got := FilterHeaders(src, RequestHeaderAllowList)

	if got.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", got.Get("Cache-Control"), "no-cache")
	}
	if got.Get("Accept") != "image/*" {
		t.Errorf("Accept = %q, want %q", got.Get("Accept"), "image/*")
	}
	if _, ok := got["X-Forwarded-For"]; ok {
		t.Error("X-Forwarded-For should not be forwarded")
	}
	if _, ok := got["Accept-Encoding"]; ok {
		t.Error("Accept-Encoding should not be forwarded")
	}
}

func TestFilterHeaders_CanonicalCasingRegardlessOfSource(t *testing.T) {
	src := make(http.Header)
	// http.Header always canonicalizes on Set/Add, but simulate an
	// ingress stack that lowercases everything by writing the map directly.
	src["etag"] = []string{`"abc123"`}

	got := FilterHeaders(src, ResponseHeaderAllowList)

	// The lowercase key in src does not match the canonical "Etag" key
	// FilterHeaders looks up, which is the whole point: the filter never
	// trusts source casing.
	if _, ok := got["ETag"]; ok {
		t.Error("non-canonical source key should not be matched")
	}

	src2 := make(http.Header)
	src2.Set("etag", `"abc123"`) // Set canonicalizes to "Etag"
	got2 := FilterHeaders(src2, ResponseHeaderAllowList)
	if got2.Get("ETag") != `"abc123"` {
		t.Errorf("ETag = %q, want %q", got2.Get("ETag"), `"abc123"`)
	}
}

func TestFilterHeaders_EmptyOutputForNoMatches(t *testing.T) {
	src := http.Header{}
	src.Set("X-Custom", "value")

	got := FilterHeaders(src, RequestHeaderAllowList)
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}

func TestSecurityHeaders_AllFivePresent(t *testing.T) {
	want := []string{
		"X-Frame-Options",
		"X-XSS-Protection",
		"X-Content-Type-Options",
		"Content-Security-Policy",
		"Strict-Transport-Security",
	}
	for _, h := range want {
		if _, ok := Headers[h]; !ok {
			t.Errorf("Headers missing %q", h)
		}
	}
	if len(Headers) != len(want) {
		t.Errorf("len(Headers) = %d, want %d", len(Headers), len(want))
	}
}

func TestAllowedMimeTypes_ExactMatch(t *testing.T) {
	if !AllowedMimeTypes["image/png"] {
		t.Error("image/png should be allowed")
	}
	if AllowedMimeTypes["image/png; charset=utf-8"] {
		t.Error("parameterized content-type should not match")
	}
	if AllowedMimeTypes["text/html"] {
		t.Error("text/html should not be allowed")
	}
}
