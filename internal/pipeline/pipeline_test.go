package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"camoproxy-go/internal/codec"
	"camoproxy-go/internal/fetch"
	"camoproxy-go/internal/httperr"
	"camoproxy-go/internal/metrics"
)

var testSecret = []byte("myVerySecretSecret")

func newTestPipeline() *Pipeline {
	allowAll := func(_ context.Context, _ string) error { return nil }
	return &Pipeline{
		Secret:     testSecret,
		MaxSize:    100 * 1024 * 1024,
		ServerName: "camomile",
		Fetcher: fetch.New(fetch.Config{
			RequestTimeout:  5 * time.Second,
			DialTimeout:     2 * time.Second,
			IdleConnections: 4,
		}, allowAll),
		Validate: allowAll,
	}
}

func signedPath(secret []byte, rawURL string) string {
	digest, encoded := codec.Sign(secret, rawURL)
	return "/" + digest + "/" + encoded
}

func TestRun_MalformedPath(t *testing.T) {
	p := newTestPipeline()
	digest, _ := codec.Sign(testSecret, "http://example.com")
	_, err := p.Run(context.Background(), http.MethodGet, "/"+digest, http.Header{})
	ce, ok := httperr.AsClientError(err)
	if !ok || ce.Status != http.StatusNotFound || ce.Message != "Malformed request" {
		t.Fatalf("err = %v, want 404 Malformed request", err)
	}
}

func TestRun_BadSignature(t *testing.T) {
	p := newTestPipeline()
	_, encoded := codec.Sign([]byte("wrong-secret"), "http://example.com/x.png")
	digest, _ := codec.Sign([]byte("another-wrong-secret"), "http://example.com/x.png")
	_, err := p.Run(context.Background(), http.MethodGet, "/"+digest+"/"+encoded, http.Header{})
	ce, ok := httperr.AsClientError(err)
	if !ok || ce.Status != http.StatusForbidden || ce.Message != "Bad signature" {
		t.Fatalf("err = %v, want 403 Bad signature", err)
	}
}

func TestRun_GetSuccess(t *testing.T) {
	body := strings.Repeat("x", 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := newTestPipeline()
	out, err := p.Run(context.Background(), http.MethodGet, signedPath(testSecret, srv.URL), http.Header{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", out.Status)
	}
	if string(out.Body) != body {
		t.Errorf("body length = %d, want %d", len(out.Body), len(body))
	}
	if out.Headers.Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", out.Headers.Get("Content-Type"))
	}
	if out.Headers.Get("Content-Length") != "1024" {
		t.Errorf("Content-Length = %q, want 1024", out.Headers.Get("Content-Length"))
	}
	if out.Headers.Get("Via") != "camomile" {
		t.Errorf("Via = %q, want camomile", out.Headers.Get("Via"))
	}
	if out.Headers.Get("Server") != "" {
		t.Error("Server header should not be present")
	}
}

func TestRun_HeadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "1024")
	}))
	defer srv.Close()

	p := newTestPipeline()
	out, err := p.Run(context.Background(), http.MethodHead, signedPath(testSecret, srv.URL), http.Header{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", out.Status)
	}
	if out.Body != nil {
		t.Errorf("Body = %v, want nil", out.Body)
	}
	if out.Headers.Get("Content-Length") != "1024" {
		t.Errorf("Content-Length = %q, want 1024", out.Headers.Get("Content-Length"))
	}
}

func TestRun_RequestHeaderFiltering(t *testing.T) {
	var gotXFF, gotCacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotXFF = r.Header.Get("X-Forwarded-For")
		gotCacheControl = r.Header.Get("Cache-Control")
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	p := newTestPipeline()
	reqHeader := http.Header{}
	reqHeader.Set("Cache-Control", "no-cache")
	reqHeader.Set("X-Forwarded-For", "2001:db8::1")

	_, err := p.Run(context.Background(), http.MethodGet, signedPath(testSecret, srv.URL), reqHeader)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotCacheControl != "no-cache" {
		t.Errorf("upstream Cache-Control = %q, want no-cache", gotCacheControl)
	}
	if gotXFF != "" {
		t.Errorf("upstream X-Forwarded-For = %q, want empty", gotXFF)
	}
}

func TestRun_SSRFRejection(t *testing.T) {
	p := newTestPipeline()
	p.Validate = func(_ context.Context, _ string) error {
		return httperr.New(400, "Bad url host")
	}
	_, err := p.Run(context.Background(), http.MethodGet, signedPath(testSecret, "http://169.254.169.254/secret"), http.Header{})
	ce, ok := httperr.AsClientError(err)
	if !ok || ce.Status != 400 || ce.Message != "Bad url host" {
		t.Fatalf("err = %v, want 400 Bad url host", err)
	}
}

func TestRun_RecordsSSRFRejectionMetric(t *testing.T) {
	p := newTestPipeline()
	m := metrics.New()
	p.Metrics = m
	p.Validate = func(_ context.Context, _ string) error {
		return httperr.New(400, "Bad url host")
	}
	_, err := p.Run(context.Background(), http.MethodGet, signedPath(testSecret, "http://169.254.169.254/secret"), http.Header{})
	if err == nil {
		t.Fatal("Run() expected error")
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "camoproxy_ssrf_rejections_total" {
			for _, metric := range f.GetMetric() {
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == "reason" && lp.GetValue() == "non_unicast" && metric.GetCounter().GetValue() == 1 {
						return
					}
				}
			}
		}
	}
	t.Error("expected camoproxy_ssrf_rejections_total reason=non_unicast to be 1")
}

func TestRun_RecordsBytesServedMetric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, 512))
	}))
	defer srv.Close()

	p := newTestPipeline()
	m := metrics.New()
	p.Metrics = m

	if _, err := p.Run(context.Background(), http.MethodGet, signedPath(testSecret, srv.URL), http.Header{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "camoproxy_bytes_served_total" {
			if v := f.GetMetric()[0].GetCounter().GetValue(); v != 512 {
				t.Errorf("camoproxy_bytes_served_total = %v, want 512", v)
			}
			return
		}
	}
	t.Error("expected camoproxy_bytes_served_total metric")
}
