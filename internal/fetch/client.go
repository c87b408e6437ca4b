// Package fetch implements the safe fetcher (§4.5): a manual-redirect
// HTTP client that re-validates every hop against SSRF, enforces the
// image content-type allow-list, and streams the body against a byte
// budget.
//
// Grounded on cactus-go-camo's proxy.go New()/ServeHTTP (custom dialer,
// disabled automatic redirects, per-hop revalidation loop) and
// Kaikei-e-Alt's image_fetch_gateway.go (size-checked streaming read,
// content-type validated before the body is ever read).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"camoproxy-go/internal/httperr"
	"camoproxy-go/internal/metrics"
	"camoproxy-go/internal/security"
)

// Revalidator re-runs the SSRF validator (§4.4) against a redirect
// Location. The fetcher depends on this function type rather than the
// concrete ssrf package so each hop's revalidation is independently
// testable (§4.5 "re-runs (4) on each Location").
type Revalidator func(ctx context.Context, rawURL string) error

// maxRedirectHops is the hard cap on redirects followed per request
// (§4.5, §9 "not explicitly documented... treat it as a hard contract").
const maxRedirectHops = 3

var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true, // 301
	http.StatusFound:             true, // 302
	http.StatusSeeOther:          true, // 303
	http.StatusTemporaryRedirect: true, // 307
	http.StatusPermanentRedirect: true, // 308
}

// Result is what a successful fetch hands back to the caller (§3
// FetchResult). Body is nil for HEAD requests.
type Result struct {
	Body    []byte
	Headers http.Header
}

// Config configures the underlying transport.
type Config struct {
	RequestTimeout  time.Duration
	DialTimeout     time.Duration
	IdleConnections int
}

// Client is a SSRF-safe fetcher.
type Client struct {
	http       *http.Client
	revalidate Revalidator

	// Metrics is optional. When set, Fetch records fetch latency,
	// terminal outcome, and redirect hops followed onto it.
	Metrics *metrics.Metrics
}

// New builds a Client whose transport never follows redirects
// automatically — the Fetch loop below handles that manually so every
// hop can be revalidated. revalidate is called with each redirect
// Location before it is followed; wire it to ssrf.Validate in production.
func New(cfg Config, revalidate Revalidator) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.IdleConnections,
		MaxIdleConnsPerHost: cfg.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		revalidate: revalidate,
	}
}

// Fetch issues method against targetURL (already SSRF-validated by the
// caller for the first hop) and follows up to maxRedirectHops redirects,
// re-validating each Location. It enforces the Content-Type allow-list
// and the maxSize byte budget before returning.
func (c *Client) Fetch(ctx context.Context, method, targetURL string, header http.Header, maxSize int64) (*Result, error) {
	start := time.Now()
	result, err := c.fetch(ctx, method, targetURL, header, maxSize)
	if c.Metrics != nil {
		c.Metrics.FetchDuration.WithLabelValues(metrics.NormalizeMethod(method)).
			Observe(time.Since(start).Seconds())
		c.Metrics.FetchResponses.WithLabelValues(fetchOutcome(err)).Inc()
	}
	return result, err
}

func (c *Client) fetch(ctx context.Context, method, targetURL string, header http.Header, maxSize int64) (*Result, error) {
	current := targetURL

	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, method, current, nil)
		if err != nil {
			return nil, err
		}
		req.Header = header

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, mapTransportError(err)
		}

		if redirectStatuses[resp.StatusCode] && hops < maxRedirectHops {
			rawLocation := resp.Header.Get("Location")
			if rawLocation == "" {
				resp.Body.Close()
				return nil, httperr.New(400,
					"Unexpected missing `Location` header in redirect response by remote server")
			}

			location, err := resp.Location()
			resp.Body.Close()
			if err != nil {
				return nil, httperr.New(400,
					"Unexpected missing `Location` header in redirect response by remote server")
			}

			if err := c.revalidate(ctx, location.String()); err != nil {
				return nil, err
			}

			if c.Metrics != nil {
				c.Metrics.RedirectsFollowed.Inc()
			}
			current = location.String()
			continue
		}

		return c.finish(resp, method, maxSize)
	}
}

// fetchOutcome maps a Fetch error to a bounded outcome label.
func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		if _, ok := httperr.AsClientError(err); ok {
			return "rejected"
		}
		return "error"
	}
}

// finish handles the terminal (non-redirected, or redirect-budget-exhausted)
// response: content-type enforcement, then HEAD short-circuit or
// size-capped body streaming.
func (c *Client) finish(resp *http.Response, method string, maxSize int64) (*Result, error) {
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return nil, httperr.New(400,
			"Unexpected missing `Content-type` header in remote server response")
	}
	if !security.AllowedMimeTypes[strings.ToLower(contentType)] {
		return nil, httperr.New(400,
			"Unexpected non-image `Content-type` in remote server response, "+
				"this might not be an image or it might not be supported by camomile")
	}

	if method == http.MethodHead {
		return &Result{Headers: resp.Header}, nil
	}

	body, err := readLimited(resp.Body, maxSize)
	if err != nil {
		return nil, err
	}

	return &Result{Body: body, Headers: resp.Header}, nil
}

// readLimited streams src in chunks, aborting with a 413 the moment the
// running total would exceed maxSize — no further chunk is read after the
// one that pushes the response over budget (§4.5 point 6, §5 "size-limit
// breach aborts the upstream read immediately").
func readLimited(src io.Reader, maxSize int64) ([]byte, error) {
	const chunkSize = 32 * 1024

	buf := make([]byte, 0, chunkSize)
	chunk := make([]byte, chunkSize)

	for {
		n, err := src.Read(chunk)
		if n > 0 {
			if maxSize > 0 && int64(len(buf)+n) > maxSize {
				return nil, httperr.New(413, "Unexpected too large `Content-Length`")
			}
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// mapTransportError wraps a transport-level failure. Context
// cancellation/deadline errors are passed through unwrapped so the caller
// can distinguish a client disconnect (errors.Is(err, context.Canceled))
// from a genuine upstream failure.
func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("upstream request: %w", err)
}
