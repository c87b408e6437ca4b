// Package pipeline implements the pure core of the request-handler state
// machine (§4.6): split path, verify HMAC, SSRF-validate, fetch, and
// build the outcome the HTTP layer writes out. It has no dependency on
// any HTTP framework so it is exercised directly in tests, the way the
// teacher's internal/service sits underneath internal/handler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"camoproxy-go/internal/codec"
	"camoproxy-go/internal/fetch"
	"camoproxy-go/internal/httperr"
	"camoproxy-go/internal/metrics"
	"camoproxy-go/internal/security"
)

// Validator re-runs the SSRF check (§4.4) against a URL. Wire it to
// ssrf.Validate in production; tests can substitute a permissive stub to
// exercise the rest of the state machine against httptest servers, which
// necessarily live on loopback addresses a real validator would reject.
type Validator func(ctx context.Context, rawURL string) error

// Outcome is what Run hands back for the HTTP layer to emit. Status 204
// (HEAD success) and 200 (GET success) carry no error; every other case
// is represented by a non-nil error from Run.
type Outcome struct {
	Status  int
	Headers http.Header // already filtered to the response allow-list
	Body    []byte      // nil for HEAD
}

// Pipeline wires together the codec, validator, and fetcher.
type Pipeline struct {
	Secret     []byte
	MaxSize    int64
	ServerName string
	Fetcher    *fetch.Client
	Validate   Validator

	// Metrics is optional. When set, Run records SSRF rejections and
	// bytes served onto it.
	Metrics *metrics.Metrics
}

// Run executes the full state machine for one inbound request (§4.6).
// method must already be known to be GET or HEAD; callers are expected
// to reject other methods before reaching Run (it is a 405, decided
// purely on the inbound request and not worth plumbing through here).
//
// A context cancellation (client disconnect, §4.8) is returned verbatim
// so the caller can recognize it and stay silent rather than writing a
// response to a socket that is already gone.
func (p *Pipeline) Run(ctx context.Context, method, path string, reqHeader http.Header) (*Outcome, error) {
	digest, encodedURL, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	targetURL, err := codec.DecodeSignedURL(p.Secret, digest, encodedURL)
	if err != nil {
		return nil, httperr.New(http.StatusForbidden, "Bad signature")
	}

	if err := p.Validate(ctx, targetURL); err != nil {
		if p.Metrics != nil {
			p.Metrics.SSRFRejections.WithLabelValues(rejectionReason(err)).Inc()
		}
		return nil, err
	}

	filteredReq := security.FilterHeaders(reqHeader, security.RequestHeaderAllowList)

	result, err := p.Fetcher.Fetch(ctx, method, targetURL, filteredReq, p.MaxSize)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if _, ok := httperr.AsClientError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("fetch: %w", err)
	}

	respHeaders := security.FilterHeaders(result.Headers, security.ResponseHeaderAllowList)
	// The proxy buffers the whole body before writing anything, so a
	// Transfer-Encoding copied from upstream would mis-describe the
	// framing of this response (§9 open question).
	respHeaders.Del("Transfer-Encoding")
	respHeaders.Set("Via", p.ServerName)

	if method == http.MethodHead {
		return &Outcome{Status: http.StatusNoContent, Headers: respHeaders}, nil
	}

	if respHeaders.Get("Content-Length") == "" {
		respHeaders.Set("Content-Length", strconv.Itoa(len(result.Body)))
	}
	if p.Metrics != nil {
		p.Metrics.BytesServed.Add(float64(len(result.Body)))
	}
	return &Outcome{Status: http.StatusOK, Headers: respHeaders, Body: result.Body}, nil
}

// rejectionReason maps a validator error to a bounded label. It matches on
// message prefix rather than reusing the message verbatim, since the
// "Bad url host" and "Could not look up host" messages are the stable
// categories but the looked-up hostname itself is not bounded cardinality.
func rejectionReason(err error) string {
	ce, ok := httperr.AsClientError(err)
	if !ok {
		return "error"
	}
	switch {
	case strings.HasPrefix(ce.Message, "Unexpected non-http protocol"):
		return "bad_scheme"
	case strings.HasPrefix(ce.Message, "Could not look up host"):
		return "resolve_failed"
	case ce.Message == "Bad url host":
		return "non_unicast"
	default:
		return "malformed_url"
	}
}

// splitPath implements §4.6's path parsing: split on "/", first segment
// is empty (leading slash), second is the claimed digest, third is the
// hex-encoded URL. Anything shorter is malformed.
func splitPath(path string) (digest, encodedURL string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return "", "", httperr.New(http.StatusNotFound, "Malformed request")
	}
	return parts[1], parts[2], nil
}
