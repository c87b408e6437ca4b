package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"camoproxy-go/internal/httperr"
	"camoproxy-go/internal/pipeline"
	"camoproxy-go/internal/security"
)

// ProxyHandler serves the signed image-fetch route by running the pipeline
// state machine and translating its outcome into an HTTP response.
type ProxyHandler struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(p *pipeline.Pipeline, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		pipeline: p,
		logger:   logger.With("component", "proxy_handler"),
	}
}

// Handle runs the pipeline for the inbound request and writes the result.
// Only GET and HEAD are accepted (§6.6); everything else is a 405 decided
// here, before the pipeline ever sees the request.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return h.writeError(c, httperr.New(http.StatusMethodNotAllowed, "Method not allowed"))
	}

	out, err := h.pipeline.Run(req.Context(), req.Method, req.URL.Path, req.Header)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The client is already gone; writing a response here would
			// just error out on a closed socket (§4.8, §7).
			return nil
		}
		return h.writeError(c, err)
	}

	return h.writeOutcome(c, out)
}

func (h *ProxyHandler) writeOutcome(c echo.Context, out *pipeline.Outcome) error {
	resp := c.Response()
	applySecurityHeaders(resp.Header())
	for key, vals := range out.Headers {
		for _, v := range vals {
			resp.Header().Add(key, v)
		}
	}
	resp.WriteHeader(out.Status)
	if out.Body != nil {
		_, _ = resp.Write(out.Body)
	}
	return nil
}

// writeError emits a ClientVisibleError verbatim, or logs and emits a
// generic 500 for anything else (§7).
func (h *ProxyHandler) writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "Internal server error"

	if ce, ok := httperr.AsClientError(err); ok {
		status = ce.Status
		message = ce.Message
	} else {
		h.logger.Error("internal proxy error", "err", err, "path", c.Request().URL.Path)
	}

	resp := c.Response()
	applySecurityHeaders(resp.Header())
	body := []byte(message)
	resp.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	resp.Header().Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
	resp.WriteHeader(status)
	_, _ = resp.Write(body)
	return nil
}

func applySecurityHeaders(h http.Header) {
	for k, v := range security.Headers {
		h.Set(k, v)
	}
}
