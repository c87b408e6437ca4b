// Package server provides the process-level façade described in §4.7: a
// constructor that fails fast when the proxy is misconfigured, router
// wiring, and a bind-and-serve lifecycle hook. It is the teacher's
// newEcho/startServer pair pulled out of main into a reusable package.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"camoproxy-go/internal/config"
	"camoproxy-go/internal/handler"
	"camoproxy-go/internal/metrics"
	"camoproxy-go/internal/middleware"
)

// New builds the Echo instance with the proxy's inbound middleware chain.
// It fails fast if the configured secret is empty — every signature check
// downstream depends on it being non-trivial (§4.7, §8 invariant 1).
func New(cfg *config.Config, logger *slog.Logger) (*echo.Echo, error) {
	if len(cfg.SecretBytes()) == 0 {
		return nil, fmt.Errorf("server: Expected `secret` in options")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0): the proxy buffers the whole upstream
	// body before writing, so a valid large image shouldn't be cut off by
	// an inbound write deadline. The upstream client timeout and maxSize
	// budget (internal/fetch) bound how long that buffering can take.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())

	return e, nil
}

// Attach wires the metrics collector middleware, the Prometheus scrape
// endpoint, and all route handlers onto the Echo instance.
func Attach(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *handler.ProxyHandler, health *handler.HealthHandler) {
	e.Use(middleware.MetricsMiddleware(m))

	handler.RegisterRoutes(e, proxy, health)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(
			promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		))
	}
}

// Listen registers the bind/serve/shutdown lifecycle hooks with fx.
func Listen(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
