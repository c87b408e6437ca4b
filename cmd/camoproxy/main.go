package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/fx"

	"camoproxy-go/internal/config"
	"camoproxy-go/internal/fetch"
	"camoproxy-go/internal/handler"
	"camoproxy-go/internal/metrics"
	"camoproxy-go/internal/pipeline"
	"camoproxy-go/internal/server"
	"camoproxy-go/internal/ssrf"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("camoproxy"),
		kong.Description("SSRF-safe signed-URL image proxy."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newValidator,
			newFetcher,
			newPipeline,
			server.New,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(warnConfigPermissions, server.Attach, server.Listen),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newValidator binds the SSRF guard (§4.4) to the real DNS resolver. It is
// injected as a function value into both the fetcher's per-hop revalidation
// and the pipeline's first-hop check, rather than handing either package a
// concrete dependency on internal/ssrf.
func newValidator() pipeline.Validator {
	return func(ctx context.Context, rawURL string) error {
		_, err := ssrf.Validate(ctx, ssrf.DefaultResolver, rawURL)
		return err
	}
}

func newFetcher(cfg *config.Config, validate pipeline.Validator, m *metrics.Metrics) *fetch.Client {
	c := fetch.New(fetch.Config{
		RequestTimeout:  time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		DialTimeout:     time.Duration(cfg.Upstream.DialTimeoutMS) * time.Millisecond,
		IdleConnections: cfg.Upstream.IdleConnections,
	}, fetch.Revalidator(validate))
	c.Metrics = m
	return c
}

func newPipeline(cfg *config.Config, fetcher *fetch.Client, validate pipeline.Validator, m *metrics.Metrics) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Secret:     cfg.SecretBytes(),
		MaxSize:    cfg.MaxSize,
		ServerName: cfg.Via,
		Fetcher:    fetcher,
		Validate:   validate,
		Metrics:    m,
	}
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}
