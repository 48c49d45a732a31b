// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/law-makers/pagefetch/internal/cache"
	"github.com/law-makers/pagefetch/internal/config"
	"github.com/law-makers/pagefetch/internal/engine"
	"github.com/law-makers/pagefetch/internal/engine/batch"
	"github.com/law-makers/pagefetch/internal/engine/dynamic"
	"github.com/law-makers/pagefetch/internal/engine/hybrid"
	"github.com/law-makers/pagefetch/internal/engine/static"
	"github.com/law-makers/pagefetch/internal/extract"
	"github.com/law-makers/pagefetch/internal/metrics"
	"github.com/law-makers/pagefetch/internal/policy"
	"github.com/law-makers/pagefetch/internal/ratelimit"
	"github.com/law-makers/pagefetch/internal/session"
	"github.com/law-makers/pagefetch/internal/utils/headers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var newSessionStore = session.NewStore

// logOutput is where the application logger writes
var logOutput io.Writer = os.Stderr

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands. Nothing
// expensive happens in New: the browser is launched by Startup or by the
// first render. Use Close() to release resources on shutdown.
type Application struct {
	Config       *config.Config
	Logger       *zerolog.Logger
	Cache        *cache.DiskCache
	Policy       *policy.DomainPolicy
	Static       *static.Fetcher
	Renderer     *dynamic.Renderer
	Extractor    *extract.Readable
	Metrics      *metrics.Collector
	Orchestrator *engine.Orchestrator
	Batch        *batch.Runner

	sessionsMu sync.Mutex
	sessions   session.Store

	metricsServer *http.Server
	startTime     time.Time
}

// New creates and wires a new Application from cfg.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogging(cfg, logOutput)
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	a := &Application{
		Config:    cfg,
		Logger:    &logger,
		Policy:    policy.New(cfg.Domains),
		Extractor: extract.New(extract.Options{Format: extract.ParseFormat(cfg.ExtractFormat)}),
		Metrics:   metrics.New(),
		startTime: time.Now(),
	}

	cookies, hdrs := cfg.Cookies, cfg.Headers
	if cfg.Session != "" {
		store, err := a.Sessions()
		if err != nil {
			return nil, err
		}
		sess, err := store.Load(cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %q: %w", cfg.Session, err)
		}
		cookies = append(append(cookies[:0:0], sess.Cookies...), cfg.Cookies...)
		hdrs = headers.Merge(sess.Headers, cfg.Headers)
		logger.Debug().
			Str("session", sess.Name).
			Int("cookies", len(sess.Cookies)).
			Msg("Session loaded")
	}

	if cfg.CacheEnabled {
		c, err := cache.NewDiskCache(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		a.Cache = c
	}

	staticOpts := static.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
		Proxy:     cfg.Proxy,
		Retries:   cfg.Retries,
		Headers:   hdrs,
		Cookies:   cookies,
	}
	if limiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst); limiter != nil {
		staticOpts.Limiter = limiter
		logger.Debug().
			Float64("rps", cfg.RateLimitRPS).
			Int("burst", cfg.RateLimitBurst).
			Msg("Rate limiter initialized")
	}
	a.Static = static.New(staticOpts)

	mode := hybrid.ParseRenderMode(cfg.RenderMode)
	if mode != hybrid.RenderNever {
		a.Renderer = dynamic.New(dynamic.Options{
			MaxConcurrency: cfg.RenderConcurrency,
			Timeout:        cfg.RenderTimeout(),
			WaitUntil:      dynamic.WaitCondition(cfg.WaitUntil),
			UserAgent:      cfg.UserAgent,
			Proxy:          cfg.Proxy,
			Headers:        hdrs,
			Cookies:        cookies,
			Rules:          cfg.SiteRules,
			SettleDelay:    cfg.SettleDelay,
			ScreenshotDir:  cfg.ScreenshotDir,
			Headful:        !cfg.Headless,
			ChromePath:     cfg.ChromePath,
		})
	}

	orchOpts := engine.Options{
		Policy:             a.Policy,
		Static:             a.Static,
		Extract:            a.Extractor.Extract,
		RenderMode:         mode,
		MinRenderedTextLen: cfg.MinRenderedTextLen,
		Metrics:            a.Metrics,
	}
	// Interface fields stay nil when the component is disabled.
	if a.Cache != nil {
		orchOpts.Cache = a.Cache
	}
	if a.Renderer != nil {
		orchOpts.Renderer = a.Renderer
	}
	a.Orchestrator = engine.New(orchOpts)
	a.Batch = batch.New(a.Orchestrator, cfg.BatchConcurrency)

	logger.Debug().
		Str("render_mode", mode.String()).
		Bool("renderer", a.Renderer != nil).
		Bool("cache", a.Cache != nil).
		Int("batch_concurrency", a.Batch.Concurrency()).
		Msg("Pipeline initialized")

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}

	logger.Info().Msg("Application initialized successfully")
	return a, nil
}

// setupLogging configures the global zerolog logger and returns it
func setupLogging(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// Startup prepares the fetch pipeline. A browser that fails to launch is
// logged and the static path stays available.
func (a *Application) Startup(ctx context.Context) error {
	err := a.Orchestrator.Startup(ctx)
	var ee *engine.EngineError
	if errors.As(err, &ee) && ee.Code == engine.ErrCodeRenderFailed {
		a.Logger.Warn().Err(err).Msg("Renderer unavailable, continuing with static fetches only")
		return nil
	}
	return err
}

// Sessions returns the session store, creating it on first use
func (a *Application) Sessions() (session.Store, error) {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()

	if a.sessions != nil {
		return a.sessions, nil
	}
	store, err := newSessionStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	a.sessions = store
	return store, nil
}

func (a *Application) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	a.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Close gracefully shuts down the application and all its resources.
//
// It stops the metrics server, then closes the browser and the static
// client. A context with a timeout should be provided to bound the metrics
// server shutdown.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	var firstErr error
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Error stopping metrics server")
			firstErr = err
		}
	}

	a.Orchestrator.Shutdown()

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return firstErr
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
