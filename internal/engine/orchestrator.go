// internal/engine/orchestrator.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/law-makers/pagefetch/internal/cache"
	"github.com/law-makers/pagefetch/internal/engine/dynamic"
	"github.com/law-makers/pagefetch/internal/engine/hybrid"
	"github.com/law-makers/pagefetch/internal/engine/static"
	"github.com/law-makers/pagefetch/internal/metrics"
	"github.com/law-makers/pagefetch/internal/policy"
	"github.com/law-makers/pagefetch/internal/reqctx"
	"github.com/law-makers/pagefetch/pkg/models"
)

// DefaultMinRenderedTextLen is how much rendered text is needed before it
// replaces the static extraction
const DefaultMinRenderedTextLen = 100

// StaticFetcher performs the cheap HTTP fetch
type StaticFetcher interface {
	Start() error
	Close()
	Fetch(ctx context.Context, rawURL string) (*static.Response, error)
}

// Renderer loads a page in a browser
type Renderer interface {
	Start(ctx context.Context) error
	Close()
	RenderExtract(ctx context.Context, rawURL string, wantScreenshot bool) (*dynamic.RenderOutput, error)
}

// ExtractFunc turns HTML into a title and readable text
type ExtractFunc func(html, pageURL string) (title, text string)

// Options wires an Orchestrator. Policy, Cache, Renderer and Metrics may be nil.
type Options struct {
	Policy             *policy.DomainPolicy
	Cache              cache.Cache
	Static             StaticFetcher
	Renderer           Renderer
	Extract            ExtractFunc
	RenderMode         hybrid.RenderMode
	MinRenderedTextLen int
	Metrics            *metrics.Collector
}

// Orchestrator runs the fetch pipeline for one URL at a time: policy check,
// cache lookup, static fetch, optional render, cache write.
type Orchestrator struct {
	opts Options

	mu      sync.Mutex
	started bool
}

// New creates an Orchestrator
func New(opts Options) *Orchestrator {
	if opts.RenderMode == "" {
		opts.RenderMode = hybrid.RenderAuto
	}
	if opts.MinRenderedTextLen <= 0 {
		opts.MinRenderedTextLen = DefaultMinRenderedTextLen
	}
	if opts.Extract == nil {
		opts.Extract = func(string, string) (string, string) { return "", "" }
	}
	return &Orchestrator{opts: opts}
}

// HasRenderer reports whether a renderer is configured
func (o *Orchestrator) HasRenderer() bool {
	return o.opts.Renderer != nil
}

// Startup prepares the static fetcher and the renderer. Calling it twice is
// a no-op. A renderer that fails to start is reported but the static path
// stays usable.
func (o *Orchestrator) Startup(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return nil
	}
	if o.opts.Static == nil {
		return ErrNoStaticFetcher
	}

	if err := o.opts.Static.Start(); err != nil {
		return fmt.Errorf("failed to start static fetcher: %w", err)
	}

	var renderErr error
	if o.opts.Renderer != nil {
		if err := o.opts.Renderer.Start(ctx); err != nil {
			renderErr = NewEngineError(ErrCodeRenderFailed, "failed to start renderer", fmt.Errorf("%w: %w", ErrRendererUnavailable, err))
		}
	}

	o.started = true
	return renderErr
}

// Shutdown releases the static fetcher and the renderer. It may be called
// more than once.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.opts.Static != nil {
		o.opts.Static.Close()
	}
	if o.opts.Renderer != nil {
		o.opts.Renderer.Close()
	}
	o.started = false
}

// FetchAndExtract fetches rawURL and returns its readable text. It never
// returns an error or panics: every failure is reported in the result's
// Error field with StatusCode 0.
func (o *Orchestrator) FetchAndExtract(ctx context.Context, rawURL string, needScreenshot bool) (result *models.FetchResult) {
	ctx, call := reqctx.With(ctx, rawURL)
	logger := reqctx.Logger(ctx)
	defer o.opts.Metrics.TrackActive()()

	outcome := metrics.OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			err := NewEngineError(ErrCodeInternal, "unexpected failure", fmt.Errorf("%v", r))
			logger.Error().Interface("panic", r).Msg("Fetch pipeline panicked")
			result = failure(rawURL, err)
			outcome = metrics.OutcomeFailed
		}
		o.opts.Metrics.ObserveFetch(outcome, result.UsedRenderer, call.Elapsed())
	}()

	if !o.opts.Policy.IsAllowed(rawURL) {
		logger.Info().Msg("URL blocked by domain policy")
		outcome = metrics.OutcomeBlocked
		return failure(rawURL, NewEngineError(ErrCodeBlocked, ErrBlocked.Error(), nil))
	}

	cacheKey := cache.Key(rawURL)
	if o.opts.Cache != nil && !needScreenshot {
		cached, ok := o.opts.Cache.Get(cacheKey)
		o.opts.Metrics.ObserveCacheLookup(ok)
		if ok {
			logger.Debug().Msg("Cache hit")
			outcome = metrics.OutcomeCached
			return cached
		}
	}

	result, err := o.run(ctx, rawURL, needScreenshot)
	if err != nil {
		logger.Warn().Err(err).Str("code", string(classify(err, ErrCodeNetworkError))).Msg("Fetch failed")
		outcome = metrics.OutcomeFailed
		return failure(rawURL, err)
	}

	if o.opts.Cache != nil && !result.HasScreenshot() && !result.Failed() {
		if err := o.opts.Cache.Set(cacheKey, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to write cache entry")
		}
	}

	logger.Info().
		Int("status", result.StatusCode).
		Int("text_len", len(result.Text)).
		Bool("rendered", result.UsedRenderer).
		Dur("elapsed", call.Elapsed()).
		Msg("Fetch completed")

	return result
}

// run performs the static fetch and the optional render pass
func (o *Orchestrator) run(ctx context.Context, rawURL string, needScreenshot bool) (*models.FetchResult, error) {
	logger := reqctx.Logger(ctx)

	if o.opts.Static == nil {
		return nil, NewEngineError(ErrCodeInternal, "static fetch unavailable", ErrNoStaticFetcher)
	}
	resp, err := o.opts.Static.Fetch(ctx, rawURL)
	if err != nil {
		return nil, NewEngineError(classify(err, ErrCodeNetworkError), "static fetch failed", err).WithRetry()
	}

	title, text := o.opts.Extract(resp.HTML, resp.FinalURL)
	result := &models.FetchResult{
		URL:        rawURL,
		FinalURL:   resp.FinalURL,
		StatusCode: resp.StatusCode,
		Title:      title,
		Text:       text,
	}

	decision := hybrid.Decide(o.opts.Renderer != nil, o.opts.RenderMode, needScreenshot, resp.HTML)
	logger.Debug().Bool("render", decision.Render).Str("reason", decision.Reason).Msg("Render decision")
	if !decision.Render {
		return result, nil
	}

	o.render(ctx, result, needScreenshot)
	return result, nil
}

// render runs the browser on the final URL and merges its output into
// result. Render failures keep the static result.
func (o *Orchestrator) render(ctx context.Context, result *models.FetchResult, needScreenshot bool) {
	logger := reqctx.Logger(ctx)

	out, err := o.opts.Renderer.RenderExtract(ctx, result.FinalURL, needScreenshot)
	if err != nil {
		logger.Warn().Err(err).Str("code", string(classify(err, ErrCodeRenderFailed))).Msg("Render failed, keeping static result")
		o.opts.Metrics.ObserveRender(metrics.RenderFailed)
		return
	}

	if out.ScreenshotPath != "" {
		result.ScreenshotPath = out.ScreenshotPath
	}

	if strings.TrimSpace(out.HTML) == "" {
		logger.Debug().Err(ErrEmptyRender).Msg("Discarding rendered page")
		o.opts.Metrics.ObserveRender(metrics.RenderDiscarded)
		return
	}

	_, renderedText := o.opts.Extract(out.HTML, result.FinalURL)
	if !o.adopt(result.Text, renderedText) {
		logger.Debug().Int("rendered_len", len(renderedText)).Msg("Rendered text too short, keeping static text")
		o.opts.Metrics.ObserveRender(metrics.RenderDiscarded)
		return
	}

	result.Text = renderedText
	result.UsedRenderer = true
	if out.Title != "" {
		result.Title = out.Title
	}
	o.opts.Metrics.ObserveRender(metrics.RenderAdopted)
}

// adopt decides whether rendered text replaces the static text. Lengths are
// counted in characters.
func (o *Orchestrator) adopt(staticText, renderedText string) bool {
	if utf8.RuneCountInString(renderedText) > o.opts.MinRenderedTextLen {
		return true
	}
	return staticText == "" && renderedText != ""
}

// failure builds the terminal result for a call that produced nothing
func failure(rawURL string, err error) *models.FetchResult {
	reason := err.Error()
	var ee *EngineError
	if errors.As(err, &ee) {
		reason = ee.Reason()
	}
	return &models.FetchResult{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: 0,
		Error:      reason,
	}
}
