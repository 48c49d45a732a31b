// internal/engine/dynamic/renderer.go
package dynamic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxConcurrency = 2
	DefaultTimeout        = 20 * time.Second
	DefaultSettleDelay    = time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720

	// extractGrace is the time left for reading the DOM and capturing a
	// screenshot once navigation has used its full timeout
	extractGrace = 10 * time.Second
)

// ErrClosed is returned by RenderExtract after Close
var ErrClosed = errors.New("renderer is closed")

// Options configures a Renderer
type Options struct {
	MaxConcurrency int
	Timeout        time.Duration
	WaitUntil      WaitCondition
	UserAgent      string
	Proxy          string
	Headers        map[string]string
	Cookies        []models.Cookie
	Rules          []models.RenderRule
	SettleDelay    time.Duration
	ViewportWidth  int
	ViewportHeight int
	ScreenshotDir  string
	// Headful shows the browser window. The zero value runs headless.
	Headful    bool
	ChromePath string
}

// RenderOutput is what a render pass hands back for extraction
type RenderOutput struct {
	Title          string
	HTML           string
	ScreenshotPath string
	FinalURL       string
	StatusCode     int
}

// Renderer drives one long-lived headless browser. Each call gets its own
// isolated browser context; a semaphore bounds how many run at once.
type Renderer struct {
	opts Options
	sem  chan struct{}

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closed        bool
}

// New creates a Renderer. The browser is launched by Start or lazily by the
// first RenderExtract.
func New(opts Options) *Renderer {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if _, ok := ParseWaitCondition(string(opts.WaitUntil)); !ok {
		opts.WaitUntil = WaitNetworkIdle
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = DefaultViewportWidth, DefaultViewportHeight
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = os.TempDir()
	}
	opts.Proxy = strings.TrimSpace(opts.Proxy)

	return &Renderer{
		opts: opts,
		sem:  make(chan struct{}, opts.MaxConcurrency),
	}
}

// Name returns the name of this renderer
func (r *Renderer) Name() string {
	return "ChromeRenderer"
}

// Start launches the browser. Calling it while running is a no-op.
func (r *Renderer) Start(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = false
	if r.browserCtx != nil {
		return nil
	}

	opts := r.opts
	if opts.ChromePath == "" {
		path, err := FindChrome()
		if err != nil {
			log.Warn().Err(err).Msg("Falling back to chromedp default browser lookup")
		}
		opts.ChromePath = path
	}

	start := time.Now()
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel

	log.Info().
		Int("max_concurrency", cap(r.sem)).
		Bool("headless", !opts.Headful).
		Dur("elapsed", time.Since(start)).
		Msg("Browser ready")
	return nil
}

// Close shuts the browser down. Calling it again is a no-op.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.browserCtx == nil {
		return
	}
	r.browserCancel()
	r.allocCancel()
	r.browserCtx, r.browserCancel, r.allocCancel = nil, nil, nil

	log.Debug().Msg("Browser closed")
}

func (r *Renderer) browser(ctx context.Context) (context.Context, error) {
	r.mu.Lock()
	closed := r.closed
	browserCtx := r.browserCtx
	r.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if browserCtx != nil {
		return browserCtx, nil
	}
	if err := r.Start(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx == nil {
		return nil, ErrClosed
	}
	return r.browserCtx, nil
}

func (r *Renderer) acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	select {
	case <-r.sem:
	default:
	}
}

// stepOutcome is the result of one render sub-step. A soft failure is
// logged and the render continues; a hard failure aborts the call.
type stepOutcome struct {
	step string
	soft bool
	err  error
}

func (o stepOutcome) ok() bool { return o.err == nil }

func (o stepOutcome) abort() bool { return o.err != nil && !o.soft }

func runStep(ctx context.Context, step string, soft bool, actions ...chromedp.Action) stepOutcome {
	return stepOutcome{step: step, soft: soft, err: chromedp.Run(ctx, actions...)}
}

// RenderExtract loads rawURL in a fresh browser context and returns its title,
// serialized DOM and, when asked, a viewport screenshot path. The caller owns
// the screenshot file.
func (r *Renderer) RenderExtract(ctx context.Context, rawURL string, wantScreenshot bool) (*RenderOutput, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	browserCtx, err := r.browser(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	settings := r.settingsFor(rawURL)
	start := time.Now()

	log.Debug().
		Str("url", rawURL).
		Str("wait_until", string(settings.waitUntil)).
		Str("rule", settings.rule).
		Dur("timeout", settings.timeout).
		Bool("screenshot", wantScreenshot).
		Msg("Starting render")

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, settings.timeout+extractGrace)
	defer cancelRun()
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	watcher := newPageWatcher()
	chromedp.ListenTarget(runCtx, watcher.handle)

	if o := runStep(runCtx, "setup", false, r.setupAction(wantScreenshot)); o.abort() {
		return nil, fmt.Errorf("browser setup failed: %w", o.err)
	}
	if c := chromedp.FromContext(runCtx); c != nil && c.Target != nil {
		watcher.setMainFrame(cdp.FrameID(c.Target.TargetID))
	}

	r.logSoft(rawURL, r.injectCookies(runCtx, rawURL))

	navCtx, cancelNav := context.WithTimeout(runCtx, settings.timeout)
	defer cancelNav()

	if err := r.navigate(navCtx, rawURL, settings.waitUntil, watcher); err != nil {
		return nil, err
	}
	cancelNav()

	r.logSoft(rawURL, r.settle(runCtx, settings))

	out := &RenderOutput{FinalURL: rawURL}

	r.logSoft(rawURL, runStep(runCtx, "title", true, chromedp.Title(&out.Title)))
	r.logSoft(rawURL, runStep(runCtx, "location", true, chromedp.Location(&out.FinalURL)))

	if o := runStep(runCtx, "content", false, chromedp.OuterHTML("html", &out.HTML, chromedp.ByQuery)); o.abort() {
		return nil, fmt.Errorf("failed to read page content: %w", o.err)
	}

	if wantScreenshot {
		path, o := r.screenshot(runCtx)
		r.logSoft(rawURL, o)
		out.ScreenshotPath = path
	}

	out.StatusCode = watcher.statusCode()

	log.Debug().
		Str("url", rawURL).
		Str("final_url", out.FinalURL).
		Int("status", out.StatusCode).
		Int("bytes", len(out.HTML)).
		Bool("screenshot", out.ScreenshotPath != "").
		Dur("elapsed", time.Since(start)).
		Msg("Render completed")

	return out, nil
}

func (r *Renderer) logSoft(rawURL string, o stepOutcome) {
	if o.ok() {
		return
	}
	log.Debug().Err(o.err).Str("url", rawURL).Str("step", o.step).Msg("Render step failed, continuing")
}

func (r *Renderer) setupAction(wantScreenshot bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if r.opts.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.opts.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(r.opts.Headers) > 0 {
			headers := network.Headers{}
			for k, v := range r.opts.Headers {
				headers[k] = v
			}
			if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if wantScreenshot {
			if err := chromedp.EmulateViewport(int64(r.opts.ViewportWidth), int64(r.opts.ViewportHeight)).Do(ctx); err != nil {
				return fmt.Errorf("set viewport: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) injectCookies(ctx context.Context, rawURL string) stepOutcome {
	if len(r.opts.Cookies) == 0 {
		return stepOutcome{step: "cookies", soft: true}
	}
	params := cookieParams(r.opts.Cookies, rawURL)
	return runStep(ctx, "cookies", true, network.SetCookies(params))
}

// cookieParams converts configured cookies for CDP. Cookies without a domain
// are scoped to rawURL.
func cookieParams(cookies []models.Cookie, rawURL string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Domain == "" {
			p.URL = rawURL
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

// navigate loads rawURL and blocks until the page reaches cond. load and
// networkidle go through chromedp.Navigate, which returns at the load event.
// domcontentloaded and commit issue Page.navigate directly so pages whose
// load event never fires still render. Missing the milestone before ctx ends
// fails the render.
func (r *Renderer) navigate(ctx context.Context, rawURL string, cond WaitCondition, w *pageWatcher) error {
	switch cond {
	case WaitDOMContentLoaded, WaitCommit:
		var loaderID cdp.LoaderID
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			_, id, errorText, _, err := page.Navigate(rawURL).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("page load error %s", errorText)
			}
			loaderID = id
			return nil
		}))
		if err != nil {
			return fmt.Errorf("navigation failed: %w", err)
		}
		if cond == WaitCommit {
			return nil
		}
		if err := w.wait(ctx, loaderID, lifecycleDOMContentLoaded); err != nil {
			return fmt.Errorf("wait for %s failed: %w", cond, err)
		}
		return nil
	default:
		if err := chromedp.Run(ctx, chromedp.Navigate(rawURL)); err != nil {
			return fmt.Errorf("navigation failed: %w", err)
		}
		if cond != WaitNetworkIdle {
			return nil
		}
		if err := w.wait(ctx, "", lifecycleNetworkIdle); err != nil {
			return fmt.Errorf("wait for %s failed: %w", cond, err)
		}
		return nil
	}
}

// settle waits for the rule's selector to become visible, or sleeps for the
// settle delay when no selector is configured.
func (r *Renderer) settle(ctx context.Context, s renderSettings) stepOutcome {
	if s.waitSelector != "" {
		selCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return runStep(selCtx, "wait selector", true, chromedp.WaitVisible(s.waitSelector, chromedp.ByQuery))
	}
	if r.opts.SettleDelay <= 0 {
		return stepOutcome{step: "settle", soft: true}
	}
	return runStep(ctx, "settle", true, chromedp.Sleep(r.opts.SettleDelay))
}

func (r *Renderer) screenshot(ctx context.Context) (string, stepOutcome) {
	var buf []byte
	if o := runStep(ctx, "screenshot", true, chromedp.CaptureScreenshot(&buf)); !o.ok() {
		return "", o
	}

	path := screenshotPath(r.opts.ScreenshotDir, time.Now())
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", stepOutcome{step: "screenshot", soft: true, err: err}
	}
	return path, stepOutcome{step: "screenshot", soft: true}
}

func screenshotPath(dir string, now time.Time) string {
	name := fmt.Sprintf("pagefetch_web_%d_%s.png", now.UnixMilli(), uuid.NewString()[:8])
	return filepath.Join(dir, name)
}

const (
	lifecycleInit             = "init"
	lifecycleDOMContentLoaded = "DOMContentLoaded"
	lifecycleNetworkIdle      = "networkIdle"
)

// pageWatcher records the main document's status and the lifecycle
// milestones reached by each of its loaders
type pageWatcher struct {
	mu        sync.Mutex
	mainFrame cdp.FrameID
	status    int
	loader    cdp.LoaderID
	reached   map[cdp.LoaderID]map[string]bool
	changed   chan struct{}
}

func newPageWatcher() *pageWatcher {
	return &pageWatcher{
		reached: make(map[cdp.LoaderID]map[string]bool),
		changed: make(chan struct{}),
	}
}

func (w *pageWatcher) setMainFrame(id cdp.FrameID) {
	w.mu.Lock()
	w.mainFrame = id
	w.mu.Unlock()
}

func (w *pageWatcher) isMain(id cdp.FrameID) bool {
	return w.mainFrame == "" || w.mainFrame == id
}

func (w *pageWatcher) handle(ev any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.Response != nil && w.isMain(e.FrameID) {
			w.status = int(e.Response.Status)
		}
	case *page.EventLifecycleEvent:
		if !w.isMain(e.FrameID) || e.LoaderID == "" {
			return
		}
		w.record(e.LoaderID, e.Name)
	}
}

// record marks name as reached for loaderID and wakes waiters. Callers hold mu.
func (w *pageWatcher) record(loaderID cdp.LoaderID, name string) {
	if name == lifecycleInit {
		w.loader = loaderID
	}
	events, ok := w.reached[loaderID]
	if !ok {
		events = make(map[string]bool)
		w.reached[loaderID] = events
	}
	events[name] = true
	close(w.changed)
	w.changed = make(chan struct{})
}

// wait blocks until loaderID reaches the named milestone. An empty loaderID
// means the document that started loading most recently.
func (w *pageWatcher) wait(ctx context.Context, loaderID cdp.LoaderID, name string) error {
	for {
		w.mu.Lock()
		id := loaderID
		if id == "" {
			id = w.loader
		}
		done := w.reached[id][name]
		changed := w.changed
		w.mu.Unlock()

		if done {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *pageWatcher) statusCode() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}
