package dynamic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	r := New(Options{Proxy: "  ", WaitUntil: "bogus"})

	assert.Equal(t, DefaultMaxConcurrency, cap(r.sem))
	assert.Equal(t, DefaultTimeout, r.opts.Timeout)
	assert.Equal(t, WaitNetworkIdle, r.opts.WaitUntil)
	assert.Equal(t, DefaultViewportWidth, r.opts.ViewportWidth)
	assert.Equal(t, DefaultViewportHeight, r.opts.ViewportHeight)
	assert.Equal(t, os.TempDir(), r.opts.ScreenshotDir)
	assert.Empty(t, r.opts.Proxy)
	assert.Equal(t, "new", headlessFlag(r.opts), "zero options run headless")
	assert.Equal(t, false, headlessFlag(Options{Headful: true}))
}

func TestSettingsFor_FirstMatchingRuleWins(t *testing.T) {
	r := New(Options{
		Timeout:   20 * time.Second,
		WaitUntil: WaitNetworkIdle,
		Rules: []models.RenderRule{
			{Domain: "example.com", TimeoutMs: 5000, WaitUntil: "load", WaitSelector: "#main"},
			{Domain: "example.com/docs", TimeoutMs: 9000},
		},
	})

	s := r.settingsFor("https://www.example.com/docs/page")
	assert.Equal(t, 5*time.Second, s.timeout)
	assert.Equal(t, WaitLoad, s.waitUntil)
	assert.Equal(t, "#main", s.waitSelector)
	assert.Equal(t, "example.com", s.rule)
}

func TestSettingsFor_RuleFieldsFallBackToGlobals(t *testing.T) {
	r := New(Options{
		Timeout:   20 * time.Second,
		WaitUntil: WaitDOMContentLoaded,
		Rules:     []models.RenderRule{{Domain: "news.test", WaitUntil: "sometime"}},
	})

	s := r.settingsFor("https://news.test/a")
	assert.Equal(t, 20*time.Second, s.timeout)
	assert.Equal(t, WaitDOMContentLoaded, s.waitUntil)
	assert.Empty(t, s.waitSelector)

	s = r.settingsFor("https://other.test/")
	assert.Empty(t, s.rule)
}

func TestParseWaitCondition(t *testing.T) {
	w, ok := ParseWaitCondition(" NetworkIdle ")
	assert.True(t, ok)
	assert.Equal(t, WaitNetworkIdle, w)

	_, ok = ParseWaitCondition("")
	assert.False(t, ok)
}

func TestCookieParams(t *testing.T) {
	params := cookieParams([]models.Cookie{
		{Name: "sid", Value: "1"},
		{Name: "pref", Value: "dark", Domain: ".example.com", SameSite: "Lax", Expires: 1700000000},
		{Value: "nameless"},
	}, "https://example.com/page")

	require.Len(t, params, 2)
	assert.Equal(t, "https://example.com/page", params[0].URL)
	assert.Empty(t, params[1].URL)
	assert.Equal(t, network.CookieSameSiteLax, params[1].SameSite)
	require.NotNil(t, params[1].Expires)
}

func TestScreenshotPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	a := screenshotPath("/tmp/shots", now)
	b := screenshotPath("/tmp/shots", now)

	assert.Equal(t, "/tmp/shots", filepath.Dir(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), "pagefetch_web_1700000000123_"))
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.NotEqual(t, a, b)
}

func TestRenderer_ClosedRejectsCalls(t *testing.T) {
	r := New(Options{})
	r.Close()
	r.Close()

	_, err := r.RenderExtract(context.Background(), "http://example.com", false)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRenderer_AcquireHonoursContext(t *testing.T) {
	r := New(Options{MaxConcurrency: 1})
	require.NoError(t, r.acquire(context.Background()))
	defer r.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, r.acquire(ctx))
}

func TestPageWatcher_Wait(t *testing.T) {
	w := newPageWatcher()
	w.setMainFrame("main")

	lifecycle := func(frame cdp.FrameID, loader cdp.LoaderID, name string) {
		w.handle(&page.EventLifecycleEvent{FrameID: frame, LoaderID: loader, Name: name})
	}

	done := make(chan error, 1)
	go func() { done <- w.wait(context.Background(), "doc", lifecycleDOMContentLoaded) }()

	lifecycle("child", "doc", lifecycleDOMContentLoaded)
	lifecycle("main", "blank", lifecycleDOMContentLoaded)
	select {
	case err := <-done:
		t.Fatalf("wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	lifecycle("main", "doc", lifecycleInit)
	lifecycle("main", "doc", lifecycleDOMContentLoaded)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not observe DOMContentLoaded")
	}

	// an empty loader means the newest document
	lifecycle("main", "doc", lifecycleNetworkIdle)
	require.NoError(t, w.wait(context.Background(), "", lifecycleNetworkIdle))

	lifecycle("main", "next", lifecycleInit)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.wait(ctx, "", lifecycleNetworkIdle), context.DeadlineExceeded)
}

func TestPageWatcher_StatusFromMainDocument(t *testing.T) {
	w := newPageWatcher()
	w.setMainFrame("main")

	w.handle(&network.EventResponseReceived{FrameID: "child", Type: network.ResourceTypeDocument, Response: &network.Response{Status: 500}})
	w.handle(&network.EventResponseReceived{FrameID: "main", Type: network.ResourceTypeImage, Response: &network.Response{Status: 404}})
	w.handle(&network.EventResponseReceived{FrameID: "main", Type: network.ResourceTypeDocument, Response: &network.Response{Status: 200}})

	assert.Equal(t, 200, w.statusCode())
}

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if _, err := FindChrome(); err != nil {
		t.Skip("chrome not available")
	}
}

func TestRenderer_RenderExtract_JavaScript(t *testing.T) {
	requireChrome(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<!DOCTYPE html>
<html><head><title>JS Test</title></head>
<body><div id="content">Loading...</div>
<script>
document.getElementById('content').innerText = 'Loaded by JavaScript';
</script></body></html>`))
	}))
	defer server.Close()

	r := New(Options{WaitUntil: WaitLoad, SettleDelay: 100 * time.Millisecond, ScreenshotDir: t.TempDir()})
	defer r.Close()

	out, err := r.RenderExtract(context.Background(), server.URL, true)
	require.NoError(t, err)

	assert.Equal(t, "JS Test", out.Title)
	assert.Contains(t, out.HTML, "Loaded by JavaScript")
	assert.Equal(t, http.StatusOK, out.StatusCode)
	require.NotEmpty(t, out.ScreenshotPath)
	_, statErr := os.Stat(out.ScreenshotPath)
	assert.NoError(t, statErr)
}

func TestRenderer_RenderExtract_SendsHeadersAndCookies(t *testing.T) {
	requireChrome(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := r.Cookie("sid")
		val := ""
		if c != nil {
			val = c.Value
		}
		w.Write([]byte("<html><head><title>" + r.Header.Get("X-Test") + "</title></head><body>" + val + "</body></html>"))
	}))
	defer server.Close()

	r := New(Options{
		WaitUntil:   WaitCommit,
		SettleDelay: 0,
		Headers:     map[string]string{"X-Test": "hdr"},
		Cookies:     []models.Cookie{{Name: "sid", Value: "cookie-value"}},
	})
	defer r.Close()

	out, err := r.RenderExtract(context.Background(), server.URL, false)
	require.NoError(t, err)
	assert.Equal(t, "hdr", out.Title)
	assert.Contains(t, out.HTML, "cookie-value")
	assert.Empty(t, out.ScreenshotPath)
}

// hangHandler holds a request open until the client goes away
func hangHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(10 * time.Second):
	}
}

func TestRenderer_RenderExtract_NavigationFailure(t *testing.T) {
	requireChrome(t)

	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	for _, cond := range []WaitCondition{WaitLoad, WaitDOMContentLoaded} {
		t.Run(string(cond), func(t *testing.T) {
			r := New(Options{WaitUntil: cond, Timeout: 5 * time.Second})
			defer r.Close()

			out, err := r.RenderExtract(context.Background(), target, false)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Contains(t, err.Error(), "navigation failed")
		})
	}
}

func TestRenderer_RenderExtract_SelectorTimeoutIsSoft(t *testing.T) {
	requireChrome(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Selector</title></head><body><p>present</p></body></html>`))
	}))
	defer server.Close()

	r := New(Options{
		WaitUntil: WaitLoad,
		Rules: []models.RenderRule{{
			Domain:       "127.0.0.1",
			TimeoutMs:    1000,
			WaitUntil:    string(WaitLoad),
			WaitSelector: "#never",
		}},
	})
	defer r.Close()

	out, err := r.RenderExtract(context.Background(), server.URL, false)
	require.NoError(t, err)
	assert.Equal(t, "Selector", out.Title)
	assert.Contains(t, out.HTML, "present")
}

func TestRenderer_RenderExtract_NetworkIdleTimeoutFails(t *testing.T) {
	requireChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/hang", hangHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>busy</p>
<script>window.addEventListener('load', function () { fetch('/hang'); });</script>
</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := New(Options{WaitUntil: WaitNetworkIdle, Timeout: 1500 * time.Millisecond})
	defer r.Close()

	out, err := r.RenderExtract(context.Background(), server.URL+"/", false)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRenderer_RenderExtract_DOMContentLoadedWithoutLoadEvent(t *testing.T) {
	requireChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/hang.png", hangHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Partial</title></head>
<body><p>ready before load</p><img src="/hang.png"></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := New(Options{WaitUntil: WaitDOMContentLoaded, Timeout: 3 * time.Second})
	defer r.Close()

	out, err := r.RenderExtract(context.Background(), server.URL+"/", false)
	require.NoError(t, err)
	assert.Equal(t, "Partial", out.Title)
	assert.Contains(t, out.HTML, "ready before load")
}

func TestRenderer_RenderExtract_SemaphoreBoundsTabs(t *testing.T) {
	requireChrome(t)

	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`<html><body>slow</body></html>`))
	}))
	defer server.Close()

	r := New(Options{MaxConcurrency: 1, WaitUntil: WaitLoad, Timeout: 10 * time.Second})
	defer r.Close()
	require.NoError(t, r.Start(context.Background()))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.RenderExtract(context.Background(), server.URL+"/", false)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}
