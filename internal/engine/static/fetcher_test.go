// internal/engine/static/fetcher_test.go
package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/pagefetch/pkg/models"
)

func newTestFetcher(retries int) *Fetcher {
	return New(Options{
		Timeout:    5 * time.Second,
		UserAgent:  "TestFetcher/1.0",
		Retries:    retries,
		RetryDelay: 10 * time.Millisecond,
	})
}

func TestFetcher_Fetch_BasicHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "TestFetcher/1.0" {
			t.Errorf("Expected configured user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Hello</title></head><body><p>Hi</p></body></html>`))
	}))
	defer server.Close()

	f := newTestFetcher(0)
	defer f.Close()

	resp, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.HTML, "<title>Hello</title>") {
		t.Errorf("Unexpected body: %q", resp.HTML)
	}
	if resp.FinalURL != server.URL {
		t.Errorf("Expected final URL %s, got %s", server.URL, resp.FinalURL)
	}
}

func TestFetcher_Fetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>moved</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := newTestFetcher(0).Fetch(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.FinalURL != server.URL+"/new" {
		t.Errorf("Expected final URL %s/new, got %s", server.URL, resp.FinalURL)
	}
}

func TestFetcher_Fetch_ErrorStatusIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down"))
	}))
	defer server.Close()

	resp, err := newTestFetcher(2).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("HTTP error status should not be a fetch failure: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected exactly 1 request, got %d", got)
	}
}

func TestFetcher_Fetch_RetriesTransportFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Write([]byte("<html><body>third time lucky</body></html>"))
	}))
	defer server.Close()

	resp, err := newTestFetcher(2).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if !strings.Contains(resp.HTML, "third time lucky") {
		t.Errorf("Unexpected body: %q", resp.HTML)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
}

func TestFetcher_Fetch_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	_, err := newTestFetcher(1).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !strings.HasPrefix(err.Error(), "HTTP request failed: ") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestFetcher_Fetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(0).Fetch(context.Background(), "http://invalid-url-that-does-not-exist-12345.invalid")
	if err == nil {
		t.Error("Expected error for invalid URL, got nil")
	}
}

func TestFetcher_Fetch_CustomHeadersAndCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Custom-Header"); got != "TestValue" {
			t.Errorf("Expected custom header, got %q", got)
		}
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			t.Errorf("Expected session cookie, got %v (%v)", c, err)
		}
		if _, err := r.Cookie("other"); err == nil {
			t.Error("Cookie scoped to another domain should not be sent")
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(Options{
		Headers: map[string]string{"X-Custom-Header": "TestValue"},
		Cookies: []models.Cookie{
			{Name: "session", Value: "abc"},
			{Name: "other", Value: "zzz", Domain: "elsewhere.test"},
		},
	})

	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestFetcher_StartCloseIdempotent(t *testing.T) {
	f := newTestFetcher(0)
	if err := f.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	f.Close()
	f.Close()

	if _, err := f.Fetch(context.Background(), "http://example.com"); err != ErrNotStarted {
		t.Errorf("Expected ErrNotStarted after Close, got %v", err)
	}
}

func TestNew_WhitespaceProxyMeansNone(t *testing.T) {
	f := New(Options{Proxy: "   "})
	if f.opts.Proxy != "" {
		t.Errorf("Expected empty proxy, got %q", f.opts.Proxy)
	}
	if f.Name() != "StaticFetcher" {
		t.Errorf("Expected name 'StaticFetcher', got '%s'", f.Name())
	}
}
