package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv(EnvPrefix+"_CONFIG", "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.NotEmpty(t, cfg.CacheDir)
	assert.Equal(t, "auto", cfg.RenderMode)
	assert.Equal(t, 2, cfg.RenderConcurrency)
	assert.Equal(t, 20*time.Second, cfg.RenderTimeout())
	assert.Equal(t, "networkidle", cfg.WaitUntil)
	assert.Equal(t, 100, cfg.MinRenderedTextLen)
	assert.Equal(t, 3, cfg.MaxURLs)
	assert.False(t, cfg.WantScreenshot())
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("PAGEFETCH_RENDER_MODE", "always")
	t.Setenv("PAGEFETCH_HTTP_TIMEOUT", "3s")
	t.Setenv("PAGEFETCH_HEADERS", `{"X-Test":"1"}`)
	t.Setenv("PAGEFETCH_COOKIES", `[{"name":"sid","value":"abc","domain":".example.com","httpOnly":true}]`)
	t.Setenv("PAGEFETCH_SITE_RULES", `[{"domain":"spa.example","timeout_ms":5000,"wait_selector":"#root"}]`)
	t.Setenv("PAGEFETCH_DOMAINS", `{"deny":["bad.example"]}`)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "always", cfg.RenderMode)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "1", cfg.Headers["X-Test"])
	require.Len(t, cfg.Cookies, 1)
	assert.True(t, cfg.Cookies[0].HTTPOnly)
	require.Len(t, cfg.SiteRules, 1)
	assert.Equal(t, 5000, cfg.SiteRules[0].TimeoutMs)
	assert.Equal(t, "#root", cfg.SiteRules[0].WaitSelector)
	assert.Equal(t, []string{"bad.example"}, cfg.Domains.Deny)
}

func TestLoad_MalformedJSONFallsBackToDefault(t *testing.T) {
	isolate(t)
	t.Setenv("PAGEFETCH_HEADERS", `{not json`)
	t.Setenv("PAGEFETCH_SITE_RULES", `[`)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Headers)
	assert.Empty(t, cfg.SiteRules)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pagefetch.yaml")
	content := `
render_mode: never
cache_ttl: 10m
domains:
  allow: [example.com]
site_rules:
  - domain: example.com
    wait_until: load
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PAGEFETCH_CONFIG", path)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "never", cfg.RenderMode)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"example.com"}, cfg.Domains.Allow)
	require.Len(t, cfg.SiteRules, 1)
	assert.Equal(t, "load", cfg.SiteRules[0].WaitUntil)
}

func TestLoad_MissingConfigFileIsAnError(t *testing.T) {
	isolate(t)
	t.Setenv("PAGEFETCH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load(nil)
	assert.Error(t, err)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PAGEFETCH_RENDER_MODE", "always")

	cmd := newCmd(t,
		"--render", "never",
		"--timeout", "7s",
		"--no-cache",
		"--verbose",
		"--screenshot", "on_failure",
		"-H", "Authorization: Bearer x",
	)

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "never", cfg.RenderMode)
	assert.Equal(t, 7*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.WantScreenshot())
	assert.Equal(t, "Bearer x", cfg.Headers["Authorization"])
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad render mode", map[string]string{"PAGEFETCH_RENDER_MODE": "sometimes"}},
		{"bad wait condition", map[string]string{"PAGEFETCH_WAIT_UNTIL": "idle"}},
		{"zero concurrency", map[string]string{"PAGEFETCH_RENDER_CONCURRENCY": "0"}},
		{"too much concurrency", map[string]string{"PAGEFETCH_RENDER_CONCURRENCY": "64"}},
		{"bad screenshot mode", map[string]string{"PAGEFETCH_SCREENSHOT_MODE": "sometimes"}},
		{"negative retries", map[string]string{"PAGEFETCH_RETRIES": "-1"}},
		{"rule without domain", map[string]string{"PAGEFETCH_SITE_RULES": `[{"timeout_ms":10}]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}
