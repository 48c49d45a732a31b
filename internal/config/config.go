package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/law-makers/pagefetch/internal/utils/headers"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	JSONLog  bool   `mapstructure:"json_log"`

	// Static fetch
	HTTPTimeout    time.Duration     `mapstructure:"http_timeout" validate:"gt=0"`
	Retries        int               `mapstructure:"retries" validate:"gte=0,lte=10"`
	UserAgent      string            `mapstructure:"user_agent"`
	Proxy          string            `mapstructure:"proxy" validate:"omitempty,url"`
	Headers        map[string]string `mapstructure:"headers"`
	Cookies        []models.Cookie   `mapstructure:"cookies" validate:"dive"`
	RateLimitRPS   float64           `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int               `mapstructure:"rate_limit_burst" validate:"gte=0"`

	// Cache
	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	CacheDir     string        `mapstructure:"cache_dir"`

	// Rendering
	RenderMode         string              `mapstructure:"render_mode" validate:"oneof=never auto always"`
	RenderConcurrency  int                 `mapstructure:"render_concurrency" validate:"gte=1"`
	RenderTimeoutMs    int                 `mapstructure:"render_timeout_ms" validate:"gt=0"`
	WaitUntil          string              `mapstructure:"wait_until" validate:"oneof=load domcontentloaded networkidle commit"`
	SettleDelay        time.Duration       `mapstructure:"settle_delay" validate:"gte=0"`
	Headless           bool                `mapstructure:"headless"`
	ChromePath         string              `mapstructure:"chrome_path"`
	SiteRules          []models.RenderRule `mapstructure:"site_rules" validate:"dive"`
	MinRenderedTextLen int                 `mapstructure:"min_rendered_text_len" validate:"gt=0"`
	ScreenshotMode     string              `mapstructure:"screenshot_mode" validate:"oneof=off always on_failure"`
	ScreenshotDir      string              `mapstructure:"screenshot_dir"`

	// Policy
	Domains models.DomainRules `mapstructure:"domains"`

	// Extraction and batch
	ExtractFormat    string `mapstructure:"extract_format" validate:"oneof=text markdown"`
	MaxURLs          int    `mapstructure:"max_urls" validate:"gte=1"`
	BatchConcurrency int    `mapstructure:"batch_concurrency" validate:"gte=0"`

	// Sessions and metrics
	Session     string `mapstructure:"session"`
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// WantScreenshot reports whether the screenshot mode asks for a capture
func (c *Config) WantScreenshot() bool {
	return c.ScreenshotMode == ScreenshotAlways || c.ScreenshotMode == ScreenshotOnFailure
}

// RenderTimeout returns the render timeout as a duration
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutMs) * time.Millisecond
}

// DefaultCacheDir returns the cache directory used when none is configured
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pagefetch")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("json_log", DefaultJSONLog)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("retries", DefaultRetries)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("cookies", []models.Cookie{})
	v.SetDefault("rate_limit_rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("cache_enabled", DefaultCacheEnabled)
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("cache_dir", DefaultCacheDir())
	v.SetDefault("render_mode", DefaultRenderMode)
	v.SetDefault("render_concurrency", DefaultRenderConcurrency)
	v.SetDefault("render_timeout_ms", DefaultRenderTimeoutMs)
	v.SetDefault("wait_until", DefaultWaitUntil)
	v.SetDefault("settle_delay", DefaultSettleDelay)
	v.SetDefault("headless", DefaultHeadless)
	v.SetDefault("chrome_path", "")
	v.SetDefault("site_rules", []models.RenderRule{})
	v.SetDefault("min_rendered_text_len", DefaultMinRenderedTextLen)
	v.SetDefault("screenshot_mode", DefaultScreenshotMode)
	v.SetDefault("screenshot_dir", os.TempDir())
	v.SetDefault("domains", models.DomainRules{})
	v.SetDefault("extract_format", DefaultExtractFormat)
	v.SetDefault("max_urls", DefaultMaxURLs)
	v.SetDefault("batch_concurrency", DefaultBatchConcurrency)
	v.SetDefault("session", "")
	v.SetDefault("metrics_addr", "")
}

// jsonSettings are structured settings that may arrive as JSON strings from
// the environment or a flat config file. Each entry returns a fresh target.
var jsonSettings = map[string]func() any{
	"headers":    func() any { return &map[string]string{} },
	"cookies":    func() any { return &[]models.Cookie{} },
	"site_rules": func() any { return &[]models.RenderRule{} },
	"domains":    func() any { return &models.DomainRules{} },
}

// Load builds a Config by combining defaults, an optional config file,
// PAGEFETCH_* environment variables and CLI flags, in that order of
// increasing precedence. cmd may be nil.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfgFile := os.Getenv(EnvPrefix + "_CONFIG")
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			cfgFile = f.Value.String()
		}
	}
	if err := readConfigFile(v, cfgFile); err != nil {
		return nil, err
	}

	if cmd != nil {
		applyFlags(v, cmd)
	}

	for key, target := range jsonSettings {
		normalizeJSON(v, key, target)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cmd != nil {
		if f := cmd.Flags().Lookup("header"); f != nil && f.Changed {
			raw, _ := cmd.Flags().GetStringArray("header")
			extra, err := headers.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid --header: %w", err)
			}
			cfg.Headers = headers.Merge(cfg.Headers, extra)
		}
	}
	cfg.Proxy = strings.TrimSpace(cfg.Proxy)
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("Using config file")
		return nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(base, "pagefetch"))
	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("Using config file")
	case errors.As(err, &notFound):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"proxy":       "proxy",
	"timeout":     "http_timeout",
	"user-agent":  "user_agent",
	"retries":     "retries",
	"render":      "render_mode",
	"render-wait": "wait_until",
	"screenshot":  "screenshot_mode",
	"format":      "extract_format",
	"session":     "session",
	"log-json":    "json_log",
	"cache-dir":   "cache_dir",
	"max-urls":    "max_urls",
	"concurrency": "batch_concurrency",
	"metrics":     "metrics_addr",
	"chrome-path": "chrome_path",
}

func applyFlags(v *viper.Viper, cmd *cobra.Command) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	if f := cmd.Flags().Lookup("no-cache"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("cache_enabled", false)
	}
	if f := cmd.Flags().Lookup("headful"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("headless", false)
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
		v.Set("log_level", "debug")
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil && f.Value.String() == "true" {
		v.Set("log_level", "error")
	}
}

// normalizeJSON decodes a structured setting given as a JSON string.
// Empty or malformed JSON resolves to the zero value of the setting.
func normalizeJSON(v *viper.Viper, key string, target func() any) {
	raw, ok := v.Get(key).(string)
	if !ok {
		return
	}
	out := target()
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Ignoring malformed JSON setting")
			out = target()
		}
	}
	v.Set(key, reflect.ValueOf(out).Elem().Interface())
}
