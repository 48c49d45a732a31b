package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel           = "warn"
	DefaultJSONLog            = false
	DefaultHTTPTimeout        = 15 * time.Second
	DefaultRetries            = 2
	DefaultUserAgent          = "Mozilla/5.0"
	DefaultCacheEnabled       = true
	DefaultCacheTTL           = time.Hour
	DefaultRenderMode         = "auto"
	DefaultRenderConcurrency  = 2
	DefaultMaxRenderSlots     = 16
	DefaultRenderTimeoutMs    = 20000
	DefaultWaitUntil          = "networkidle"
	DefaultSettleDelay        = time.Second
	DefaultHeadless           = true
	DefaultMinRenderedTextLen = 100
	DefaultScreenshotMode     = ScreenshotOff
	DefaultMaxURLs            = 3
	DefaultExtractFormat      = "text"
	DefaultRateLimitRPS       = 0.0
	DefaultRateLimitBurst     = 1
	DefaultBatchConcurrency   = 0
	DefaultShutdownTimeout    = 5 * time.Second
)

// Screenshot modes
const (
	ScreenshotOff       = "off"
	ScreenshotAlways    = "always"
	ScreenshotOnFailure = "on_failure"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "PAGEFETCH"
