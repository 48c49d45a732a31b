package models

import "strings"

// FetchResult is the outcome of one fetch-and-extract call
type FetchResult struct {
	URL            string `json:"url"`
	FinalURL       string `json:"final_url"`
	StatusCode     int    `json:"status_code"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	UsedRenderer   bool   `json:"used_renderer"`
	Error          string `json:"error,omitempty"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// Failed reports whether the result carries an error and no usable text.
// Failed results are never cached.
func (r *FetchResult) Failed() bool {
	if r == nil {
		return true
	}
	return r.Error != "" && strings.TrimSpace(r.Text) == ""
}

// HasScreenshot reports whether a screenshot file was captured for this result
func (r *FetchResult) HasScreenshot() bool {
	return r != nil && r.ScreenshotPath != ""
}

// DomainRules holds host suffixes that are explicitly allowed or denied
type DomainRules struct {
	Allow []string `json:"allow" mapstructure:"allow"`
	Deny  []string `json:"deny" mapstructure:"deny"`
}

// RenderRule overrides render settings for URLs containing Domain
type RenderRule struct {
	Domain       string `json:"domain" mapstructure:"domain" validate:"required"`
	TimeoutMs    int    `json:"timeout_ms,omitempty" mapstructure:"timeout_ms" validate:"gte=0"`
	WaitUntil    string `json:"wait_until,omitempty" mapstructure:"wait_until" validate:"omitempty,oneof=load domcontentloaded networkidle commit"`
	WaitSelector string `json:"wait_selector,omitempty" mapstructure:"wait_selector"`
}

// Cookie is a browser cookie injected into static and rendered requests
type Cookie struct {
	Name     string  `json:"name" mapstructure:"name" validate:"required"`
	Value    string  `json:"value" mapstructure:"value"`
	Domain   string  `json:"domain,omitempty" mapstructure:"domain"`
	Path     string  `json:"path,omitempty" mapstructure:"path"`
	Expires  float64 `json:"expires,omitempty" mapstructure:"expires"`
	HTTPOnly bool    `json:"httpOnly,omitempty" mapstructure:"http_only"`
	Secure   bool    `json:"secure,omitempty" mapstructure:"secure"`
	SameSite string  `json:"sameSite,omitempty" mapstructure:"same_site"`
}
