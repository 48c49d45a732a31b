// internal/engine/dynamic/rules.go
package dynamic

import (
	"strings"
	"time"

	"github.com/law-makers/pagefetch/pkg/models"
)

// WaitCondition names the navigation milestone a render waits for
type WaitCondition string

const (
	WaitLoad             WaitCondition = "load"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitNetworkIdle      WaitCondition = "networkidle"
	WaitCommit           WaitCondition = "commit"
)

// ParseWaitCondition maps a config value to a WaitCondition.
// Unknown or empty values yield ok == false.
func ParseWaitCondition(s string) (WaitCondition, bool) {
	switch w := WaitCondition(strings.ToLower(strings.TrimSpace(s))); w {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle, WaitCommit:
		return w, true
	}
	return "", false
}

// renderSettings are the effective knobs for one render call
type renderSettings struct {
	timeout      time.Duration
	waitUntil    WaitCondition
	waitSelector string
	rule         string
}

// matchRule returns the first rule whose domain occurs in rawURL
func matchRule(rules []models.RenderRule, rawURL string) (models.RenderRule, bool) {
	for _, r := range rules {
		if r.Domain != "" && strings.Contains(rawURL, r.Domain) {
			return r, true
		}
	}
	return models.RenderRule{}, false
}

// settingsFor resolves the timeout, wait condition and selector for rawURL.
// Rule fields override the global defaults only when set.
func (r *Renderer) settingsFor(rawURL string) renderSettings {
	s := renderSettings{
		timeout:   r.opts.Timeout,
		waitUntil: r.opts.WaitUntil,
	}

	rule, ok := matchRule(r.opts.Rules, rawURL)
	if !ok {
		return s
	}

	s.rule = rule.Domain
	if rule.TimeoutMs > 0 {
		s.timeout = time.Duration(rule.TimeoutMs) * time.Millisecond
	}
	if w, ok := ParseWaitCondition(rule.WaitUntil); ok {
		s.waitUntil = w
	}
	s.waitSelector = strings.TrimSpace(rule.WaitSelector)
	return s
}
