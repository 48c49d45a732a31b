// internal/engine/hybrid/detector.go
package hybrid

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// shellTextThreshold is the visible text length below which a page with
	// many scripts is considered an unrendered shell
	shellTextThreshold = 400
	// shellScriptThreshold is the number of <script tags that marks a
	// script-heavy page
	shellScriptThreshold = 10
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// shellMarkers are lowercase substrings left behind by client-side frameworks
// whose server HTML carries no content
var shellMarkers = []string{
	"__next_data__",
	`id="app"`,
}

// VisibleText strips tags and collapses whitespace. Script bodies are kept,
// which matches how the shell check counts text.
func VisibleText(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ScriptCount counts <script occurrences, case-insensitively
func ScriptCount(html string) int {
	return strings.Count(strings.ToLower(html), "<script")
}

// LooksLikeEmptyShell reports whether statically fetched HTML is probably a
// client-rendered shell whose content only appears after scripts run.
func LooksLikeEmptyShell(html string) bool {
	if html == "" {
		return true
	}

	lower := strings.ToLower(html)
	if utf8.RuneCountInString(VisibleText(html)) < shellTextThreshold && strings.Count(lower, "<script") >= shellScriptThreshold {
		return true
	}

	for _, marker := range shellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
