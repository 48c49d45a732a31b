package urlutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultLimit is how many URLs ExtractURLs returns when no limit is given
const DefaultLimit = 3

// TruncationMarker is appended to text cut by Truncate
const TruncationMarker = "\n...(truncated)..."

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>\]"'()]+`)

// trailingPunct is stripped from the end of matched URLs, including
// full-width punctuation common in CJK text
const trailingPunct = ").,;!?，。；！？】"

// ExtractURLs finds http(s) URLs in free text, strips trailing punctuation,
// drops duplicates and returns at most limit of them in order of appearance.
// limit <= 0 means DefaultLimit.
func ExtractURLs(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	seen := make(map[string]bool)
	var out []string
	for _, match := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(match, trailingPunct)
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Truncate shortens text to maxLen characters and appends TruncationMarker.
// Text within the limit is returned unchanged.
func Truncate(text string, maxLen int) string {
	if maxLen < 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen]) + TruncationMarker
}
