package urlutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 3, nil},
		{"no urls", "nothing to see here", 3, nil},
		{
			name:  "strips trailing punctuation",
			text:  "see https://example.com/a). and http://example.org/b!?",
			limit: 3,
			want:  []string{"https://example.com/a", "http://example.org/b"},
		},
		{
			name:  "full-width punctuation",
			text:  "看这个 https://example.cn/news。 还有 https://example.cn/b！】",
			limit: 3,
			want:  []string{"https://example.cn/news", "https://example.cn/b"},
		},
		{
			name:  "dedupes preserving order",
			text:  "https://a.test https://b.test https://a.test, https://c.test",
			limit: 5,
			want:  []string{"https://a.test", "https://b.test", "https://c.test"},
		},
		{
			name:  "limit",
			text:  "https://a.test https://b.test https://c.test",
			limit: 1,
			want:  []string{"https://a.test"},
		},
		{
			name:  "default limit",
			text:  "https://a.test https://b.test https://c.test https://d.test",
			limit: 0,
			want:  []string{"https://a.test", "https://b.test", "https://c.test"},
		},
		{
			name:  "case insensitive scheme and stops at quotes",
			text:  `<a href="HTTPS://Example.com/x">link</a>`,
			limit: 3,
			want:  []string{"HTTPS://Example.com/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractURLs(tt.text, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractURLs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc"+TruncationMarker {
		t.Errorf("Truncate() = %q", got)
	}
	got := Truncate(strings.Repeat("字", 5), 2)
	if got != "字字"+TruncationMarker {
		t.Errorf("Truncate() should count characters, got %q", got)
	}
}
