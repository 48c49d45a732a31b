package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func articleHTML() string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Field Notes</title><script>var tracking = "noise";</script></head><body>`)
	b.WriteString(`<nav><a href="/">Home</a></nav><article><h2>Observations</h2>`)
	for i := 0; i < 8; i++ {
		b.WriteString(`<p>The river rose slowly through the morning, and by noon the lower meadow was under water. `)
		b.WriteString(`We moved the equipment to the ridge and kept recording the <strong>important</strong> readings every hour.</p>`)
	}
	b.WriteString(`</article><footer>Copyright</footer></body></html>`)
	return b.String()
}

func TestReadable_ExtractText(t *testing.T) {
	r := New(Options{})

	title, text := r.Extract(articleHTML(), "https://example.com/notes")

	assert.Equal(t, "Field Notes", title)
	assert.Contains(t, text, "The river rose slowly")
	assert.NotContains(t, text, "tracking")
	for _, line := range strings.Split(text, "\n") {
		assert.Equal(t, strings.TrimSpace(line), line)
		assert.NotEmpty(t, line)
	}
}

func TestReadable_ExtractMarkdown(t *testing.T) {
	r := New(Options{Format: FormatMarkdown})

	_, text := r.Extract(articleHTML(), "https://example.com/notes")

	assert.Contains(t, text, "**important**")
}

func TestReadable_EmptyInput(t *testing.T) {
	title, text := New(Options{}).Extract("   ", "https://example.com")
	assert.Empty(t, title)
	assert.Empty(t, text)
}

func TestText(t *testing.T) {
	got := Text(`<div><p>  First  </p><p>Second</p><script>alert(1)</script><style>p{}</style><p>   </p></div>`)
	assert.Equal(t, "First\nSecond", got)
}

func TestBodyText(t *testing.T) {
	got := bodyText(`<html><body><h1>Heading</h1><script>x()</script><p>Body</p></body></html>`)
	assert.Equal(t, "Heading\nBody", got)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatMarkdown, ParseFormat("Markdown"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("html"))
}

func TestDocumentTitle_OpenGraphFallback(t *testing.T) {
	got := documentTitle(`<html><head><meta property="og:title" content=" Shared Title "></head><body></body></html>`)
	assert.Equal(t, "Shared Title", got)
}
