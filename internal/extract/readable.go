// internal/extract/readable.go
package extract

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Format selects the shape of extracted text
type Format string

const (
	// FormatText joins visible text nodes with newlines
	FormatText Format = "text"
	// FormatMarkdown converts the readable content to Markdown
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a config value to a Format, defaulting to FormatText
func ParseFormat(s string) Format {
	if Format(strings.ToLower(strings.TrimSpace(s))) == FormatMarkdown {
		return FormatMarkdown
	}
	return FormatText
}

// Options configures a Readable extractor
type Options struct {
	Format Format
}

// Readable extracts the main article of a page as a title and clean text
type Readable struct {
	format    Format
	converter *md.Converter
}

// New creates a Readable extractor
func New(opts Options) *Readable {
	r := &Readable{format: opts.Format}
	if r.format == "" {
		r.format = FormatText
	}
	if r.format == FormatMarkdown {
		r.converter = md.NewConverter("", true, nil)
	}
	return r
}

// Extract returns the page title and readable text of rawHTML.
// It never fails: when readability cannot find an article the visible body
// text is returned instead.
func (r *Readable) Extract(rawHTML, pageURL string) (title, text string) {
	if strings.TrimSpace(rawHTML) == "" {
		return "", ""
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Readability failed, falling back to body text")
		return documentTitle(rawHTML), bodyText(rawHTML)
	}

	title = strings.TrimSpace(article.Title)
	if title == "" {
		title = documentTitle(rawHTML)
	}

	if r.format == FormatMarkdown && r.converter != nil {
		markdown, err := r.converter.ConvertString(article.Content)
		if err == nil {
			return title, strings.TrimSpace(markdown)
		}
		log.Debug().Err(err).Str("url", pageURL).Msg("Markdown conversion failed, using plain text")
	}

	return title, Text(article.Content)
}

// Text converts an HTML fragment to plain text: each text node is trimmed,
// empty ones dropped, and the rest joined with newlines.
func Text(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElement(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, "\n")
}

func skipElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "head":
		return true
	}
	return false
}

// documentTitle returns the <title> of a document, or its og:title
func documentTitle(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	og, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	return strings.TrimSpace(og)
}

// bodyText returns the visible text of the body with scripts and styles removed
func bodyText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()

	body, err := goquery.OuterHtml(doc.Find("body").First())
	if err != nil || body == "" {
		return ""
	}
	return Text(body)
}
