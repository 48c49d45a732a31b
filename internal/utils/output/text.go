package output

import (
	"fmt"
	"io"
	"strings"

	urlutil "github.com/law-makers/pagefetch/internal/utils/url"
	"github.com/law-makers/pagefetch/pkg/models"
)

// PreviewLength is how many characters of text a summary shows
const PreviewLength = 500

// WriteSummary prints the title, final URL and a truncated text preview
func WriteSummary(w io.Writer, result *models.FetchResult) error {
	var b strings.Builder
	if result.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", result.Title)
	}
	fmt.Fprintf(&b, "URL: %s\n", result.FinalURL)
	if result.StatusCode != 0 {
		fmt.Fprintf(&b, "Status: %d\n", result.StatusCode)
	}
	if result.UsedRenderer {
		b.WriteString("Rendered: yes\n")
	}
	if result.ScreenshotPath != "" {
		fmt.Fprintf(&b, "Screenshot: %s\n", result.ScreenshotPath)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", result.Error)
	}
	if result.Text != "" {
		b.WriteString("\n")
		b.WriteString(urlutil.Truncate(result.Text, PreviewLength))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteDiagnostic prints a fixed-field report useful when checking why a
// page did or did not render
func WriteDiagnostic(w io.Writer, result *models.FetchResult) error {
	yesNo := func(v bool) string {
		if v {
			return "yes"
		}
		return "no"
	}

	errText := result.Error
	if errText == "" {
		errText = "none"
	}

	_, err := fmt.Fprintf(w,
		"url: %s\nfinal_url: %s\nstatus_code: %d\ntitle: %s\ntext_length: %d\nused_renderer: %s\nscreenshot: %s\nerror: %s\n",
		result.URL,
		result.FinalURL,
		result.StatusCode,
		result.Title,
		len([]rune(result.Text)),
		yesNo(result.UsedRenderer),
		yesNo(result.ScreenshotPath != ""),
		errText,
	)
	return err
}
