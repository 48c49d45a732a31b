package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/law-makers/pagefetch/pkg/models"
)

var csvHeader = []string{"url", "final_url", "status_code", "title", "used_renderer", "text_length", "error"}

// CSVWriter writes one row per FetchResult. The header is written before the
// first row.
type CSVWriter struct {
	w       *csv.Writer
	started bool
}

// NewCSVWriter creates a CSVWriter on w
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends a row for result
func (c *CSVWriter) Write(result *models.FetchResult) error {
	if !c.started {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.started = true
	}

	return c.w.Write([]string{
		result.URL,
		result.FinalURL,
		strconv.Itoa(result.StatusCode),
		result.Title,
		strconv.FormatBool(result.UsedRenderer),
		strconv.Itoa(len([]rune(result.Text))),
		result.Error,
	})
}

// Flush writes any buffered rows and reports the first write error
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
