package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *models.FetchResult {
	return &models.FetchResult{
		URL:          "https://example.com",
		FinalURL:     "https://example.com/",
		StatusCode:   200,
		Title:        "Example",
		Text:         strings.Repeat("a", 600),
		UsedRenderer: true,
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "https://example.com/", decoded["final_url"])
	assert.Equal(t, true, decoded["used_renderer"])
	_, hasErr := decoded["error"]
	assert.False(t, hasErr, "empty error is omitted")
}

func TestWriteJSONLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONLine(&buf, sample()))
	require.NoError(t, WriteJSONLine(&buf, sample()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, json.Valid([]byte(lines[0])))
}

func TestWriteSummary_Truncates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sample()))

	out := buf.String()
	assert.Contains(t, out, "Title: Example")
	assert.Contains(t, out, "...(truncated)...")
	assert.NotContains(t, out, strings.Repeat("a", 501))
}

func TestWriteDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	r := sample()
	r.ScreenshotPath = "/tmp/x.png"
	require.NoError(t, WriteDiagnostic(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "status_code: 200")
	assert.Contains(t, out, "text_length: 600")
	assert.Contains(t, out, "used_renderer: yes")
	assert.Contains(t, out, "screenshot: yes")
	assert.Contains(t, out, "error: none")
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	require.NoError(t, w.Write(sample()))
	require.NoError(t, w.Write(&models.FetchResult{URL: "https://bad", FinalURL: "https://bad", Error: "blocked by policy"}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "url,final_url,status_code,title,used_renderer,text_length,error", lines[0])
	assert.Equal(t, "https://bad,https://bad,0,,false,0,blocked by policy", lines[2])
}
