package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/law-makers/pagefetch/pkg/models"
)

// WriteJSON writes result as indented JSON followed by a newline
func WriteJSON(w io.Writer, result *models.FetchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// SaveJSON writes result as indented JSON to filepath
func SaveJSON(result *models.FetchResult, filepath string) error {
	content, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, content, 0644)
}

// WriteJSONLine writes result as a single line of compact JSON
func WriteJSONLine(w io.Writer, result *models.FetchResult) error {
	return json.NewEncoder(w).Encode(result)
}
