// internal/cli/scan.go
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/law-makers/pagefetch/internal/engine"
	"github.com/law-makers/pagefetch/internal/ui"
	"github.com/law-makers/pagefetch/internal/utils/output"
	urlutil "github.com/law-makers/pagefetch/internal/utils/url"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	scanJSON       bool
	scanCSV        string
	scanNoProgress bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [text...]",
	Short: "Find URLs in free text and fetch them",
	Long: `Scan free text for http(s) URLs and fetch each one.

Text comes from the arguments, or from stdin when no arguments are given.
Trailing punctuation is stripped, duplicates are dropped, and at most
--max-urls URLs are fetched. URLs rejected by the domain policy are skipped.`,
	Example: `  # URLs inside a message
  pagefetch scan "see https://example.com/a and https://example.org/b."

  # Read a chat log from stdin and write a CSV report
  cat messages.txt | pagefetch scan --max-urls 20 --csv report.csv

  # One JSON object per line
  pagefetch scan --json < links.txt`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("max-urls", 0, "Maximum number of URLs to fetch (default from config)")
	scanCmd.Flags().Int("concurrency", 0, "Concurrent fetches (0 = auto)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print one JSON result per line")
	scanCmd.Flags().StringVar(&scanCSV, "csv", "", "Also write results to this CSV file")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Hide the progress bar")
}

func runScan(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(raw)
	}

	a, err := startedApp(cmd.Context())
	if err != nil {
		return err
	}

	urls := urlutil.ExtractURLs(text, a.Config.MaxURLs)
	if len(urls) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Info("No URLs found."))
		return nil
	}
	log.Debug().Int("count", len(urls)).Msg("URLs extracted")

	var bar *progressbar.ProgressBar
	if !scanNoProgress {
		bar = progressbar.NewOptions(len(urls),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Fetching"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]*models.FetchResult, len(urls))
	for item := range a.Batch.Run(cmd.Context(), urls, a.Config.WantScreenshot()) {
		results[item.Index] = item.Result
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	var csvw *output.CSVWriter
	if scanCSV != "" {
		f, err := os.Create(scanCSV)
		if err != nil {
			return fmt.Errorf("failed to create CSV file: %w", err)
		}
		defer f.Close()
		csvw = output.NewCSVWriter(f)
	}

	attempted, failed := 0, 0
	w := cmd.OutOrStdout()
	for _, result := range results {
		if isBlocked(result) {
			log.Info().Str("url", result.URL).Msg("Skipping URL blocked by domain policy")
			continue
		}
		attempted++
		if result.Failed() {
			failed++
			log.Warn().Str("url", result.URL).Str("error", result.Error).Msg("Fetch failed")
		}
		if csvw != nil {
			if err := csvw.Write(result); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
		}
		if err := printScanResult(w, result); err != nil {
			return err
		}
		removeScreenshot(result)
	}

	if csvw != nil {
		if err := csvw.Flush(); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}
	if attempted > 0 && failed == attempted {
		return errors.New("every fetch failed")
	}
	return nil
}

func isBlocked(result *models.FetchResult) bool {
	return result.StatusCode == 0 && result.Error == engine.ErrBlocked.Error()
}

func printScanResult(w io.Writer, result *models.FetchResult) error {
	if scanJSON {
		return output.WriteJSONLine(w, result)
	}
	if result.Failed() {
		_, err := fmt.Fprintf(w, "%s %s: %s\n", ui.Error("FAIL"), result.URL, result.Error)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", ui.Success("OK"), result.FinalURL); err != nil {
		return err
	}
	if err := output.WriteSummary(w, result); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
