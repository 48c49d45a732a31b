// internal/cli/analyze.go
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/law-makers/pagefetch/internal/ui"
	"github.com/law-makers/pagefetch/internal/utils/output"
	urlutil "github.com/law-makers/pagefetch/internal/utils/url"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	analyzeJSON   bool
	analyzeOutput string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Fetch a URL and print its readable text",
	Long: `Fetch a page and print its title, final URL and a preview of the
extracted text.

The page is fetched statically first and rendered in headless Chrome only when
it looks like an empty script shell, when rendering is forced, or when a
screenshot is requested.`,
	Example: `  # Print a summary
  pagefetch analyze https://example.com/article

  # Full result as JSON
  pagefetch analyze https://example.com/article --json

  # Always render and capture a screenshot
  pagefetch analyze https://example.com --render=always --screenshot=always

  # Save the result to a file
  pagefetch analyze https://example.com -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the full result as JSON")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Save the full result as JSON to this file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	if err := urlutil.ValidateURL(rawURL); err != nil {
		return err
	}

	a, err := startedApp(cmd.Context())
	if err != nil {
		return err
	}

	result := a.Orchestrator.FetchAndExtract(cmd.Context(), rawURL, a.Config.WantScreenshot())
	if result.Failed() {
		return fmt.Errorf("failed to fetch %s: %s", rawURL, result.Error)
	}

	if analyzeOutput != "" {
		if err := output.SaveJSON(result, analyzeOutput); err != nil {
			return err
		}
		log.Info().Str("file", analyzeOutput).Msg("Output saved")
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Saved to "+analyzeOutput))
	}

	return printResult(cmd.OutOrStdout(), result, analyzeJSON)
}

func printResult(w io.Writer, result *models.FetchResult, asJSON bool) error {
	if asJSON {
		return output.WriteJSON(w, result)
	}
	return output.WriteSummary(w, result)
}

// removeScreenshot deletes a captured screenshot file
func removeScreenshot(result *models.FetchResult) {
	if result.ScreenshotPath == "" {
		return
	}
	if err := os.Remove(result.ScreenshotPath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", result.ScreenshotPath).Msg("Failed to remove screenshot")
	}
}
