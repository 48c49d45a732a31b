// internal/cli/diag.go
package cli

import (
	"fmt"

	"github.com/law-makers/pagefetch/internal/utils/output"
	urlutil "github.com/law-makers/pagefetch/internal/utils/url"
	"github.com/spf13/cobra"
)

var diagKeepScreenshot bool

// diagCmd represents the diag command
var diagCmd = &cobra.Command{
	Use:   "diag <url>",
	Short: "Show how a URL was fetched",
	Long: `Fetch a URL with a forced screenshot and print a diagnostic report:
final URL, status code, title, text length, whether the renderer was used,
whether a screenshot was captured, and the error if any.

The screenshot forces a render pass whenever a renderer is configured. The
cache is bypassed.`,
	Example: `  # Diagnose a page
  pagefetch diag https://example.com

  # Keep the screenshot file for inspection
  pagefetch diag https://example.com --keep-screenshot`,
	Args: cobra.ExactArgs(1),
	RunE: runDiag,
}

func init() {
	rootCmd.AddCommand(diagCmd)

	diagCmd.Flags().BoolVar(&diagKeepScreenshot, "keep-screenshot", false, "Keep the screenshot file and print its path")
}

func runDiag(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	if err := urlutil.ValidateURL(rawURL); err != nil {
		return err
	}

	a, err := startedApp(cmd.Context())
	if err != nil {
		return err
	}

	result := a.Orchestrator.FetchAndExtract(cmd.Context(), rawURL, true)
	if err := output.WriteDiagnostic(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if diagKeepScreenshot {
		if result.ScreenshotPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "screenshot_path: %s\n", result.ScreenshotPath)
		}
		return nil
	}
	removeScreenshot(result)
	return nil
}
