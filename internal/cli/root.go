// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/law-makers/pagefetch/internal/app"
	"github.com/law-makers/pagefetch/internal/config"
	"github.com/law-makers/pagefetch/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagefetch",
	Short: "Fetch web pages and extract their readable text",
	Long: `pagefetch turns a URL into clean readable text.

Each page is fetched with a plain HTTP request first. Pages that look like
script-rendered shells are loaded again in headless Chrome. Results are
cached on disk, and a domain allow/deny list decides which hosts may be
fetched at all.`,
	Version:       "0.4.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. This is called by main.main().
// Interrupts cancel the command context so in-flight fetches stop early.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	// PersistentPostRunE is skipped when a command fails.
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		os.Exit(1)
	}
}

func closeApp() error {
	a := GetApp()
	if a == nil {
		return nil
	}
	SetApp(nil)
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	return a.Close(ctx)
}

func init() {
	config.RegisterFlags(rootCmd)

	// The application is built lazily so -h and --version never touch disk.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp() != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(a)
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return closeApp()
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		writeHelp(os.Stdout, cmd)
	})
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		writeUsage(os.Stderr, cmd)
		return nil
	})
}

// startedApp returns the application with its fetch pipeline started
func startedApp(ctx context.Context) (*app.Application, error) {
	a := GetApp()
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	if err := a.Startup(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// writeHelp renders colorized help for cmd
func writeHelp(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintf(w, "\n%s\n", ui.Paint(ui.ColorBold+ui.ColorCyan, strings.ToUpper(cmd.Name())))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, 80))
	}

	writeUsage(w, cmd)

	if cmd.HasExample() {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Examples"))
		for _, line := range strings.Split(cmd.Example, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				continue
			case strings.HasPrefix(trimmed, "#"):
				fmt.Fprintf(w, "  %s\n", ui.Paint(ui.ColorDim, trimmed))
			default:
				fmt.Fprintf(w, "  %s\n", ui.Paint(ui.ColorGreen, "$ "+trimmed))
			}
		}
	}

	if cmd.HasAvailableInheritedFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Global Flags"))
		printFlags(w, cmd.InheritedFlags().FlagUsages())
	}
	fmt.Fprintln(w)
}

// writeUsage renders the usage line, subcommands and local flags
func writeUsage(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold("Usage"))
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Paint(ui.ColorCyan, cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n",
			ui.Paint(ui.ColorCyan, cmd.CommandPath()),
			ui.Paint(ui.ColorYellow, "<command>"),
			ui.Paint(ui.ColorDim, "[flags]"))

		fmt.Fprintf(w, "\n%s\n", ui.Bold("Commands"))
		var available []*cobra.Command
		width := 0
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && c.Name() != "help" {
				available = append(available, c)
				width = max(width, len(c.Name()))
			}
		}
		for _, c := range available {
			fmt.Fprintf(w, "  %s%s%s\n",
				ui.Paint(ui.ColorCyan, c.Name()),
				strings.Repeat(" ", width-len(c.Name())+2),
				ui.Paint(ui.ColorDim, c.Short))
		}
	}

	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Flags"))
		printFlags(w, cmd.LocalFlags().FlagUsages())
	}
}

// printFlags re-aligns pflag usage output and colors flag names
func printFlags(w io.Writer, usages string) {
	const minWidth = 28

	type row struct{ flag, desc string }
	var rows []row
	width := minWidth
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") {
			rows = append(rows, row{desc: trimmed})
			continue
		}
		parts := strings.SplitN(trimmed, "  ", 2)
		r := row{flag: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			r.desc = strings.TrimSpace(parts[1])
		}
		width = max(width, len(r.flag))
		rows = append(rows, r)
	}

	for _, r := range rows {
		if r.flag == "" {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", width+4), ui.Paint(ui.ColorDim, r.desc))
			continue
		}
		fmt.Fprintf(w, "  %s%s%s\n",
			ui.Paint(ui.ColorGreen, r.flag),
			strings.Repeat(" ", width-len(r.flag)+2),
			ui.Paint(ui.ColorDim, r.desc))
	}
}

// wrapText wraps text at width, keeping paragraphs and list items intact
func wrapText(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var lines []string
		var current strings.Builder
		flush := func() {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
		}

		for _, line := range strings.Split(para, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
				flush()
				lines = append(lines, trimmed)
				continue
			}
			for _, word := range strings.Fields(trimmed) {
				if current.Len() > 0 && current.Len()+1+len(word) > width {
					flush()
				}
				if current.Len() > 0 {
					current.WriteByte(' ')
				}
				current.WriteString(word)
			}
		}
		flush()

		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
