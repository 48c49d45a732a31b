package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all log output except errors")
	pf.Bool("log-json", false, "Write logs as JSON to stderr")
	pf.String("config", "", "Path to configuration file (optional)")
	pf.String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	pf.String("timeout", "", "Per-request HTTP timeout (e.g., 15s)")
	pf.Int("retries", DefaultRetries, "Static fetch retries after a transport failure")
	pf.String("user-agent", "", "Custom user agent string")
	pf.StringArrayP("header", "H", nil, "Extra request header 'Key: Value' (repeatable)")
	pf.String("render", "", "Render mode: never, auto, always")
	pf.String("render-wait", "", "Render wait condition: load, domcontentloaded, networkidle, commit")
	pf.String("chrome-path", "", "Path to the Chrome/Chromium executable")
	pf.Bool("headful", false, "Show the browser window while rendering")
	pf.String("screenshot", "", "Screenshot mode: off, always, on_failure")
	pf.String("format", "", "Extracted text format: text, markdown")
	pf.String("session", "", "Stored session whose cookies and headers are sent")
	pf.String("cache-dir", "", "Directory for cached results")
	pf.Bool("no-cache", false, "Disable the result cache")
	pf.String("metrics", "", "Serve Prometheus metrics on this address (e.g., :9090)")
}
