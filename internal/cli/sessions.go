// internal/cli/sessions.go
package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/law-makers/pagefetch/internal/session"
	"github.com/law-makers/pagefetch/internal/ui"
	"github.com/law-makers/pagefetch/internal/utils/headers"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/spf13/cobra"
)

var (
	saveURL         string
	saveCookiesFile string
	saveFormat      string
	saveCookies     []string
	saveHeaders     []string
	deleteYes       bool
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored cookie and header sessions",
	Long: `Save, list, view and delete sessions.

A session is a named set of cookies and headers. Pass --session=<name> to any
fetch command and they are sent with both static and rendered requests.
Sessions are stored in the OS keyring, or under ~/.pagefetch/sessions when no
keyring is available.`,
	Example: `  # Save cookies exported from a browser extension
  pagefetch sessions save news --url=https://news.example --cookies-file=cookies.txt

  # Save a bearer token and a single cookie
  pagefetch sessions save api --set-header "Authorization: Bearer TOKEN" --cookie "sid=abc"

  # Use it
  pagefetch analyze https://news.example/story --session=news`,
}

var sessionsSaveCmd = &cobra.Command{
	Use:   "save <session-name>",
	Short: "Create or replace a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsSave,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "Show the details of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsSaveCmd, sessionsListCmd, sessionsViewCmd, sessionsDeleteCmd)

	sessionsSaveCmd.Flags().StringVar(&saveURL, "url", "", "Website the session belongs to")
	sessionsSaveCmd.Flags().StringVar(&saveCookiesFile, "cookies-file", "", "Read cookies from this file ('-' for stdin)")
	sessionsSaveCmd.Flags().StringVar(&saveFormat, "cookies-format", session.FormatNetscape, "Cookie file format: netscape, json")
	sessionsSaveCmd.Flags().StringArrayVar(&saveCookies, "cookie", nil, "Cookie 'name=value' (repeatable)")
	sessionsSaveCmd.Flags().StringArrayVar(&saveHeaders, "set-header", nil, "Header 'Key: Value' stored in the session (repeatable)")
	sessionsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Delete without asking for confirmation")
}

func sessionStore() (session.Store, error) {
	a := GetApp()
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a.Sessions()
}

func runSessionsSave(cmd *cobra.Command, args []string) error {
	store, err := sessionStore()
	if err != nil {
		return err
	}

	var cookies []models.Cookie
	if saveCookiesFile != "" {
		var r io.Reader = cmd.InOrStdin()
		if saveCookiesFile != "-" {
			f, err := os.Open(saveCookiesFile)
			if err != nil {
				return fmt.Errorf("failed to open cookies file: %w", err)
			}
			defer f.Close()
			r = f
		}
		parsed, err := session.ParseCookies(r, saveFormat)
		if err != nil {
			return fmt.Errorf("failed to import cookies: %w", err)
		}
		cookies = append(cookies, parsed...)
	}

	inline, err := parseCookieFlags(saveCookies, saveURL)
	if err != nil {
		return err
	}
	cookies = append(cookies, inline...)

	hdrs, err := headers.Parse(saveHeaders)
	if err != nil {
		return err
	}
	if len(cookies) == 0 && len(hdrs) == 0 {
		return fmt.Errorf("nothing to save: pass --cookies-file, --cookie or --set-header")
	}

	s := &session.Session{
		Name:      args[0],
		URL:       saveURL,
		Cookies:   cookies,
		Headers:   hdrs,
		CreatedAt: time.Now(),
		ExpiresAt: session.EarliestCookieExpiry(cookies),
	}
	if err := store.Save(s); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, ui.Success(fmt.Sprintf("Session '%s' saved", s.Name)))
	fmt.Fprintf(w, "  Cookies: %d\n  Headers: %d\n", len(s.Cookies), len(s.Headers))
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "  Expires: %s\n", s.ExpiresAt.Format(time.RFC1123))
	}
	return nil
}

// parseCookieFlags converts name=value pairs into cookies scoped to the
// host of siteURL, or unscoped when no URL is given
func parseCookieFlags(raw []string, siteURL string) ([]models.Cookie, error) {
	domain := ""
	if u, err := url.Parse(siteURL); err == nil {
		domain = strings.ToLower(u.Hostname())
	}

	cookies := make([]models.Cookie, 0, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie %q: expected name=value", kv)
		}
		cookies = append(cookies, models.Cookie{
			Name:   name,
			Value:  strings.TrimSpace(value),
			Domain: domain,
			Path:   "/",
		})
	}
	return cookies, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := sessionStore()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(w, "No saved sessions found.")
		fmt.Fprintln(w, ui.Info("Create one with: pagefetch sessions save <name> --cookies-file=<file>"))
		return nil
	}

	fmt.Fprintln(w, ui.Bold(fmt.Sprintf("Saved sessions (%d)", len(names))))
	for _, name := range names {
		s, err := store.Load(name)
		if err != nil {
			fmt.Fprintf(w, "  %s  %s\n", name, ui.Error(err.Error()))
			continue
		}
		fmt.Fprintf(w, "  %s  %d cookie(s), %d header(s), created %s\n",
			name, len(s.Cookies), len(s.Headers), s.CreatedAt.Format(time.DateOnly))
	}
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	store, err := sessionStore()
	if err != nil {
		return err
	}
	s, err := store.Load(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Name:     %s\n", s.Name)
	if s.URL != "" {
		fmt.Fprintf(w, "URL:      %s\n", s.URL)
	}
	fmt.Fprintf(w, "Created:  %s\n", s.CreatedAt.Format(time.RFC1123))
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:  %s (in %s)\n", s.ExpiresAt.Format(time.RFC1123), time.Until(s.ExpiresAt).Round(time.Minute))
	}

	fmt.Fprintf(w, "\nCookies (%d):\n", len(s.Cookies))
	for _, c := range s.Cookies {
		fmt.Fprintf(w, "  %s (domain: %s)\n", c.Name, c.Domain)
	}

	if len(s.Headers) > 0 {
		keys := make([]string, 0, len(s.Headers))
		for k := range s.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "\nHeaders (%d):\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, maskSecret(s.Headers[k]))
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store, err := sessionStore()
	if err != nil {
		return err
	}

	if !deleteYes {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete session '%s'? [y/N]: ", name)
		var confirm string
		fmt.Fscanln(cmd.InOrStdin(), &confirm)
		if !strings.EqualFold(confirm, "y") {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Session '%s' deleted", name)))
	return nil
}

// maskSecret keeps the first few characters of a header value
func maskSecret(v string) string {
	const visible = 6
	r := []rune(v)
	if len(r) <= visible {
		return strings.Repeat("*", len(r))
	}
	return string(r[:visible]) + strings.Repeat("*", len(r)-visible)
}
