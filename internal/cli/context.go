// Package cli provides the command-line interface for pagefetch.
package cli

import "github.com/law-makers/pagefetch/internal/app"

// globalApp is built by the root PersistentPreRunE and closed by its
// PersistentPostRunE
var globalApp *app.Application

// SetApp stores the Application for the running command
func SetApp(a *app.Application) {
	globalApp = a
}

// GetApp retrieves the Application for the running command
func GetApp() *app.Application {
	return globalApp
}
