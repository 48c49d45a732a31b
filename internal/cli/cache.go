// internal/cli/cache.go
package cli

import (
	"fmt"

	"github.com/law-makers/pagefetch/internal/ui"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Cache == nil {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Info("Cache is disabled."))
			return nil
		}
		removed := a.Cache.Clear()
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Removed %d cached result(s) from %s", removed, a.Cache.Dir())))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
