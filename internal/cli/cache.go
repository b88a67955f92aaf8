package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var clearSource string

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached aggregation results",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached results",
	Long: `Remove cached results. With --source only entries produced by that
source are removed (updates, posts or geocode).

Example:
  crisisfeed cache clear
  crisisfeed cache clear --source posts`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRuntime(false, false)
		if err != nil {
			return err
		}
		defer func() { _ = env.svc.Close() }()

		if env.svc.Memo == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled, nothing to clear")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if clearSource == "" {
			if err := env.svc.Memo.Clear(ctx); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		}

		n, err := env.svc.Invalidate(ctx, clearSource)
		if err != nil {
			return fmt.Errorf("invalidate %s: %w", clearSource, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s entries\n", n, clearSource)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&clearSource, "source", "", "only remove entries produced by this source")
}
