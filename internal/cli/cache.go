package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd groups result-cache maintenance commands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all memoized verification results",
	Long: `Drop all memoized verification results from the configured cache
backend. Run this after editing the credibility table so results scored
under the old table stop answering from cache.`,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.cache.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Println("Result cache cleared.")
	return nil
}
