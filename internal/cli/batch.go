package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veriscore/veriscore/internal/model"
	"github.com/veriscore/veriscore/internal/verify"
)

var (
	batchTier        string
	batchDomain      string
	batchConcurrency int
	batchJSON        bool
	batchTimeout     time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify a file of claims",
	Long: `Batch reads claims from a file (one per line, # starts a comment)
and verifies them concurrently.

Example:
  veriscore batch claims.txt
  veriscore batch claims.txt --domain health --tier pro --concurrency 4 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchTier, "tier", "free", "subscription tier (free, pro, enterprise)")
	batchCmd.Flags().StringVar(&batchDomain, "domain", "", "claim domain applied to every line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "claims verified in parallel")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print results as JSON")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "overall batch timeout")
}

func runBatch(cmd *cobra.Command, args []string) error {
	claims, err := readClaims(args[0])
	if err != nil {
		return err
	}
	if len(claims) == 0 {
		return fmt.Errorf("no claims found in %s", args[0])
	}

	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	bp := verify.NewBatchProcessor(s.orch, batchConcurrency)
	items := bp.Process(ctx, claims, model.ParseDomain(batchDomain), batchTier)

	if batchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
			fmt.Printf("ERROR        %-60s %v\n", truncate(item.Claim, 60), item.Err)
			continue
		}
		fmt.Printf("%-12s %-60s conf=%d score=%d\n",
			item.Result.Verdict, truncate(item.Claim, 60), item.Result.Confidence, item.Result.VeriScore)
	}

	fmt.Printf("\n%d claims, %d failed\n", len(items), failed)
	return nil
}

// readClaims loads one claim per line, skipping blanks and comments.
func readClaims(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening claims file: %w", err)
	}
	defer f.Close()

	var claims []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		claims = append(claims, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading claims file: %w", err)
	}
	return claims, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
