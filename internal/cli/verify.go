package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/veriscore/veriscore/internal/model"
)

var (
	verifyTier    string
	verifyDomain  string
	verifyJSON    bool
	verifyTimeout time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a factual claim against the configured providers",
	Long: `Verify fans one claim out to every provider the subscription tier
allows, weighs the verdicts that come back, and prints the consensus.

Example:
  veriscore verify "The Great Wall of China is visible from space"
  veriscore verify "Coffee reduces mortality" --domain health --tier pro
  veriscore verify "Inflation fell in 2025" --domain finance --json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyTier, "tier", "free", "subscription tier (free, pro, enterprise)")
	verifyCmd.Flags().StringVar(&verifyDomain, "domain", "", "claim domain (science, health, politics, finance); inferred as general when empty")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the full result as JSON")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 2*time.Minute, "overall request timeout")
}

func runVerify(cmd *cobra.Command, args []string) error {
	claimText := args[0]

	domain := model.ParseDomain(verifyDomain)

	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	result, err := s.orch.Verify(ctx, claimText, domain, verifyTier)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if verifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(result *model.ConsensusResult) {
	fmt.Printf("Verdict:    %s\n", result.Verdict)
	fmt.Printf("Confidence: %d/100\n", result.Confidence)
	fmt.Printf("VeriScore:  %d/100\n", result.VeriScore)
	if result.Contradiction {
		fmt.Println("Note:       providers contradict each other")
	}
	if result.Degraded {
		fmt.Println("Note:       degraded result, some providers were unavailable")
	}

	fmt.Println("\nPillars:")
	names := make([]string, 0, len(result.Pillars))
	for name := range result.Pillars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-20s %.1f\n", name, result.Pillars[name])
	}

	if len(result.ProvidersUsed) > 0 {
		fmt.Printf("\nProviders:  %v\n", result.ProvidersUsed)
	}
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			fmt.Printf("  [%.2f] %s\n", src.Credibility, src.URL)
		}
	}
}
