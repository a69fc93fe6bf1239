package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent verifications",
	Long:  `Show the most recent verification results from the local history database.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	if s.history == nil {
		return fmt.Errorf("history is disabled; enable it in the config file first")
	}

	records, err := s.history.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No verifications recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tVERDICT\tCONF\tTIER\tCLAIM")
	for _, rec := range records {
		claim := rec.Claim
		if len(claim) > 60 {
			claim = claim[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Result.Verdict, rec.Result.Confidence, rec.Tier, claim)
	}
	return w.Flush()
}
