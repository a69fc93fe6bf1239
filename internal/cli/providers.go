package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their health",
	Long: `List every configured evidence provider together with its category,
reliability weight, rate limits and current circuit state.`,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tRELIABILITY\tRPM\tRPD\tSPECIALTIES\tCIRCUIT\tUSED (MIN/DAY)")

	for _, d := range s.cfg.Providers {
		minute, day := s.governor.Usage(d.Name)
		state := s.breakers.Get(d.Name).State()

		rpm, rpd := "∞", "∞"
		if d.RPM > 0 {
			rpm = fmt.Sprintf("%d", d.RPM)
		}
		if d.RPD > 0 {
			rpd = fmt.Sprintf("%d", d.RPD)
		}

		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%v\t%s\t%d/%d\n",
			d.Name, d.Category, d.Reliability, rpm, rpd, d.Specialties, state, minute, day)
	}

	return w.Flush()
}
