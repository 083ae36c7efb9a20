package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/hcbot/courtfetch"
)

// NewCaseTypesCmd creates the case-types command.
func NewCaseTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case-types",
		Short: "List the case types of a bench, or the benches of a court",
		Long: `Without --bench, case-types lists the benches of --court. With --bench it
lists that bench's case types, filtered by --query (case-insensitive; the
full list is shown when nothing matches).`,
		Args: cobra.NoArgs,
		RunE: runCaseTypesCmd,
	}
	cmd.Flags().String("court", courtfetch.DefaultCourt, "High Court name")
	cmd.Flags().StringP("bench", "b", "", "bench name")
	cmd.Flags().StringP("query", "q", "", "substring filter on case type labels")
	return cmd
}

func runCaseTypesCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	bench, _ := cmd.Flags().GetString("bench")
	if bench == "" {
		court, _ := cmd.Flags().GetString("court")
		code, ok := courtfetch.CourtCode(court)
		if !ok {
			return fmt.Errorf("%w: %q", courtfetch.ErrUnknownCourt, court)
		}
		for _, b := range courtfetch.Benches(code) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.Code, b.Name)
		}
		return nil
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	query, _ := cmd.Flags().GetString("query")
	types := cat.FilterCaseTypes(bench, query)
	if len(types) == 0 {
		fmt.Fprintf(os.Stderr, "no case types known for bench %q\n", bench)
		return nil
	}
	for _, ct := range types {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ct.Value, ct.Label)
	}
	return nil
}
