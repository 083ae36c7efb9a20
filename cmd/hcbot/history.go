package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/hcbot/courtfetch"
	"github.com/hazyhaar/hcbot/idgen"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or print the report of one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntP("limit", "n", 20, "number of runs to list")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	history, err := courtfetch.OpenHistory(cfg.History.DB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	if len(args) == 1 {
		id, err := idgen.Parse(args[0])
		if err != nil {
			return err
		}
		sum, err := history.GetRun(cmd.Context(), id)
		if err != nil {
			return err
		}
		return courtfetch.WriteReport(cmd.OutOrStdout(), sum)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := history.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return courtfetch.WriteHistory(cmd.OutOrStdout(), runs)
}
