package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/hcbot/courtfetch"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hcbot",
		Short: "Fetch the latest High Court orders for a batch of cases",
		Long: `hcbot drives the eCourts High Court case-status portal in a headless
browser: it fills the search form, reads the captcha with tesseract, and
downloads the most recent order PDF of each case.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to hcbot.yaml (defaults apply when empty)")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCaseTypesCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setup loads the configuration and builds the JSON logger named by the
// persistent flags.
func setup(cmd *cobra.Command) (*courtfetch.Config, *slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return courtfetch.DefaultConfig(), logger, nil
	}
	cfg, err := courtfetch.LoadConfigFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger, nil
}

func loadCatalog(cfg *courtfetch.Config) (*courtfetch.Catalog, error) {
	if cfg.Catalog.CaseTypesFile == "" {
		return courtfetch.NewCatalog(nil), nil
	}
	cat, err := courtfetch.LoadCatalog(cfg.Catalog.CaseTypesFile)
	if err != nil {
		return nil, fmt.Errorf("load case types: %w", err)
	}
	return cat, nil
}
