package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/hcbot/courtfetch"
	"github.com/hazyhaar/hcbot/courtfetch/tesseract"
)

// CasesFile is the --cases YAML document.
type CasesFile struct {
	Court string               `yaml:"court"`
	Rows  []courtfetch.CaseRow `yaml:"rows"`
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a batch of cases",
		Long: `Run resolves every row of the cases file against the court catalog, then
processes the cases one at a time, retrying each up to retry.max_attempts.
Fetched orders are written under output.dir and the run is saved to the
history database.

Cases file example:
  court: Bombay High Court
  rows:
    - bench: Appellate Side,Bombay
      case_type: WP(Writ Petition)-1
      no: "11311"
      year: "2025"
    - bench: Original Side,Bombay
      mode: filing_number
      no: "77"
      year: "2023"`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}
	cmd.Flags().String("cases", "", "YAML file listing the cases (required)")
	cmd.Flags().String("court", "", "High Court for rows that name none (overrides the file)")
	cmd.Flags().String("report", "", "write a Markdown report of the run to this path")
	_ = cmd.MarkFlagRequired("cases")
	return cmd
}

func loadCases(path string) (*CasesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	var cf CasesFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}
	if cf.Court == "" {
		cf.Court = courtfetch.DefaultCourt
	}
	return &cf, nil
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	casesPath, _ := cmd.Flags().GetString("cases")
	cf, err := loadCases(casesPath)
	if err != nil {
		return err
	}
	if court, _ := cmd.Flags().GetString("court"); court != "" {
		cf.Court = court
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	cases, err := cat.Resolve(cf.Court, cf.Rows)
	if err != nil {
		return err
	}

	engine, err := tesseract.New(tesseract.Config{
		Languages: cfg.Captcha.Languages,
		Whitelist: cfg.Captcha.Whitelist,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	history, err := courtfetch.OpenHistory(cfg.History.DB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	sinks := courtfetch.SinksFromConfig(cfg, os.Stdout, logger)
	sinks = append(sinks,
		courtfetch.NewDirSink(cfg.Output.Dir),
		courtfetch.NewCallbackSink(courtfetch.Callbacks{
			OnLine: func(_ context.Context, line string) error {
				_, err := fmt.Fprintln(os.Stderr, line)
				return err
			},
		}),
	)
	runner := courtfetch.NewRunner(cfg, logger,
		courtfetch.WithSinks(sinks...),
		courtfetch.WithRecognizer(engine),
		courtfetch.WithHistory(history),
	)
	defer runner.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := courtfetch.NewRun(courtfetch.WithRunRows(cf.Rows), courtfetch.WithRunLogger(logger))
	runErr := runner.Run(ctx, run, cases)

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := writeReport(path, run.Summary()); err != nil {
			return errors.Join(runErr, err)
		}
	}
	sum := run.Summary()
	fmt.Fprintf(os.Stderr, "%s: %d case(s), %d fetched, %d without document, %d failed\n",
		sum.Label, sum.Total, sum.Fetched, sum.NoDocument, sum.Failed)
	return runErr
}

func writeReport(path string, sum *courtfetch.RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := courtfetch.WriteReport(f, sum); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
