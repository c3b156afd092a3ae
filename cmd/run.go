package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/browser/drivers"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/datafactory"
	"github.com/xkilldash9x/hrmcheck/internal/observability"
	"github.com/xkilldash9x/hrmcheck/internal/reporting"
	"github.com/xkilldash9x/hrmcheck/internal/store"
	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

// newLauncher starts the configured browser engine. Tests replace it.
var newLauncher = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error) {
	return drivers.New(ctx, cfg, logger)
}

// ScenariosFailedError makes the process exit non-zero after a run whose
// report has already been printed.
type ScenariosFailedError struct {
	Failed int
}

func (e *ScenariosFailedError) Error() string {
	return fmt.Sprintf("%d scenario(s) failed", e.Failed)
}

type runOptions struct {
	group   string
	filter  string
	seed    int64
	list    bool
	reports []string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario catalog against the configured application",
		Long: `Runs every selected scenario in its own browser session, writes the
configured reports and an execution trace, and prints a summary. The exit
status is non-zero when any scenario fails.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"browser.concurrency": "concurrency",
				"browser.driver":      "driver",
				"browser.headless":    "headless",
				"app.base_url":        "base-url",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("report") {
				cfg.Artifacts.Reports = opts.reports
			}
			return runSuite(ctx, cmd.OutOrStdout(), observability.GetLogger(), cfg, opts, NewStoreProvider(), os.Args)
		},
	}

	runCmd.Flags().StringVarP(&opts.group, "group", "g", "", "Only run scenarios in this group (login, dashboard, roles, api)")
	runCmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "Only run scenarios whose group/name matches this glob")
	runCmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed for generated test data (0 picks one)")
	runCmd.Flags().BoolVar(&opts.list, "list", false, "List the selected scenarios and exit")
	runCmd.Flags().StringSliceVar(&opts.reports, "report", nil, "Report formats to write (html, junit, json)")
	runCmd.Flags().Int("concurrency", 2, "Number of scenarios to run in parallel")
	runCmd.Flags().String("driver", config.DriverChromedp, "Browser engine (chromedp or playwright)")
	runCmd.Flags().Bool("headless", true, "Run the browser without a window")
	runCmd.Flags().String("base-url", "", "Base URL of the application under test")
	return runCmd
}

// runSuite contains the core, testable logic of the run command.
func runSuite(
	ctx context.Context,
	out io.Writer,
	logger *zap.Logger,
	cfg *config.Config,
	opts runOptions,
	provider storeProvider,
	args []string,
) error {
	scenarios := suite.Select(suite.Catalog(), opts.group, opts.filter)
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios match group %q and filter %q", opts.group, opts.filter)
	}
	if opts.list {
		for _, sc := range scenarios {
			fmt.Fprintln(out, sc.ID())
		}
		return nil
	}

	var launcher browser.Launcher
	if slices.ContainsFunc(scenarios, suite.Scenario.NeedsBrowser) {
		l, err := newLauncher(ctx, cfg.Browser, logger)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer func() {
			if err := l.Close(); err != nil {
				logger.Warn("Failed to close browser launcher.", zap.Error(err))
			}
		}()
		launcher = l
	}

	runnerOpts := []suite.RunnerOption{suite.WithFactory(datafactory.NewFactory(opts.seed))}
	if cfg.Artifacts.Trace {
		tracePath := filepath.Join(cfg.Artifacts.Dir, "trace.jsonl")
		trace, closeTrace, err := observability.NewTraceLogger(tracePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeTrace(); err != nil {
				logger.Warn("Failed to close trace.", zap.Error(err))
			}
		}()
		runnerOpts = append(runnerOpts, suite.WithTrace(trace))
	}

	runner := suite.NewRunner(cfg, launcher, logger, runnerOpts...)
	report, runErr := runner.Run(ctx, scenarios)

	meta := reporting.Meta{ToolVersion: Version, BaseURL: cfg.App.BaseURL, CommandLine: reporting.CommandLine(args)}
	paths, err := reporting.WriteAll(report, cfg.Artifacts.Dir, cfg.Artifacts.Reports, meta)
	if err != nil {
		logger.Error("Failed to write reports.", zap.Error(err))
	}
	for _, p := range paths {
		logger.Info("Report written.", zap.String("path", p))
	}

	reporting.PrintSummary(out, report)

	if cfg.Database.URL != "" {
		if err := saveRun(ctx, provider, cfg, report, meta); err != nil {
			logger.Error("Failed to persist run history.", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if sum := report.Summary(); sum.Failed > 0 {
		return &ScenariosFailedError{Failed: sum.Failed}
	}
	return nil
}

func saveRun(ctx context.Context, provider storeProvider, cfg *config.Config, report *suite.RunReport, meta reporting.Meta) error {
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	// The run may have been interrupted; history is still worth keeping.
	ctx = context.WithoutCancel(ctx)
	return s.SaveRun(ctx, report, store.RunInfo{BaseURL: meta.BaseURL, CommandLine: meta.CommandLine})
}
