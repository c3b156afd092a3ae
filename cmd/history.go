// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/observability"
	"github.com/xkilldash9x/hrmcheck/internal/store"
	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

// runStore is the slice of store.Store the CLI uses.
type runStore interface {
	SaveRun(ctx context.Context, report *suite.RunReport, info store.RunInfo) error
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetResults(ctx context.Context, runID string) ([]suite.Result, error)
}

// storeProvider creates the run history store. Tests inject a fake instead of
// a live database connection.
type storeProvider interface {
	// Create returns the store and a cleanup function releasing its pool.
	Create(ctx context.Context, cfg *config.Config) (runStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the PostgreSQL-backed provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (runStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (HRMCHECK_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

func newHistoryCmd(provider storeProvider) *cobra.Command {
	var (
		limit int
		runID string
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted runs, or the results of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, cmd.OutOrStdout(), cfg, provider, limit, runID)
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	historyCmd.Flags().StringVar(&runID, "run-id", "", "Show the scenario results of this run")
	return historyCmd
}

func runHistory(ctx context.Context, out io.Writer, cfg *config.Config, provider storeProvider, limit int, runID string) error {
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if runID != "" {
		results, err := s.GetResults(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "SCENARIO\tSTATUS\tDURATION\tMESSAGE")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.StatusText, r.Duration, r.Message)
		}
		return nil
	}

	runs, err := s.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tPASSED\tFAILED\tSKIPPED\tBASE URL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Summary.Passed, r.Summary.Failed, r.Summary.Skipped,
			r.BaseURL)
	}
	return nil
}
