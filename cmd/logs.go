package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		path   string
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the harness log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if path == "" {
				cfg, err := getConfigFromContext(ctx)
				if err != nil {
					return err
				}
				path = cfg.Logger.LogFile
			}
			return runLogs(ctx, cmd.OutOrStdout(), path, follow)
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "F", false, "Keep printing lines as they are written, across rotations")
	logsCmd.Flags().StringVar(&path, "file", "", "Log file to read (defaults to logger.log_file)")
	return logsCmd
}

// runLogs copies the log file to out. With follow it keeps tailing until ctx
// is cancelled.
func runLogs(ctx context.Context, out io.Writer, path string, follow bool) error {
	if path == "" {
		return fmt.Errorf("no log file configured")
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(out, line.Text)
		}
	}
}
