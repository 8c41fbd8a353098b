package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"familyboard/internal/boardview"
	"familyboard/internal/syncctl"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var filterFlags boardFilterFlags
	var interval time.Duration
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the board, printing a summary whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filters, err := filterFlags.filters()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = cfg.PollInterval()
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			controller := syncctl.New(client, syncctl.Options{
				Interval: interval,
				Filters:  filters,
				Logger:   logger,
			})
			updates, unsubscribe := controller.Subscribe()
			defer unsubscribe()

			done := make(chan error, 1)
			go func() { done <- controller.Run(runCtx) }()

			return followSnapshots(runCtx, cmd.OutOrStdout(), updates, count, cancel, done)
		},
	}
	filterFlags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Poll interval (defaults to board.poll_interval)")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many refreshes (0 runs until interrupted)")
	return cmd
}

func followSnapshots(ctx context.Context, out io.Writer, updates <-chan syncctl.Snapshot, count int, stop context.CancelFunc, done <-chan error) error {
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return <-done
		case snap := <-updates:
			printSnapshot(out, snap)
			seen++
			if count > 0 && seen >= count {
				stop()
				return <-done
			}
		}
	}
}

func printSnapshot(out io.Writer, snap syncctl.Snapshot) {
	view := boardview.Compose(snap.Board, time.Now(), boardview.Options{})
	state := "live"
	if snap.Stale {
		state = "stale"
	}
	fmt.Fprintf(out, "[%s] %s: %d orders, %d unassigned, %d rush\n",
		formatTimestamp(snap.FetchedAt), state, view.Total, view.Unassigned, view.Rush)
	for _, column := range view.Columns {
		fmt.Fprintf(out, "  %-16s %3d (%d rush)\n", column.Stage.Name, column.Total, column.Rush)
	}
}
