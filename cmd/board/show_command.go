package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"familyboard/internal/api"
	"familyboard/internal/board"
	"familyboard/internal/boardview"
)

type boardFilterFlags struct {
	from string
	to   string
	tags []string
}

func (f *boardFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "Only orders created at or after this RFC3339 time or YYYY-MM-DD date")
	cmd.Flags().StringVar(&f.to, "to", "", "Only orders created at or before this RFC3339 time or YYYY-MM-DD date")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Only orders whose tags or metadata contain this text (repeatable)")
}

func (f *boardFilterFlags) filters() (board.Filters, error) {
	from, err := parseDateFlag(f.from, false)
	if err != nil {
		return board.Filters{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseDateFlag(f.to, true)
	if err != nil {
		return board.Filters{}, fmt.Errorf("--to: %w", err)
	}
	return board.Filters{From: from, To: to, Tags: f.tags}, nil
}

// parseDateFlag accepts RFC3339 or a bare local date. A bare --to date
// covers the whole day.
func parseDateFlag(value string, endOfDay bool) (time.Time, error) {
	return parseDateIn(value, endOfDay, time.Local)
}

func parseDateIn(value string, endOfDay bool, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if day, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		if endOfDay {
			return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return day, nil
	}
	return api.ParseTime(value)
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var filterFlags boardFilterFlags
	var includeHidden bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the board, one table per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := filterFlags.filters()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			b, err := client.GetBoard(cmd.Context(), filters)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromBoard(b))
			}
			view := boardview.Compose(b, time.Now(), boardview.Options{IncludeHidden: includeHidden})
			renderView(cmd.OutOrStdout(), view)
			return nil
		},
	}
	filterFlags.register(cmd)
	cmd.Flags().BoolVar(&includeHidden, "hidden", false, "Include hidden stages")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw board as JSON")
	return cmd
}

func renderView(out io.Writer, view boardview.View) {
	for _, column := range view.Columns {
		title := column.Stage.Name
		if column.Stage.Hidden {
			title += " (hidden)"
		}
		fmt.Fprintf(out, "%s  %d orders, %d rush\n", title, column.Total, column.Rush)
		if len(column.Cards) == 0 {
			fmt.Fprintln(out, "  (empty)")
			fmt.Fprintln(out)
			continue
		}
		rows := make([][]string, 0, len(column.Cards))
		for _, card := range column.Cards {
			a := card.Assignment
			rows = append(rows, []string{
				a.OrderID,
				a.Order.Customer,
				formatMoney(a.Order.Total),
				priorityLabel(a.Priority),
				ownerLabel(a),
				formatDuration(card.TimeInStage),
			})
		}
		fmt.Fprintln(out, renderTable(out,
			[]string{"Order", "Customer", "Total", "Priority", "Owner", "In Stage"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
		))
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Total %d, unassigned %d, rush %d\n", view.Total, view.Unassigned, view.Rush)
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show order counts per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromStats(stats))
			}
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			names := stageNames(stages)
			rows := make([][]string, 0, len(stats.PerStage))
			for _, s := range stats.PerStage {
				rows = append(rows, []string{stageLabel(names, s.StageID), fmt.Sprint(s.TotalOrders), fmt.Sprint(s.RushOrders)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Stage", "Orders", "Rush"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "Total %d, unassigned %d\n", stats.TotalOrders, stats.UnassignedOrders)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history <order-id>",
		Short: "Show the stage history of an order, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entries, err := client.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromHistory(entries))
			}
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			names := stageNames(stages)
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					formatTimestamp(e.ChangedAt),
					stageLabel(names, e.FromStageID),
					stageLabel(names, e.ToStageID),
					e.ChangedBy,
					e.Notes,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"When", "From", "To", "By", "Notes"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
