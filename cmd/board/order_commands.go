package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"familyboard/internal/api"
	"familyboard/internal/board"
	"familyboard/internal/syncctl"
)

func newMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <order-id> <stage>",
		Short: "Move an order to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.syncController(cmd)
			if err != nil {
				return err
			}
			stage, err := resolveStage(controller.Current().Board.Stages, args[1])
			if err != nil {
				return err
			}
			if err := controller.Move(cmd.Context(), args[0], stage.ID); err != nil {
				reportReload(cmd, controller, args[:1])
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], stage.Name)
			return nil
		},
	}
}

// reportReload prints where the reloaded board has the given orders after a
// rejected change.
func reportReload(cmd *cobra.Command, controller *syncctl.Controller, orderIDs []string) {
	out := cmd.ErrOrStderr()
	snap := controller.Current()
	if snap.Stale {
		fmt.Fprintln(out, "Board could not be reloaded; run 'board show' once the server is reachable")
		return
	}
	names := stageNames(snap.Board.Stages)
	for _, id := range orderIDs {
		a, ok := snap.Board.AssignmentByID(id)
		if !ok {
			fmt.Fprintf(out, "%s is not on the board\n", id)
			continue
		}
		fmt.Fprintf(out, "%s is in %s\n", id, stageLabel(names, a.StageID))
	}
}

// patchFlags collects the editable assignment fields. Only flags the user set
// end up in the patch.
type patchFlags struct {
	stage    string
	assign   string
	unassign bool
	priority string
	notes    string
}

func (f *patchFlags) register(cmd *cobra.Command, withNotes bool) {
	cmd.Flags().StringVar(&f.stage, "stage", "", "Target stage id or name")
	cmd.Flags().StringVar(&f.assign, "assign", "", "Assign the order to this user")
	cmd.Flags().BoolVar(&f.unassign, "unassign", false, "Clear the assignee")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority: normal, high, rush (or 0-2)")
	if withNotes {
		cmd.Flags().StringVar(&f.notes, "notes", "", "Replace the order notes")
	}
}

func (f *patchFlags) patch(cmd *cobra.Command, stages []board.Stage) (board.Patch, error) {
	var p board.Patch
	flags := cmd.Flags()
	if flags.Changed("stage") {
		stage, err := resolveStage(stages, f.stage)
		if err != nil {
			return board.Patch{}, err
		}
		p.StageID = &stage.ID
	}
	if flags.Changed("assign") && f.unassign {
		return board.Patch{}, errors.New("--assign and --unassign are mutually exclusive")
	}
	if flags.Changed("assign") {
		owner := f.assign
		p.AssignedTo = &owner
	}
	if f.unassign {
		empty := ""
		p.AssignedTo = &empty
	}
	if flags.Changed("priority") {
		priority, ok := board.ParsePriority(f.priority)
		if !ok {
			return board.Patch{}, board.InvalidInputf("priority %q must be normal, high, rush, or 0-2", f.priority)
		}
		p.Priority = &priority
	}
	if flags.Lookup("notes") != nil && flags.Changed("notes") {
		notes := f.notes
		p.Notes = &notes
	}
	if p.IsEmpty() {
		return board.Patch{}, errors.New("nothing to change; pass at least one of --stage, --assign, --unassign, --priority, --notes")
	}
	return p, nil
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var flags patchFlags
	cmd := &cobra.Command{
		Use:   "edit <order-id>",
		Short: "Edit the stage, assignee, priority, or notes of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.syncController(cmd)
			if err != nil {
				return err
			}
			patch, err := flags.patch(cmd, controller.Current().Board.Stages)
			if err != nil {
				return err
			}
			if err := controller.Edit(cmd.Context(), args[0], patch); err != nil {
				reportReload(cmd, controller, args[:1])
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newBulkCommand(ctx *commandContext) *cobra.Command {
	var flags patchFlags
	var orderIDs []string
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply the same stage, assignee, or priority to several orders",
		Long: "Apply the same stage, assignee, or priority to several orders.\n\n" +
			"Orders are updated one at a time. When the command fails, orders before the\n" +
			"failing one may already be updated; run 'board show' to see the current state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := append(append([]string(nil), orderIDs...), args...)
			if len(ids) == 0 {
				return errors.New("no orders given; pass --orders or order ids as arguments")
			}
			controller, err := ctx.syncController(cmd)
			if err != nil {
				return err
			}
			patch, err := flags.patch(cmd, controller.Current().Board.Stages)
			if err != nil {
				return err
			}
			if err := controller.Bulk(cmd.Context(), ids, patch); err != nil {
				reportReload(cmd, controller, ids)
				return fmt.Errorf("%w (some orders may already be updated; run 'board show')", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d orders\n", len(ids))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&orderIDs, "orders", nil, "Comma separated order ids")
	flags.register(cmd, false)
	return cmd
}

func newOrdersCommand(ctx *commandContext) *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and ingest orders",
	}
	ordersCmd.AddCommand(newOrdersGetCommand(ctx))
	ordersCmd.AddCommand(newOrdersImportCommand(ctx))
	return ordersCmd
}

func newOrdersGetCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "get <order-id>",
		Short: "Show one order and its workflow state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			detail, err := client.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, detail)
			}
			a := detail.ToAssignment()
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			names := stageNames(stages)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order:        %s\n", a.OrderID)
			fmt.Fprintf(out, "Customer:     %s\n", a.Order.Customer)
			fmt.Fprintf(out, "Total:        %s\n", formatMoney(a.Order.Total))
			fmt.Fprintf(out, "Stage:        %s\n", stageLabel(names, a.StageID))
			if detail.ExternalStatus != "" {
				fmt.Fprintf(out, "External:     %s\n", detail.ExternalStatus)
			}
			fmt.Fprintf(out, "Priority:     %s\n", a.Priority)
			fmt.Fprintf(out, "Assigned to:  %s\n", ownerLabel(a))
			fmt.Fprintf(out, "Last updated: %s\n", formatTimestamp(a.LastUpdated))
			if strings.TrimSpace(a.Notes) != "" {
				fmt.Fprintf(out, "Notes:        %s\n", a.Notes)
			}
			for _, item := range a.Order.LineItems {
				fmt.Fprintf(out, "  %dx %s %s\n", item.Quantity, item.Title, item.Variant)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newOrdersImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Ingest order snapshots exported from the Order Source",
		Long: "Ingest order snapshots exported from the Order Source.\n\n" +
			"The file holds either an array of orders or an object with an \"orders\"\n" +
			"array, as JSON or as YAML when named *.yaml or *.yml. Unseen orders are\n" +
			"placed on the board; known orders only have their snapshot refreshed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := readOrdersFile(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.SyncOrders(cmd.Context(), orders)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d orders: %d new, %d refreshed\n", len(orders), result.Created, result.Refreshed)
			return nil
		},
	}
}

func readOrdersFile(path string) ([]api.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read orders file: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	var orders []api.Order
	isList := strings.HasPrefix(trimmed, "[")
	if isYAMLDocument(path) {
		isList = strings.HasPrefix(trimmed, "-")
	}
	if isList {
		err = decodeDocument(path, data, &orders)
	} else {
		var wrapped api.SyncRequest
		err = decodeDocument(path, data, &wrapped)
		orders = wrapped.Orders
	}
	if err != nil {
		return nil, fmt.Errorf("parse orders file: %w", err)
	}
	if len(orders) == 0 {
		return nil, errors.New("orders file contains no orders")
	}
	return orders, nil
}
