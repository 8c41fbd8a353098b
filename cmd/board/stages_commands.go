package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"familyboard/internal/api"
	"familyboard/internal/board"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	stagesCmd := &cobra.Command{
		Use:   "stages",
		Short: "Manage the pipeline stages",
	}
	stagesCmd.AddCommand(newStagesListCommand(ctx))
	stagesCmd.AddCommand(newStagesCreateCommand(ctx))
	stagesCmd.AddCommand(newStagesMoveCommand(ctx))
	stagesCmd.AddCommand(newStagesVisibilityCommand(ctx, "hide", true))
	stagesCmd.AddCommand(newStagesVisibilityCommand(ctx, "unhide", false))
	stagesCmd.AddCommand(newStagesDeleteCommand(ctx))
	stagesCmd.AddCommand(newStagesSaveCommand(ctx))
	return stagesCmd
}

func renderStages(cmd *cobra.Command, stages []board.Stage) {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{
			strconv.Itoa(s.Position),
			s.ID,
			s.Name,
			s.Color,
			s.ExternalStatus,
			yesNo(s.Hidden),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(out,
		[]string{"Pos", "ID", "Name", "Color", "External Status", "Hidden"},
		rows,
		[]columnAlignment{alignRight},
	))
}

func newStagesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages in position order, hidden included",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromStages(stages))
			}
			renderStages(cmd, stages)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStagesCreateCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateStageRequest
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Append a stage to the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			req.Name = args[0]
			stage, err := client.CreateStage(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created stage %s (%s) at position %d\n", stage.Name, stage.ID, stage.Position)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Color, "color", "", "Display color")
	cmd.Flags().StringVar(&req.ExternalStatusMapping, "external-status", "", "Order Source status this stage maps to")
	cmd.Flags().BoolVar(&req.IsHidden, "hidden", false, "Create the stage hidden")
	return cmd
}

func newStagesMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <stage> <position>",
		Short: "Move a stage to a new position, shifting the others",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position %q: %w", args[1], board.ErrInvalidPosition)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			stage, err := resolveStage(stages, args[0])
			if err != nil {
				return err
			}
			updated, err := client.MoveStage(cmd.Context(), stage.ID, position)
			if err != nil {
				return err
			}
			renderStages(cmd, updated)
			return nil
		},
	}
}

func newStagesVisibilityCommand(ctx *commandContext, use string, hidden bool) *cobra.Command {
	short := "Show a hidden stage on the board again"
	if hidden {
		short = "Hide a stage from the board without touching its orders"
	}
	return &cobra.Command{
		Use:   use + " <stage>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			stage, err := resolveStage(stages, args[0])
			if err != nil {
				return err
			}
			updated, err := client.SetStageHidden(cmd.Context(), stage.ID, hidden)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stage %s hidden: %s\n", updated.Name, yesNo(updated.Hidden))
			return nil
		},
	}
}

func newStagesDeleteCommand(ctx *commandContext) *cobra.Command {
	var reassignTo string
	cmd := &cobra.Command{
		Use:   "delete <stage>",
		Short: "Delete a stage, optionally moving its orders elsewhere first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stages, err := client.ListStages(cmd.Context())
			if err != nil {
				return err
			}
			stage, err := resolveStage(stages, args[0])
			if err != nil {
				return err
			}
			targetID := ""
			if reassignTo != "" {
				target, err := resolveStage(stages, reassignTo)
				if err != nil {
					return err
				}
				targetID = target.ID
			}
			moved, err := client.DeleteStage(cmd.Context(), stage.ID, targetID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted stage %s; %d orders reassigned\n", stage.Name, moved)
			return nil
		},
	}
	cmd.Flags().StringVar(&reassignTo, "reassign-to", "", "Stage that receives the orders of the deleted stage")
	return cmd
}

func newStagesSaveCommand(ctx *commandContext) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Replace the pipeline with a JSON or YAML stage list (as printed by 'stages list --json')",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read stages file: %w", err)
			}
			var payload []api.Stage
			if err := decodeDocument(file, data, &payload); err != nil {
				return fmt.Errorf("parse stages file: %w", err)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			saved, err := client.SaveStages(cmd.Context(), api.ToStages(payload))
			if err != nil {
				return err
			}
			renderStages(cmd, saved)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON or YAML file with the full stage list")
	return cmd
}
