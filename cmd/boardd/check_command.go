package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"familyboard/internal/api"
	"familyboard/internal/config"
	"familyboard/internal/preflight"
	"familyboard/internal/store"
)

const remoteCheckTimeout = 5 * time.Second

// newCheckCommand inspects the database without starting the server, or a
// running server's health endpoint with --remote.
func newCheckCommand(configFlag *string) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify configuration and database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote = strings.TrimSpace(remote); remote != "" {
				return checkRemote(cmd, remote)
			}
			cfg, path, exists, err := config.Load(strings.TrimSpace(*configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path:    %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if err := cfg.ValidateServer(); err != nil {
				fmt.Fprintf(out, "Server config:  %v\n", err)
			} else {
				fmt.Fprintln(out, "Server config:  ok")
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				status := "ok"
				if !result.Passed {
					status = "FAIL"
				}
				fmt.Fprintf(out, "%-21s %s  %s\n", result.Name+":", status, result.Detail)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open board store: %w", err)
			}
			defer st.Close()

			health, err := st.CheckHealth(cmd.Context())
			if err != nil {
				return fmt.Errorf("check database: %w", err)
			}
			fmt.Fprintf(out, "Database:       %s\n", health.DBPath)
			fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
			fmt.Fprintf(out, "Stages:         %d\n", health.Stages)
			fmt.Fprintf(out, "Assignments:    %d\n", health.Assignments)
			fmt.Fprintf(out, "History:        %d\n", health.HistoryEntries)
			if len(health.MissingTables) > 0 {
				fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(health.MissingTables, ", "))
			}
			if !health.Healthy() {
				if health.Error != "" {
					return fmt.Errorf("database unhealthy: %s", health.Error)
				}
				return errors.New("database unhealthy")
			}
			fmt.Fprintln(out, "Database healthy")
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "Check a running server at this URL instead of the local database")
	return cmd
}

func checkRemote(cmd *cobra.Command, baseURL string) error {
	client := api.NewClient(baseURL, "", &http.Client{Timeout: remoteCheckTimeout})
	health, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("remote %s: %w", baseURL, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Remote:         %s\n", baseURL)
	fmt.Fprintf(out, "Status:         %s\n", health.Status)
	fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
	fmt.Fprintf(out, "Stages:         %d\n", health.Stages)
	fmt.Fprintf(out, "Assignments:    %d\n", health.Assignments)
	fmt.Fprintf(out, "History:        %d\n", health.History)
	return nil
}
