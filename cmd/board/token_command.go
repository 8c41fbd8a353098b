package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"familyboard/internal/auth"
)

// newTokenCommand mints a development token with the shared secret. Real
// deployments get tokens from the family Auth Service.
func newTokenCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var familyID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			userID = strings.TrimSpace(userID)
			familyID = strings.TrimSpace(familyID)
			if userID == "" || familyID == "" {
				return errors.New("--user and --family are required")
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL()
			}
			token, err := auth.Issue(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.Principal{UserID: userID, FamilyID: familyID}, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Acting user id")
	cmd.Flags().StringVar(&familyID, "family", "", "Family id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.token_ttl_hours)")
	return cmd
}
