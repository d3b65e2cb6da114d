package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"travel_tracker/internal/middleware"
)

var tokenOpts struct {
	secret string
	role   string
	guest  string
	ttl    time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenOpts.secret == "" {
			return fmt.Errorf("--secret or JWT_SECRET is required")
		}
		guestID := uuid.Nil
		if tokenOpts.guest != "" {
			id, err := uuid.Parse(tokenOpts.guest)
			if err != nil {
				return fmt.Errorf("--guest: %w", err)
			}
			guestID = id
		}
		tok, err := middleware.NewAuth(tokenOpts.secret, tokenOpts.ttl).GenerateToken(tokenOpts.role, guestID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.secret, "secret", envOr("JWT_SECRET", ""), "HS256 signing secret")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", middleware.RoleGuest, "guest or admin")
	tokenCmd.Flags().StringVar(&tokenOpts.guest, "guest", "", "guest id (required for guest tokens)")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 72*time.Hour, "token lifetime")
}
