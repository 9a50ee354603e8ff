package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
)

// NewTokenCmd creates the token subcommand.
func NewTokenCmd() *cobra.Command {
	var (
		userID string
		secret string
		issuer string
		days   int
	)

	days, _ = strconv.Atoi(envOr("JWT_EXPIRES_IN_DAYS", "90"))

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a session token for a user id",
		Long: `Sign a session token with the service's JWT settings, for use as
"Authorization: Bearer <token>" against a running instance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			if secret == "" {
				return errors.New("JWT_SECRET or --secret is required")
			}

			tok, err := security.NewJWTSigner(secret, issuer, days).Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to put in sub")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", envOr("JWT_ISSUER", "notes-auth"), "token issuer")
	cmd.Flags().IntVar(&days, "days", days, "lifetime in days")

	return cmd
}
