package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/infrastructure/security"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Long:  `Print the bcrypt hash of a password. Without an argument the password is read from stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				pw = strings.TrimRight(line, "\r\n")
			}

			if err := domain.ValidatePassword("password", pw); err != nil {
				return err
			}

			hash, err := security.NewBcryptHasher(cost).Hash(cmd.Context(), pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", security.MinCost, "bcrypt cost (raised to the minimum)")
	return cmd
}
