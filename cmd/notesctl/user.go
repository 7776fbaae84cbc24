package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notehub/internal/identity"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var promoteCmd = &cobra.Command{
	Use:   "promote [email]",
	Short: "Grant the admin role to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.identity.SetRole(ctx, args[0], identity.RoleAdmin); err != nil {
			return fmt.Errorf("promote %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s to admin\n", args[0])
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [email]",
	Short: "Mark an account's email as verified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.identity.MarkVerified(ctx, args[0]); err != nil {
			return fmt.Errorf("verify %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Verified %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(promoteCmd, verifyCmd)
}
