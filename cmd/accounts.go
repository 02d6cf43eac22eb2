// File: cmd/accounts.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelaine/kzfleet/internal/observability"
	"github.com/avelaine/kzfleet/internal/schemas"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the credential roster.",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := newStore(ctx, cfg, observability.GetLogger())
		if err != nil {
			return err
		}

		roster, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(roster) == 0 {
			fmt.Println("no accounts stored")
			return nil
		}
		for _, acc := range roster {
			fmt.Println(acc.Email)
		}
		return nil
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <email> <password>",
	Short: "Add an account to the roster.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := schemas.NewAccount(args[0], args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := newStore(ctx, cfg, observability.GetLogger())
		if err != nil {
			return err
		}
		if err := store.Add(ctx, account); err != nil {
			return err
		}
		fmt.Printf("added %s\n", account.Email)
		return nil
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove an account from the roster.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := newStore(ctx, cfg, observability.GetLogger())
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsRemoveCmd)
	rootCmd.AddCommand(accountsCmd)
}
