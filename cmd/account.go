package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account commands",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Register an account",
	Long: `Register an account that can enroll signatures and join rooms.

Examples:
  signet account create dana --std-id 6201 --first-name Dana --last-name Novak`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountCreate,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountList,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)

	accountCreateCmd.Flags().String("std-id", "", "Student id")
	accountCreateCmd.Flags().String("first-name", "", "First name")
	accountCreateCmd.Flags().String("last-name", "", "Last name")
	accountCreateCmd.Flags().String("email", "", "Email address")
}

// withAccounts connects the backend and hands the account store to fn.
func withAccounts(fn func(ctx context.Context, accounts database.AccountStore) error) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeBackend, err := initBackend(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeBackend()

	accounts, err := database.GetAccountStore(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, accounts)
}

func runAccountCreate(cmd *cobra.Command, args []string) error {
	account := &database.Account{
		Username:  args[0],
		Email:     mustGetString(cmd, "email"),
		StdID:     mustGetString(cmd, "std-id"),
		FirstName: mustGetString(cmd, "first-name"),
		LastName:  mustGetString(cmd, "last-name"),
	}
	return withAccounts(func(ctx context.Context, accounts database.AccountStore) error {
		id, err := accounts.CreateAccount(ctx, account)
		if errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("username or student id already taken: %w", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Created account %d (%s)\n", id, account.Username)
		return nil
	})
}

func runAccountList(cmd *cobra.Command, args []string) error {
	return withAccounts(func(ctx context.Context, accounts database.AccountStore) error {
		list, err := accounts.ListAccounts(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No accounts found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tSTD ID\tNAME")
		fmt.Fprintln(w, "--\t--------\t------\t----")
		for _, a := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s %s\n", a.ID, a.Username, a.StdID, a.FirstName, a.LastName)
		}
		return w.Flush()
	})
}
