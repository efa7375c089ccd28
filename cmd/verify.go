package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <room-id> <image>",
	Short: "Verify that a room member produced a signature",
	Long: `Compare a signature image against every enrolled reference of the
claimed member. Each reference votes genuine when its distance is below
the threshold; the majority decides and the outcome is stored as the
member's check status in the room.

Examples:
  signet verify 3 ./scan/cell_12.png --std-id 6201
  signet verify 3 ./scan/cell_12.png --account-id 17 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("std-id", "", "Student id of the claimed signer")
	verifyCmd.Flags().Int64("account-id", 0, "Account id of the claimed signer")
	verifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// resolveAccount finds an account by student id or account id flag.
func resolveAccount(ctx context.Context, cmd *cobra.Command) (*database.Account, error) {
	stdID := mustGetString(cmd, "std-id")
	accountID := mustGetInt64(cmd, "account-id")
	if stdID == "" && accountID == 0 {
		return nil, errors.New("--std-id or --account-id is required")
	}

	accounts, err := database.GetAccountStore(ctx)
	if err != nil {
		return nil, err
	}
	var account *database.Account
	if stdID != "" {
		account, err = accounts.GetAccountByStdID(ctx, database.NormalizeStdID(stdID))
	} else {
		account, err = accounts.GetAccount(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, database.ErrNotFound
	}
	return account, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	roomID, err := parseID("room", args[0])
	if err != nil {
		return err
	}
	image, err := readImage(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	_, service, _, closeBackend, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer closeBackend()

	account, err := resolveAccount(ctx, cmd)
	if err != nil {
		return fmt.Errorf("claimed signer: %w", err)
	}
	rooms, err := database.GetRoomStore(ctx)
	if err != nil {
		return err
	}
	member, err := rooms.IsMember(ctx, roomID, account.ID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("account %d is not a member of room %d", account.ID, roomID)
	}

	result, err := service.Verify(ctx, roomID, account.ID, image)
	if result == nil {
		return err
	}
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	if jsonOutput {
		return outputJSON(result)
	}

	verdict := "FORGED"
	if result.Genuine {
		verdict = "GENUINE"
	}
	fmt.Printf("%s for %s %s (%s)\n", verdict, account.FirstName, account.LastName, account.StdID)
	fmt.Printf("  Votes:     %d genuine / %d forged\n", result.GenuineVotes, result.ForgedVotes)
	fmt.Printf("  Threshold: %.3f\n", result.Threshold)
	for i, score := range result.Scores {
		fmt.Printf("  Reference %d: %.4f\n", i+1, score)
	}
	return nil
}
