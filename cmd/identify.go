package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <room-id> <image>",
	Short: "Recognize who in a room signed an image",
	Long: `Compare a signature image against one randomly drawn reference of every
enrolled room member and report the most probable signer.

Examples:
  # Identify the signer of a scanned attendance sheet cell
  signet identify 3 ./scan/cell_12.png

  # Output as JSON
  signet identify 3 ./scan/cell_12.png --json`,
	Args: cobra.ExactArgs(2),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentify(cmd *cobra.Command, args []string) error {
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

	result, err := service.Identify(ctx, roomID, image)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	accounts, err := database.GetAccountStore(ctx)
	if err != nil {
		return err
	}
	name := func(id int64) string {
		account, err := accounts.GetAccount(ctx, id)
		if err != nil || account == nil {
			return "?"
		}
		return fmt.Sprintf("%s %s (%s)", account.FirstName, account.LastName, account.StdID)
	}

	fmt.Printf("Signer: %s, confidence %.1f%%\n\n", name(result.SignerID), result.Confidence*100)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tNAME\tDISTANCE\tPROBABILITY")
	fmt.Fprintln(w, "-------\t----\t--------\t-----------")
	for i, id := range result.Candidates {
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.3f\n", id, name(id), result.Scores[i], result.Probabilities[i])
	}
	return w.Flush()
}
