package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/imaging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <account-id> <image> [image...]",
	Short: "Enroll reference signatures for an account",
	Long: `Store one or more reference signature images for an account. Every
image is decoded before anything is stored, so a corrupt file aborts
the whole enrollment.

Examples:
  signet enroll 17 ./refs/6201_a.png ./refs/6201_b.png
  signet enroll 17 ./refs/6201_*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	accountID, err := parseID("account", args[0])
	if err != nil {
		return err
	}
	paths := args[1:]
	if len(paths) == 0 {
		return errNoImages
	}

	normalizer := imaging.Default()
	images := make([][]byte, len(paths))
	for i, path := range paths {
		data, err := readImage(path)
		if err != nil {
			return err
		}
		if _, err := normalizer.Normalize(data); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		images[i] = data
	}

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
	account, err := accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account %d: %w", accountID, database.ErrNotFound)
	}
	signatures, err := database.GetSignatureStore(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	for i, data := range images {
		if _, err := signatures.AddSignature(ctx, account.ID, data); err != nil {
			return fmt.Errorf("storing %s: %w", filepath.Base(paths[i]), err)
		}
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Enrolled %d signatures for %s (%s)\n", len(images), account.Username, account.StdID)
	return nil
}
