package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signet",
	Short: "Handwritten signature recognition and verification per room",
	Long: `Signet enrolls reference signatures of room members, trains a
per-room similarity model and uses it to recognize who signed a sheet
or to verify that a signature belongs to the claimed member.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
