package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/signet/internal/signature"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train <room-id>",
	Short: "Train the similarity model of a room",
	Long: `Fine-tune the room's similarity model on genuine and impostor pairs
drawn from the enrolled signatures of its members, then store the new
weights as the room's model.

Examples:
  # Train room 3
  signet train 3

  # Train and print the result as JSON
  signet train 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().Bool("json", false, "Output as JSON")
}

// newStepProgressBar creates a progress bar for training steps, or nil if JSON output.
func newStepProgressBar(jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func runTrain(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	roomID, err := parseID("room", args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, service, _, closeBackend, err := setup(ctx, !jsonOutput)
	if err != nil {
		return err
	}
	defer closeBackend()

	bar := newStepProgressBar(jsonOutput)
	progress := func(p signature.TrainProgress) {
		if bar == nil {
			return
		}
		if p.Step == 1 {
			bar.ChangeMax(p.Total)
		}
		bar.Describe(fmt.Sprintf("Training (loss %.4f)", p.Loss))
		bar.Add(1)
	}

	result, err := service.TrainRoom(ctx, roomID, progress)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(map[string]any{
			"room_id":    roomID,
			"batch_size": result.BatchSize,
			"iterations": result.Iterations,
			"final_loss": result.FinalLoss,
			"mean_loss":  result.MeanLoss,
		})
	}

	fmt.Printf("Room %d trained: %d steps of %d pairs\n", roomID, result.Iterations, result.BatchSize)
	fmt.Printf("  Final loss: %.4f\n", result.FinalLoss)
	fmt.Printf("  Mean loss:  %.4f\n", result.MeanLoss)
	return nil
}
