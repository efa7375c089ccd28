package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/signet/internal/config"
	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/weights"
	"github.com/spf13/cobra"
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Room commands",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room with an untrained model",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoomCreate,
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rooms",
	Args:  cobra.NoArgs,
	RunE:  runRoomList,
}

var roomJoinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Add an account to a room",
	Long: `Add an account to a room. Its check status starts as pending.

Examples:
  signet room join 3 --std-id 6201
  signet room join 3 --account-id 17`,
	Args: cobra.ExactArgs(1),
	RunE: runRoomJoin,
}

var roomMembersCmd = &cobra.Command{
	Use:   "members <room-id>",
	Short: "List room members with their check status",
	Long: `List the members of a room with their check status.

Examples:
  signet room members 3
  signet room members 3 --csv > exam_attendance.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runRoomMembers,
}

var roomDeleteCmd = &cobra.Command{
	Use:   "delete <room-id>",
	Short: "Delete a room together with its trained model",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoomDelete,
}

func init() {
	rootCmd.AddCommand(roomCmd)
	roomCmd.AddCommand(roomCreateCmd)
	roomCmd.AddCommand(roomListCmd)
	roomCmd.AddCommand(roomJoinCmd)
	roomCmd.AddCommand(roomMembersCmd)
	roomCmd.AddCommand(roomDeleteCmd)

	roomCreateCmd.Flags().String("description", "", "Room description")
	roomCreateCmd.Flags().Int64("owner", 0, "Owner account id")

	roomJoinCmd.Flags().String("std-id", "", "Student id of the joining account")
	roomJoinCmd.Flags().Int64("account-id", 0, "Id of the joining account")

	roomMembersCmd.Flags().Bool("csv", false, "Output as CSV")
}

// withRooms connects the backend and hands the room store to fn.
func withRooms(fn func(ctx context.Context, cfg *config.Config, rooms database.RoomStore) error) error {
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

	rooms, err := database.GetRoomStore(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, cfg, rooms)
}

func runRoomCreate(cmd *cobra.Command, args []string) error {
	room := &database.Room{
		Name:        args[0],
		Description: mustGetString(cmd, "description"),
		OwnerID:     mustGetInt64(cmd, "owner"),
	}
	return withRooms(func(ctx context.Context, _ *config.Config, rooms database.RoomStore) error {
		id, err := rooms.CreateRoom(ctx, room)
		if err != nil {
			return err
		}
		fmt.Printf("Created room %d (%s) with model %s\n", id, room.Name, constants.BaselineModelName)
		return nil
	})
}

func runRoomList(cmd *cobra.Command, args []string) error {
	return withRooms(func(ctx context.Context, _ *config.Config, rooms database.RoomStore) error {
		list, err := rooms.ListRooms(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No rooms found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMODEL\tSTATUS")
		fmt.Fprintln(w, "--\t----\t-----\t------")
		for _, r := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.ModelName, r.TrainStatus)
		}
		return w.Flush()
	})
}

func runRoomJoin(cmd *cobra.Command, args []string) error {
	roomID, err := parseID("room", args[0])
	if err != nil {
		return err
	}
	return withRooms(func(ctx context.Context, _ *config.Config, rooms database.RoomStore) error {
		account, err := resolveAccount(ctx, cmd)
		if err != nil {
			return err
		}
		err = rooms.JoinRoom(ctx, roomID, account.ID)
		if errors.Is(err, database.ErrAlreadyMember) {
			fmt.Printf("%s already joined room %d\n", account.Username, roomID)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s joined room %d\n", account.Username, roomID)
		return nil
	})
}

func runRoomMembers(cmd *cobra.Command, args []string) error {
	csvOutput := mustGetBool(cmd, "csv")
	roomID, err := parseID("room", args[0])
	if err != nil {
		return err
	}
	return withRooms(func(ctx context.Context, _ *config.Config, rooms database.RoomStore) error {
		members, err := rooms.ListMembers(ctx, roomID)
		if err != nil {
			return err
		}
		if csvOutput {
			return database.WriteMembersReport(os.Stdout, members)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tSTD ID\tNAME\tSTATUS")
		fmt.Fprintln(w, "-------\t------\t----\t------")
		for _, m := range members {
			fmt.Fprintf(w, "%d\t%s\t%s %s\t%s\n", m.AccountID, m.StdID, m.FirstName, m.LastName, m.CheckStatus)
		}
		return w.Flush()
	})
}

func runRoomDelete(cmd *cobra.Command, args []string) error {
	roomID, err := parseID("room", args[0])
	if err != nil {
		return err
	}
	return withRooms(func(ctx context.Context, cfg *config.Config, rooms database.RoomStore) error {
		modelName, err := rooms.DeleteRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if modelName != "" && modelName != constants.BaselineModelName {
			store, err := weights.NewFileStore(cfg.Model.WeightsDir, cfg.Model.BaselinePath)
			if err != nil {
				return err
			}
			if err := store.Delete(modelName); err != nil {
				fmt.Printf("Warning: failed to remove weights %s: %v\n", modelName, err)
			}
		}
		fmt.Printf("Deleted room %d\n", roomID)
		return nil
	})
}
