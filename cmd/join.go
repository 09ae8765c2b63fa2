package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AndreyRyab/mama-talk/internal/config"
	"github.com/AndreyRyab/mama-talk/internal/roomname"
	"github.com/AndreyRyab/mama-talk/internal/signaling"
	"github.com/AndreyRyab/mama-talk/internal/ui"
)

var (
	flagServer     string
	flagName       string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagForceRelay bool
)

var joinCmd = &cobra.Command{
	Use:     "join [room-name|room-link]",
	Aliases: []string{"j", "talk"},
	Short:   "Join a room and chat with everyone in it",
	Long: `Join a room by name or by the link someone shared with you. Without a
room a fresh name is generated for you to share.

Messages travel directly between members over WebRTC data channels; the
relay only introduces you to each other.

Examples:
  mama-talk join
  mama-talk join cozy-otter-teapot-42 --name Mum
  mama-talk join https://mama-talk.onrender.com/room/cozy-otter-teapot-42
  mama-talk join cozy-otter-teapot-42 --turn turn.example.com --turn-user u --turn-pass p --relay`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, generated, err := resolveRoom(args)
		if err != nil {
			return err
		}

		cfg, err := config.Load(config.Options{
			ServerURL:  flagServer,
			STUNServer: flagSTUN,
			TURNServer: flagTURN,
			TURNUser:   flagTURNUser,
			TURNPass:   flagTURNPass,
			ForceRelay: flagForceRelay,
		})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		userName := displayName(flagName, os.Getenv)
		logger := slog.Default().With("room", roomID)

		spinner := ui.NewConnectionSpinner(fmt.Sprintf("Connecting to %s", cfg.Host()))
		spinner.Start()

		conn, err := NewConnectionContext(cmd.Context(), cfg, logger)
		if err != nil {
			spinner.Error("Could not reach the relay")
			return err
		}
		defer conn.Close()

		spinner.UpdateMessage(fmt.Sprintf("Joining %s", roomID))
		existing, err := conn.Join(cmd.Context(), roomID, userName)
		if err != nil {
			spinner.Error("Could not join the room")
			return err
		}
		spinner.Success(fmt.Sprintf("Joined %s", roomID))

		fmt.Println(ui.RoomInfo{RoomID: roomID, RoomLink: cfg.GetRoomLink(roomID), UserName: userName}.View())
		if generated {
			ui.PrintInfo("Share the link above so others can join")
		}
		fmt.Println(ui.NewMemberTable(memberRows(conn.SelfID, userName, existing)).View())

		session := newRoomSession(conn, roomID, userName, logger)
		if err := session.run(cmd.Context(), existing); err != nil {
			return fmt.Errorf("chat: %w", err)
		}

		ui.PrintSuccessf("Left %s", roomID)
		return nil
	},
}

// resolveRoom returns the room named by args, or a generated one.
func resolveRoom(args []string) (roomID string, generated bool, err error) {
	if len(args) == 0 {
		roomID, err = roomname.Generate()
		if err != nil {
			return "", false, fmt.Errorf("generate room name: %w", err)
		}
		return roomID, true, nil
	}

	roomID, err = roomname.Parse(args[0])
	if err != nil {
		return "", false, fmt.Errorf("invalid room %q: %w", args[0], err)
	}
	return roomID, false, nil
}

// displayName picks the name shown to other members.
func displayName(flag string, getenv func(string) string) string {
	if name := strings.TrimSpace(flag); name != "" {
		return name
	}
	for _, key := range []string{"MAMA_TALK_NAME", "USER", "USERNAME"} {
		if name := strings.TrimSpace(getenv(key)); name != "" {
			return name
		}
	}
	return "Guest"
}

func memberRows(self signaling.ConnID, selfName string, existing []signaling.UserInfo) []ui.Member {
	rows := make([]ui.Member, 0, len(existing)+1)
	rows = append(rows, ui.Member{Name: selfName, ID: string(self), Status: "you", Self: true})
	for _, u := range existing {
		rows = append(rows, ui.Member{Name: u.UserName, ID: string(u.UserID), Status: "connecting"})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(joinCmd)

	f := joinCmd.Flags()
	f.StringVarP(&flagServer, "server", "s", "", "Relay URL (default $MAMA_TALK_SERVER or http://localhost:3000)")
	f.StringVarP(&flagName, "name", "n", "", "Name shown to others (default $MAMA_TALK_NAME or $USER)")
	f.StringVar(&flagSTUN, "stun", "", "STUN server URL (default $STUN_SERVER)")
	f.StringVar(&flagTURN, "turn", "", "TURN server host (default $TURN_SERVER)")
	f.StringVar(&flagTURNUser, "turn-user", "", "TURN username (default $TURN_USERNAME)")
	f.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (default $TURN_PASSWORD)")
	f.BoolVar(&flagForceRelay, "relay", false, "Only use TURN relay candidates")
}
