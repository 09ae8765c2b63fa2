package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AndreyRyab/mama-talk/internal/ui"
	"github.com/AndreyRyab/mama-talk/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mama-talk",
	Short: "Room-based WebRTC signaling relay and terminal chat client",
	Long: `Mama Talk pairs people in named rooms so their browsers (or terminals) can
open direct WebRTC connections to each other. The relay only forwards
session descriptions and ICE candidates; conversations never pass through it.

Run "mama-talk serve" to start the relay, "mama-talk join" to chat from a
terminal and "mama-talk status" to check a running relay.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
