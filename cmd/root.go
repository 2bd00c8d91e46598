package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "anydown",
	Short: "Telegram bot that downloads videos from shared links",
	Long:  "AnyDown accepts video links on Telegram, pulls the media through yt-dlp, and sends the file back to the chat.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
