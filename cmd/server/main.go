// aidiary - conversational diary and task assistant server
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aidiary",
		Short: "aidiary - diary and task assistant with tool-calling chat",
		Long: `aidiary keeps a diary, tasks and reminders through a chat assistant.

Model replies are classified; explicit tool calls are executed once, and claimed
but unperformed diary writes are performed on the model's behalf.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildTokenCmd(),
	)
	return rootCmd
}
