package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ashureev/aidiary/internal/agent"
	"github.com/ashureev/aidiary/internal/identity"
)

const defaultCLIUser = "local-cli"

// buildChatCmd creates the "chat" command, which runs one turn against the local database.
func buildChatCmd() *cobra.Command {
	var (
		userID     string
		newSession bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one chat turn from the terminal",
		Example: `  aidiary chat "diary: walked to the lake after work"
  aidiary chat --user alice --new-session "what is on my list today?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, userID, strings.Join(args, " "), newSession, verbose)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", defaultCLIUser, "User id to chat as")
	cmd.Flags().BoolVar(&newSession, "new-session", false, "Start a new chat session before the turn")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the classification path and tool outcome")
	return cmd
}

func runChat(cmd *cobra.Command, userID, message string, newSession, verbose bool) error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := identity.EnsureUser(ctx, a.repo, userID, userID); err != nil {
		return err
	}
	if newSession {
		if _, err := a.sessions.NewSession(ctx, userID, ""); err != nil {
			return err
		}
	}

	res, err := a.chat.Chat(ctx, userID, agent.ChannelCLI, message)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Reply)
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "session=%s kind=%s path=%s\n", res.SessionID, res.Kind, res.Path)
		if res.Tool != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "tool=%s status=%s message=%s\n", res.Tool.Name, res.Tool.Result.Status, res.Tool.Result.Message)
		}
	}
	return nil
}

// buildTokenCmd creates the "token" command, which mints a bearer token for a user id.
func buildTokenCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:     "token [user-id]",
		Short:   "Issue a JWT for a user (requires JWT_SECRET)",
		Example: `  JWT_SECRET=change-me aidiary token alice --name "Alice"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			if username == "" {
				username = args[0]
			}
			token, err := identity.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry).Issue(args[0], username)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "name", "n", "", "Display name stored in the token (defaults to the user id)")
	return cmd
}
