package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and inspect bearer tokens for the notes API",
	Long: `Issue and inspect bearer tokens for the notes API.

Tokens are signed with auth.secret (MEANING_AUTH_SECRET by default), so
they must be issued with the same secret the server runs with.

Examples:
  meaning token issue alice          # Print a token for user "alice"
  export MEANING_TOKEN=$(meaning token issue alice)
  meaning token inspect $MEANING_TOKEN`,
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user-id>",
	Short: "Print a signed token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		tokens := auth.NewTokens(cfg.AuthSecret(), cfg.Auth.TokenTTL)
		token, err := tokens.Issue(args[0])
		if errors.Is(err, auth.ErrNoSecret) {
			return fmt.Errorf("auth.secret is not set (export MEANING_AUTH_SECRET)")
		}
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Show the user a token names, without checking its signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := auth.PeekUserID(args[0])
		if err != nil {
			return err
		}
		return api.Output(map[string]string{"user_id": userID})
	},
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenInspectCmd)
	rootCmd.AddCommand(tokenCmd)
}
