package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/store"
)

var tokenEmail string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for an existing user",
	Long: `Prints a signed API token for the user with the given email, for use in an
"Authorization: Bearer <token>" header or with "taskgraph graphql --token".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenEmail == "" {
			return errors.New("--email is required")
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return issueToken(ctx, st, tokenEmail, cmd.OutOrStdout())
	},
}

func issueToken(ctx context.Context, st *store.Store, email string, out io.Writer) error {
	if cfg.Auth.Secret == "" {
		return errors.New("auth secret is required (set TASKGRAPH_SECRET)")
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
	if err != nil {
		return err
	}

	u, err := st.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no user with email %s", email)
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return fmt.Errorf("user %s is inactive", u.Username)
	}

	token, err := tokens.Issue(u.ID, u.Username, u.Email)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenEmail, "email", "e", "", "Email of the user to issue the token for")
	rootCmd.AddCommand(tokenCmd)
}
