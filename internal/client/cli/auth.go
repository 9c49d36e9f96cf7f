package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"usersapp/internal/client/api"
	"usersapp/internal/client/session"
)

func (a *app) registerCommand() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if name, err = a.valueOrPrompt(name, "Name"); err != nil {
				return err
			}
			if email, err = a.valueOrPrompt(email, "Email"); err != nil {
				return err
			}
			if password, err = a.passwordOrPrompt(password); err != nil {
				return err
			}

			user, err := a.client.Register(cmd.Context(), api.RegisterRequest{
				Name:     name,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted without echo when omitted)")
	return cmd
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var err error
			if email, err = a.valueOrPrompt(email, "Email"); err != nil {
				return err
			}
			if password, err = a.passwordOrPrompt(password); err != nil {
				return err
			}

			token, err := a.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			if err := a.session.Login(ctx, token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			current := a.session.Current()
			if current.User != nil {
				// best effort: the token alone is enough to be logged in
				if user, err := a.client.GetUser(ctx, token, current.User.ID); err == nil {
					_ = a.session.SetUser(ctx, identityOf(user))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted without echo when omitted)")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current := a.session.Current()
			if current.Token == "" || current.User == nil {
				return errNotLoggedIn
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:    %s\n", current.User.ID)
			if current.User.Email != "" {
				fmt.Fprintf(out, "email: %s\n", current.User.Email)
			}
			if current.User.Name != "" {
				fmt.Fprintf(out, "name:  %s\n", current.User.Name)
			}
			return nil
		},
	}
}

func identityOf(user api.User) *session.Identity {
	return &session.Identity{ID: user.ID, Email: user.Email, Name: user.Name}
}
