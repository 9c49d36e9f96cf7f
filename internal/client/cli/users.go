package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"usersapp/internal/client/api"
)

func (a *app) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and manage user records",
	}
	cmd.AddCommand(
		a.usersListCommand(),
		a.usersGetCommand(),
		a.usersUpdateCommand(),
		a.usersDeleteCommand(),
	)
	return cmd
}

func (a *app) usersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}

			users, err := a.client.ListUsers(cmd.Context(), token)
			if err != nil {
				return a.checkAuth(cmd.Context(), err)
			}

			renderUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
}

func (a *app) usersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one user (defaults to yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			id, err := a.resolveID(args)
			if err != nil {
				return err
			}

			user, err := a.client.GetUser(cmd.Context(), token, id)
			if err != nil {
				return a.checkAuth(cmd.Context(), err)
			}

			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
}

func (a *app) usersUpdateCommand() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Change name, email or password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var req api.UpdateRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			if cmd.Flags().Changed("password") {
				req.Password = &password
			}
			if req.Name == nil && req.Email == nil && req.Password == nil {
				return errors.New("provide at least one of --name, --email or --password")
			}

			token, err := a.token()
			if err != nil {
				return err
			}
			id, err := a.resolveID(args)
			if err != nil {
				return err
			}

			user, err := a.client.UpdateUser(ctx, token, id, req)
			if err != nil {
				return a.checkAuth(ctx, err)
			}

			if current := a.session.Current(); current.User != nil && current.User.ID == user.ID {
				if err := a.session.SetUser(ctx, identityOf(user)); err != nil {
					return fmt.Errorf("save session: %w", err)
				}
			}

			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func (a *app) usersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a user (defaults to yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			token, err := a.token()
			if err != nil {
				return err
			}
			id, err := a.resolveID(args)
			if err != nil {
				return err
			}

			if err := a.client.DeleteUser(ctx, token, id); err != nil {
				return a.checkAuth(ctx, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deleted %s\n", id)

			if current := a.session.Current(); current.User != nil && current.User.ID == id {
				if err := a.session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "logged out")
			}
			return nil
		},
	}
}

func renderUsers(w io.Writer, users []api.User) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Email", "Created"})
	table.SetAutoWrapText(false)
	for _, user := range users {
		table.Append([]string{
			user.ID,
			user.Name,
			user.Email,
			user.CreatedAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
}

func printUser(w io.Writer, user api.User) {
	fmt.Fprintf(w, "id:        %s\n", user.ID)
	fmt.Fprintf(w, "name:      %s\n", user.Name)
	fmt.Fprintf(w, "email:     %s\n", user.Email)
	fmt.Fprintf(w, "createdAt: %s\n", user.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "updatedAt: %s\n", user.UpdatedAt.Format(time.RFC3339))
}
