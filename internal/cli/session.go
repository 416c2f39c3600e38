package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
)

func (a *app) loginCommand() *cobra.Command {
	var (
		id    string
		name  string
		role  string
		email string
		token string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the signed-in user for this profile",
		Long: `login stores the identity and access token handed out by the storefront
auth backend. chatctl never issues tokens itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			s := domain.Session{
				User:  domain.User{ID: id, Name: name, Role: r, Email: email},
				Token: token,
			}
			if err := a.sessions.Save(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", displayName(s.User), s.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "customer, storeManager, deliveryAgent or admin")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&token, "token", "", "access token from the auth backend")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sessions.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.requireSession(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s) id=%s profile=%s\n", displayName(s.User), s.User.Role, s.User.ID, a.cfg.SessionProfile)
			return nil
		},
	}
}

// requireSession loads the saved session or explains how to create one.
func (a *app) requireSession(cmd *cobra.Command) (domain.Session, error) {
	s, err := a.sessions.Load(cmd.Context())
	if errors.Is(err, chat_errors.ErrNoSession) {
		return domain.Session{}, fmt.Errorf("not signed in, run chatctl login: %w", err)
	}
	return s, err
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
