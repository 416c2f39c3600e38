package cli

import (
	"github.com/spf13/cobra"

	"storefront-chat/internal/domain"
)

func (a *app) contactsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts <role>",
		Short: "List users you can chat with in a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireSession(cmd)
			if err != nil {
				return err
			}
			role, err := domain.ParseRole(args[0])
			if err != nil {
				return err
			}
			contacts, err := a.apiClient(s.Token).FetchContacts(cmd.Context(), role)
			if err != nil {
				return err
			}
			printContacts(a.out, contacts)
			return nil
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <contact-id>",
		Short: "Print the conversation with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireSession(cmd)
			if err != nil {
				return err
			}
			messages, err := a.apiClient(s.Token).FetchHistory(cmd.Context(), s.User.ID, args[0])
			if err != nil {
				return err
			}
			printMessages(a.out, s.User.ID, messages)
			return nil
		},
	}
}
