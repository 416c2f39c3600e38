package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"storefront-chat/internal/domain"
)

func printContacts(w io.Writer, contacts []domain.Contact) {
	if len(contacts) == 0 {
		fmt.Fprintln(w, "No contacts")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Role)
	}
	tw.Flush()
}

func formatMessage(me string, m domain.Message) string {
	who := m.SenderID
	if m.SenderID == me {
		who = "you"
	}
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), who, m.Text)
	switch m.State {
	case domain.DeliveryStatePending:
		line += " (sending)"
	case domain.DeliveryStateFailed:
		line += fmt.Sprintf(" (failed, /retry %s)", m.ID)
	}
	return line
}

func printMessages(w io.Writer, me string, messages []domain.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "No messages yet")
		return
	}
	for _, m := range messages {
		fmt.Fprintln(w, formatMessage(me, m))
	}
}
