package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront-chat/internal/chat"
	"storefront-chat/internal/domain"
	"storefront-chat/internal/realtime"
	chat_errors "storefront-chat/pkg/errors"
)

const connectWait = 3 * time.Second

// liveChat is a started chat with its realtime channel. stop releases both.
type liveChat struct {
	chat      *chat.Chat
	transport *realtime.Client
	stop      func()
}

func (a *app) startChat(ctx context.Context, s domain.Session) (*liveChat, error) {
	transport := a.realtimeClient(s.Token)
	runCtx, cancel := context.WithCancel(context.Background())
	go transport.Run(runCtx)

	c, err := chat.New(s, a.apiClient(s.Token), transport, a.log)
	if err != nil {
		cancel()
		transport.Close()
		return nil, err
	}
	live := &liveChat{
		chat:      c,
		transport: transport,
		stop: func() {
			c.Close()
			transport.Close()
			cancel()
		},
	}
	if err := c.Start(ctx); err != nil {
		live.stop()
		return nil, err
	}
	return live, nil
}

// waitConnected polls until the realtime channel is up or timeout passes.
func waitConnected(ctx context.Context, t *realtime.Client, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for !t.Connected() {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
	return true
}

// findContact looks for id under the current filter, then under every other
// filter the user may use. The filter holding the contact stays selected.
func findContact(ctx context.Context, c *chat.Chat, id string) (domain.Contact, error) {
	if contact, ok := c.Directory().Find(id); ok {
		return contact, nil
	}
	for _, f := range c.Filters() {
		if f == c.Filter() {
			continue
		}
		c.SetFilter(ctx, f)
		if contact, ok := c.Directory().Find(id); ok {
			return contact, nil
		}
	}
	if err := c.Directory().LastError(); err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{}, fmt.Errorf("contact %s: %w", id, chat_errors.ErrNotFound)
}

func (a *app) sendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <contact-id> <text>",
		Short: "Send one message and wait until it is stored",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.requireSession(cmd)
			if err != nil {
				return err
			}
			live, err := a.startChat(ctx, s)
			if err != nil {
				return err
			}
			defer live.stop()

			contact, err := findContact(ctx, live.chat, args[0])
			if err != nil {
				return err
			}
			if err := live.chat.Select(ctx, contact.ID); err != nil {
				a.log.Warnf("history with %s unavailable: %v", contact.ID, err)
			}
			if !waitConnected(ctx, live.transport, connectWait) {
				fmt.Fprintln(a.out, "Realtime channel offline; the message is stored but not pushed live")
			}

			sent, err := live.chat.Send(ctx, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			live.chat.View().Wait()

			for _, m := range live.chat.View().Messages() {
				if m.ClientMessageID != sent.ClientMessageID {
					continue
				}
				fmt.Fprintln(a.out, formatMessage(s.User.ID, m))
				if m.State == domain.DeliveryStateFailed {
					return fmt.Errorf("message to %s was not stored", contact.ID)
				}
				return nil
			}
			return fmt.Errorf("message to %s was dropped", contact.ID)
		},
	}
}
