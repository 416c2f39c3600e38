package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storefront-chat/internal/domain"
)

// printer writes conversation updates, printing each entry once per state.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	me    string
	shown map[string]domain.DeliveryState
}

func newPrinter(out io.Writer, me string) *printer {
	return &printer{out: out, me: me, shown: make(map[string]domain.DeliveryState)}
}

func (p *printer) reset() {
	p.mu.Lock()
	p.shown = make(map[string]domain.DeliveryState)
	p.mu.Unlock()
}

// update is registered as a view listener.
func (p *printer) update(messages []domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		if state, ok := p.shown[m.ID]; ok && state == m.State {
			continue
		}
		p.shown[m.ID] = m.State
		fmt.Fprintln(p.out, formatMessage(p.me, m))
	}
}

func (p *printer) println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, a...)
}

const chatHelp = `Type a line to send it. Commands:
  /open <contact-id>   open a conversation
  /filter <role>       list contacts in another role
  /retry <message-id>  resend a failed message
  /quit                leave`

func (a *app) chatCommand() *cobra.Command {
	var (
		filter string
		with   string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			p := newPrinter(a.out, s.User.ID)
			unsubscribe := live.chat.OnChange(p.update)
			defer unsubscribe()

			sess := &chatSession{app: a, live: live, printer: p}
			if filter != "" {
				if err := sess.setFilter(ctx, filter); err != nil {
					return err
				}
			} else {
				printContacts(a.out, live.chat.Directory().Contacts())
			}
			if with != "" {
				if err := sess.open(ctx, with); err != nil {
					return err
				}
			}
			p.println(chatHelp)
			return sess.loop(ctx, a.in)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "contact role to list first")
	cmd.Flags().StringVar(&with, "with", "", "contact id to open")
	return cmd
}

type chatSession struct {
	app     *app
	live    *liveChat
	printer *printer
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := s.handle(ctx, line)
		if err != nil {
			s.printer.println("error:", err)
		}
		if quit {
			break
		}
	}
	s.live.chat.View().Wait()
	return scanner.Err()
}

func (s *chatSession) handle(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		_, err := s.live.chat.Send(ctx, line)
		return false, err
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/open":
		return false, s.open(ctx, arg)
	case "/filter":
		return false, s.setFilter(ctx, arg)
	case "/retry":
		return false, s.live.chat.Retry(ctx, arg)
	case "/help":
		s.printer.println(chatHelp)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
}

func (s *chatSession) setFilter(ctx context.Context, value string) error {
	role, err := domain.ParseRole(value)
	if err != nil {
		return err
	}
	if !domain.CanContact(s.live.chat.Session().User.Role, role) {
		return fmt.Errorf("%s cannot chat with %s", s.live.chat.Session().User.Role, role)
	}
	s.printer.reset()
	contacts := s.live.chat.SetFilter(ctx, role)
	if err := s.live.chat.Directory().LastError(); err != nil {
		return err
	}
	s.printer.mu.Lock()
	printContacts(s.printer.out, contacts)
	s.printer.mu.Unlock()
	return nil
}

func (s *chatSession) open(ctx context.Context, id string) error {
	contact, err := findContact(ctx, s.live.chat, id)
	if err != nil {
		return err
	}
	s.printer.reset()
	s.printer.println("Chatting with", displayName(domain.User{ID: contact.ID, Name: contact.Name}))
	if err := s.live.chat.Select(ctx, contact.ID); err != nil {
		s.app.log.Warnf("history with %s unavailable: %v", contact.ID, err)
	}
	if len(s.live.chat.View().Messages()) == 0 {
		s.printer.println("No messages yet")
	}
	return nil
}
