package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"storefront-chat/config"
	"storefront-chat/internal/api"
	"storefront-chat/internal/realtime"
	"storefront-chat/internal/session"
	"storefront-chat/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app holds what every command shares. It is filled in by the root
// command's pre-run hook.
type app struct {
	in  io.Reader
	out io.Writer

	configPath string
	profile    string
	verbose    bool

	cfg      *config.Config
	log      *logger.Logger
	sessions *session.Manager
	closer   func()
}

// NewRootCommand builds the chatctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{in: os.Stdin, out: os.Stdout}

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Terminal client for the storefront chat",
		Long: `chatctl signs in as a storefront user and chats with customers,
store managers, delivery agents and admins over the chat backend.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.in = cmd.InOrStdin()
			a.out = cmd.OutOrStdout()
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file overlaid on the environment")
	root.PersistentFlags().StringVarP(&a.profile, "profile", "p", "", "session profile (default from SESSION_PROFILE)")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.contactsCommand(),
		a.historyCommand(),
		a.sendCommand(),
		a.chatCommand(),
	)
	return root
}

// Execute runs chatctl. This is called by main.main().
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) setup(ctx context.Context) error {
	a.cfg = config.LoadConfig()
	if a.configPath != "" {
		if err := config.LoadFile(a.cfg, a.configPath); err != nil {
			return err
		}
	}
	if a.profile != "" {
		a.cfg.SessionProfile = a.profile
	}

	if a.verbose {
		a.log = logger.New(a.cfg.AppMode)
	} else {
		a.log = logger.NewNop()
	}

	store, closer, err := session.OpenStore(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	a.sessions = session.NewManager(store, a.log)
	a.closer = closer
	return nil
}

func (a *app) teardown() {
	if a.closer != nil {
		a.closer()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

func (a *app) apiClient(token string) *api.Client {
	cfg := api.Config{
		BaseURL:        a.cfg.APIURL,
		Timeout:        a.cfg.HTTPTimeout,
		MaxRetries:     a.cfg.HTTPMaxRetries,
		InitialBackoff: a.cfg.HTTPInitialDelay,
		MaxBackoff:     a.cfg.HTTPMaxDelay,
	}
	return api.New(cfg, api.StaticToken(token), a.log)
}

func (a *app) realtimeClient(token string) *realtime.Client {
	return realtime.NewClient(realtime.Config{
		URL:        a.cfg.SocketURL,
		MaxBackoff: a.cfg.SocketMaxBackoff,
	}, func() string { return token }, a.log)
}
