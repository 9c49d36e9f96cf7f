package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"usersapp/internal/client/api"
	"usersapp/internal/client/session"
)

const (
	apiURLEnv     = "USERSCTL_API_URL"
	defaultAPIURL = "http://localhost:3333"
)

var errNotLoggedIn = errors.New("not logged in; run `usersctl login` first")

// Env is the process boundary of the CLI. Zero fields fall back to the real
// terminal.
type Env struct {
	In           io.Reader
	Out          io.Writer
	Err          io.Writer
	ReadPassword func(prompt string) (string, error)
	Log          zerolog.Logger
}

type app struct {
	env         Env
	apiURL      string
	sessionFile string

	input   *bufio.Reader
	client  *api.Client
	store   *session.BoltStore
	session *session.Manager
}

// Run executes one CLI invocation. The session store is always closed
// before it returns.
func Run(ctx context.Context, env Env, args []string) error {
	a, root := newApp(env)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

// Execute runs the CLI against the real terminal and returns the exit code.
func Execute(ctx context.Context, args []string, log zerolog.Logger) int {
	if err := Run(ctx, Env{Log: log}, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(env Env) (*app, *cobra.Command) {
	if env.In == nil {
		env.In = os.Stdin
	}
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Err == nil {
		env.Err = os.Stderr
	}

	a := &app{env: env, input: bufio.NewReader(env.In)}
	if a.env.ReadPassword == nil {
		a.env.ReadPassword = a.readPasswordFromTerminal
	}

	root := &cobra.Command{
		Use:           "usersctl",
		Short:         "Manage accounts on a users API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	apiURL := os.Getenv(apiURLEnv)
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", apiURL, "base URL of the users API (env "+apiURLEnv+")")
	root.PersistentFlags().StringVar(&a.sessionFile, "session-file", defaultSessionFile(), "where the login session is kept")

	root.AddCommand(
		a.registerCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.usersCommand(),
	)
	return a, root
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".usersctl", "session.db")
	}
	return filepath.Join(home, ".usersctl", "session.db")
}

func (a *app) open(ctx context.Context) error {
	store, err := session.OpenBoltStore(a.sessionFile)
	if err != nil {
		return err
	}

	a.store = store
	a.session = session.NewManager(store, a.env.Log)
	a.client = api.NewClient(a.apiURL)
	return a.session.Load(ctx)
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// token returns the current bearer token or errNotLoggedIn.
func (a *app) token() (string, error) {
	if !a.session.IsAuthenticated() {
		return "", errNotLoggedIn
	}
	return a.session.Current().Token, nil
}

// resolveID defaults to the logged-in user when no id argument is given.
func (a *app) resolveID(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	current := a.session.Current()
	if current.User == nil {
		return "", errNotLoggedIn
	}
	return current.User.ID, nil
}

// checkAuth drops a session the server no longer accepts.
func (a *app) checkAuth(ctx context.Context, err error) error {
	if !api.IsStatus(err, http.StatusUnauthorized) {
		return err
	}
	if logoutErr := a.session.Logout(ctx); logoutErr != nil {
		a.env.Log.Warn().Err(logoutErr).Msg("clear rejected session")
	}
	return fmt.Errorf("%w; log in again", err)
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprintf(a.env.Out, "%s: ", label)
	line, err := a.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) readPasswordFromTerminal(label string) (string, error) {
	f, ok := a.env.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.prompt(label)
	}

	fmt.Fprintf(a.env.Out, "%s: ", label)
	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.env.Out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// valueOrPrompt returns the flag value, asking for it when the flag is empty.
func (a *app) valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.prompt(label)
}

func (a *app) passwordOrPrompt(value string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.env.ReadPassword("Password")
}
