package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"usersapp/internal/client/session"
	"usersapp/internal/config"
	"usersapp/internal/database"
	"usersapp/internal/handlers"
	"usersapp/internal/repository"
	"usersapp/internal/security"
	"usersapp/internal/server"
	"usersapp/internal/service"
)

type harness struct {
	t           *testing.T
	apiURL      string
	sessionFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.AppConfig{Environment: "test"}
	repo := repository.NewSQLiteUserRepository(db)
	tokens := security.NewTokenIssuer("cli-secret", time.Hour)
	users := service.NewUserService(repo, security.NewPasswordHasher(bcrypt.MinCost), tokens, zerolog.Nop())
	srv := server.NewHTTPServer(cfg, zerolog.Nop(), handlers.NewHandlerSet(handlers.Deps{
		Log:      zerolog.Nop(),
		Config:   cfg,
		Users:    users,
		Tokens:   tokens,
		Database: repo,
	}))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{
		t:           t,
		apiURL:      ts.URL,
		sessionFile: filepath.Join(t.TempDir(), "session.db"),
	}
}

// run executes one invocation; stdin feeds prompts and password is what the
// no-echo prompt returns.
func (h *harness) run(stdin, password string, args ...string) (string, error) {
	h.t.Helper()

	var out bytes.Buffer
	env := Env{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: &out,
		ReadPassword: func(string) (string, error) {
			return password, nil
		},
		Log: zerolog.Nop(),
	}

	full := append([]string{"--api-url", h.apiURL, "--session-file", h.sessionFile}, args...)
	err := Run(context.Background(), env, full)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", "", args...)
	require.NoError(h.t, err, out)
	return out
}

func TestCLI_AccountLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("register", "--name", "Ana", "--email", "ana@example.com", "--password", "secret123")
	assert.Contains(t, out, "registered ana@example.com")

	_, err := h.run("", "", "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out, err = h.run("", "secret123", "login", "--email", "ana@example.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "logged in as ana@example.com")

	out = h.mustRun("whoami")
	assert.Contains(t, out, "email: ana@example.com")
	assert.Contains(t, out, "name:  Ana")

	out = h.mustRun("users", "update", "--name", "Ana B")
	assert.Contains(t, out, "name:      Ana B")
	assert.Contains(t, h.mustRun("whoami"), "name:  Ana B")

	out = h.mustRun("users", "list")
	assert.Contains(t, out, "ana@example.com")
	assert.Contains(t, out, "EMAIL")

	out = h.mustRun("users", "delete")
	assert.Contains(t, out, "logged out")

	_, err = h.run("", "", "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	_, err = h.run("", "", "login", "--email", "ana@example.com", "--password", "secret123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestCLI_RegisterPrompts(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("Bia\nbia@example.com\n", "secret123", "register")
	require.NoError(t, err, out)
	assert.Contains(t, out, "registered bia@example.com")
}

func TestCLI_OtherUsersAreForbidden(t *testing.T) {
	h := newHarness(t)

	h.mustRun("register", "--name", "Ana", "--email", "ana@example.com", "--password", "secret123")
	out := h.mustRun("register", "--name", "Bia", "--email", "bia@example.com", "--password", "secret123")
	biaID := strings.TrimSuffix(strings.SplitN(out, "(", 2)[1], ")\n")

	h.mustRun("login", "--email", "ana@example.com", "--password", "secret123")

	_, err := h.run("", "", "users", "get", biaID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	_, err = h.run("", "", "users", "delete", biaID)
	require.Error(t, err)

	// still logged in after a 403
	assert.Contains(t, h.mustRun("whoami"), "ana@example.com")
}

func TestCLI_UpdateNeedsAField(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "", "users", "update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide at least one")
}

func TestCLI_RejectedTokenClearsSession(t *testing.T) {
	h := newHarness(t)

	forged, err := security.NewTokenIssuer("someone-else", time.Hour).Issue("u1", "x@example.com")
	require.NoError(t, err)

	store, err := session.OpenBoltStore(h.sessionFile)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), session.State{Token: forged}))
	require.NoError(t, store.Close())

	_, err = h.run("", "", "users", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	_, err = h.run("", "", "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCLI_Logout(t *testing.T) {
	h := newHarness(t)

	h.mustRun("register", "--name", "Ana", "--email", "ana@example.com", "--password", "secret123")
	h.mustRun("login", "--email", "ana@example.com", "--password", "secret123")

	assert.Contains(t, h.mustRun("logout"), "logged out")

	_, err := h.run("", "", "users", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)
}
