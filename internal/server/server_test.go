package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"usersapp/internal/config"
	"usersapp/internal/database"
	"usersapp/internal/handlers"
	"usersapp/internal/repository"
	"usersapp/internal/security"
	"usersapp/internal/service"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	db, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.AppConfig{
		Environment: "test",
		HTTP:        config.HTTPConfig{Host: "127.0.0.1", Port: 3333},
	}
	repo := repository.NewSQLiteUserRepository(db)
	tokens := security.NewTokenIssuer("secret", time.Hour)
	users := service.NewUserService(repo, security.NewPasswordHasher(bcrypt.MinCost), tokens, zerolog.Nop())

	return NewHTTPServer(cfg, zerolog.Nop(), handlers.NewHandlerSet(handlers.Deps{
		Log:      zerolog.Nop(),
		Config:   cfg,
		Users:    users,
		Tokens:   tokens,
		Database: repo,
	}))
}

func TestHTTPServer_Routes(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, "127.0.0.1:3333", srv.server.Addr)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"route not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPServer_ShutdownBeforeStart(t *testing.T) {
	srv := newTestServer(t)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
