package session

import (
	"context"
	"errors"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type State struct {
	Token string    `json:"token"`
	User  *Identity `json:"user,omitempty"`
}

// DecodeIdentity reads the subject and email out of a token without checking
// its signature. Only the server can verify a token; the client just needs to
// know who it belongs to.
func DecodeIdentity(token string) (*Identity, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, false
	}
	email, _ := claims["email"].(string)
	return &Identity{ID: sub, Email: email}, true
}

// Manager holds the current session and writes every change through to its
// store.
type Manager struct {
	store Store
	log   zerolog.Logger

	mu    sync.RWMutex
	state State
}

func NewManager(store Store, log zerolog.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// Load rehydrates the session. A missing or unreadable record leaves the
// manager logged out.
func (m *Manager) Load(ctx context.Context) error {
	state, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		state = State{}
	case errors.Is(err, ErrCorrupt):
		m.log.Warn().Err(err).Msg("discarding stored session")
		state = State{}
	case err != nil:
		return err
	}

	if state.Token == "" {
		state = State{}
	} else if state.User == nil {
		state.User, _ = DecodeIdentity(state.Token)
	}

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return nil
}

func (m *Manager) Login(ctx context.Context, token string) error {
	identity, _ := DecodeIdentity(token)
	return m.set(ctx, State{Token: token, User: identity})
}

func (m *Manager) Logout(ctx context.Context) error {
	return m.set(ctx, State{})
}

// SetUser replaces the cached identity and keeps the token.
func (m *Manager) SetUser(ctx context.Context, user *Identity) error {
	m.mu.RLock()
	next := State{Token: m.state.Token, User: user}
	m.mu.RUnlock()
	return m.set(ctx, next)
}

func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := m.state
	if state.User != nil {
		user := *state.User
		state.User = &user
	}
	return state
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Token != ""
}

// set persists first so memory never runs ahead of the store. A state with
// no token removes the record.
func (m *Manager) set(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if state.Token == "" {
		err = m.store.Delete(ctx)
	} else {
		err = m.store.Save(ctx, state)
	}
	if err != nil {
		return err
	}

	m.state = state
	return nil
}
