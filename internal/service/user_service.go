package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"usersapp/internal/events"
	"usersapp/internal/models"
	"usersapp/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden means the caller addressed a user record other than its own.
	ErrForbidden = errors.New("access denied")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) bool
}

type TokenIssuer interface {
	Issue(subjectID string, email string) (string, error)
}

type UserService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	events events.Publisher
	log    zerolog.Logger

	decoyOnce sync.Once
	decoyHash string
}

func NewUserService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		events: events.Nop{},
		log:    log,
	}
}

// WithPublisher sends lifecycle events to p. Publishing is best effort.
func (s *UserService) WithPublisher(p events.Publisher) *UserService {
	s.events = p
	return s
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.Create(ctx, models.NewUser{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	s.publish(ctx, events.UserRegistered, user.ID, nil)
	return user, nil
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *UserService) Login(ctx context.Context, input LoginInput) (string, error) {
	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// burn the same bcrypt time as a real comparison
			s.hasher.Verify(input.Password, s.decoy())
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.ListByCreatedDesc(ctx)
}

// Get, Update and Delete check ownership before touching the repository, so a
// request for someone else's id is forbidden whether or not that id exists.
func (s *UserService) Get(ctx context.Context, callerID string, id string) (models.User, error) {
	if callerID != id {
		return models.User{}, ErrForbidden
	}
	return s.users.FindByID(ctx, id)
}

type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}

func (s *UserService) Update(ctx context.Context, callerID string, id string, input UpdateInput) (models.User, error) {
	if callerID != id {
		return models.User{}, ErrForbidden
	}

	changes := models.UserChanges{Name: input.Name, Email: input.Email}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return models.User{}, err
		}
		changes.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, id, changes)
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().
		Str("user_id", user.ID).
		Bool("password_changed", changes.PasswordHash != nil).
		Msg("user updated")
	s.publish(ctx, events.UserUpdated, user.ID, changedFields(changes))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, callerID string, id string) error {
	if callerID != id {
		return ErrForbidden
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Msg("user deleted")
	s.publish(ctx, events.UserDeleted, id, nil)
	return nil
}

func (s *UserService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password")
		if err != nil {
			s.log.Warn().Err(err).Msg("decoy hash failed")
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

func (s *UserService) publish(ctx context.Context, typ events.Type, userID string, changed []string) {
	err := s.events.Publish(ctx, events.Event{
		Type:    typ,
		UserID:  userID,
		Changed: changed,
		At:      time.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Str("user_id", userID).Msg("publish user event failed")
	}
}

func changedFields(changes models.UserChanges) []string {
	var fields []string
	if changes.Name != nil {
		fields = append(fields, "name")
	}
	if changes.Email != nil {
		fields = append(fields, "email")
	}
	if changes.PasswordHash != nil {
		fields = append(fields, "password")
	}
	return fields
}
