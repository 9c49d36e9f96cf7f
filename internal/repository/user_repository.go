package repository

import (
	"context"
	"errors"
	"time"

	"usersapp/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserRepository persists users. Email uniqueness is checked before writes
// and backed by a unique constraint, so concurrent writers still get
// ErrEmailTaken rather than a raw driver error.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, user models.NewUser) (models.User, error)
	Update(ctx context.Context, id string, changes models.UserChanges) (models.User, error)
	Delete(ctx context.Context, id string) error
	ListByCreatedDesc(ctx context.Context) ([]models.User, error)
	Ping(ctx context.Context) error
}

// timestamps are kept at microsecond precision, the finest postgres stores.
func now(clock func() time.Time) time.Time {
	return clock().UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt keeps updated_at strictly increasing even when two writes
// land within the same microsecond.
func nextUpdatedAt(clock func() time.Time, previous time.Time) time.Time {
	ts := now(clock)
	if !ts.After(previous) {
		ts = previous.UTC().Add(time.Microsecond)
	}
	return ts
}
