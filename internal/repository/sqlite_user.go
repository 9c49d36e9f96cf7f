package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"usersapp/internal/ids"
	"usersapp/internal/models"
)

// SQLiteUserRepository backs local development and tests.
type SQLiteUserRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, clock: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`
	return scanSQLUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`
	return scanSQLUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user models.NewUser) (models.User, error) {
	if _, err := r.FindByEmail(ctx, user.Email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}

	created := models.User{
		ID:           ids.NewUserID(),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    now(r.clock),
	}
	created.UpdatedAt = created.CreatedAt

	const query = `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		created.ID,
		created.Name,
		created.Email,
		created.PasswordHash,
		created.CreatedAt,
		created.UpdatedAt,
	); err != nil {
		return models.User{}, mapSQLiteError(err)
	}
	return created, nil
}

func (r *SQLiteUserRepository) Update(ctx context.Context, id string, changes models.UserChanges) (models.User, error) {
	// nothing to write; updated_at stays as it is
	if changes.Empty() {
		return r.FindByID(ctx, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const selectQuery = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`
	current, err := scanSQLUser(tx.QueryRowContext(ctx, selectQuery, id))
	if err != nil {
		return models.User{}, err
	}

	if changes.Email != nil && *changes.Email != current.Email {
		const emailQuery = `SELECT EXISTS (SELECT 1 FROM users WHERE email = ? AND id <> ?)`
		var taken bool
		if err := tx.QueryRowContext(ctx, emailQuery, *changes.Email, id).Scan(&taken); err != nil {
			return models.User{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return models.User{}, ErrEmailTaken
		}
	}

	updated := current
	if changes.Name != nil {
		updated.Name = *changes.Name
	}
	if changes.Email != nil {
		updated.Email = *changes.Email
	}
	if changes.PasswordHash != nil {
		updated.PasswordHash = *changes.PasswordHash
	}
	updated.UpdatedAt = nextUpdatedAt(r.clock, current.UpdatedAt)

	const updateQuery = `
		UPDATE users
		SET name = ?, email = ?, password_hash = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, updateQuery,
		updated.Name,
		updated.Email,
		updated.PasswordHash,
		updated.UpdatedAt,
		id,
	); err != nil {
		return models.User{}, mapSQLiteError(err)
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, mapSQLiteError(err)
	}
	return updated, nil
}

func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) ListByCreatedDesc(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanSQLUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *SQLiteUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanSQLUser(row rowScanner) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func mapSQLiteError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrEmailTaken
	}
	return fmt.Errorf("sqlite: %w", err)
}
