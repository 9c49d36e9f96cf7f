package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"usersapp/internal/ids"
	"usersapp/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresUserRepository struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool, clock: time.Now}
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	return scanPgUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`
	return scanPgUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresUserRepository) Create(ctx context.Context, user models.NewUser) (models.User, error) {
	if _, err := r.FindByEmail(ctx, user.Email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}

	const query = `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, name, email, password_hash, created_at, updated_at
	`

	created, err := scanPgUser(r.pool.QueryRow(ctx, query,
		ids.NewUserID(),
		user.Name,
		user.Email,
		user.PasswordHash,
		now(r.clock),
	))
	if err != nil {
		return models.User{}, mapPgError(err)
	}
	return created, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, id string, changes models.UserChanges) (models.User, error) {
	// nothing to write; updated_at stays as it is
	if changes.Empty() {
		return r.FindByID(ctx, id)
	}

	var updated models.User

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const selectQuery = `
			SELECT id, name, email, password_hash, created_at, updated_at
			FROM users WHERE id = $1
			FOR UPDATE
		`
		current, err := scanPgUser(tx.QueryRow(ctx, selectQuery, id))
		if err != nil {
			return err
		}

		if changes.Email != nil && *changes.Email != current.Email {
			const emailQuery = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`
			var taken bool
			if err := tx.QueryRow(ctx, emailQuery, *changes.Email, id).Scan(&taken); err != nil {
				return err
			}
			if taken {
				return ErrEmailTaken
			}
		}

		const updateQuery = `
			UPDATE users
			SET name = COALESCE($2, name),
			    email = COALESCE($3, email),
			    password_hash = COALESCE($4, password_hash),
			    updated_at = $5
			WHERE id = $1
			RETURNING id, name, email, password_hash, created_at, updated_at
		`
		updated, err = scanPgUser(tx.QueryRow(ctx, updateQuery,
			id,
			changes.Name,
			changes.Email,
			changes.PasswordHash,
			nextUpdatedAt(r.clock, current.UpdatedAt),
		))
		return err
	})
	if err != nil {
		return models.User{}, mapPgError(err)
	}
	return updated, nil
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListByCreatedDesc(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		ORDER BY created_at DESC, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *PostgresUserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanPgUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrEmailTaken
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEmailTaken) {
		return err
	}
	return fmt.Errorf("postgres: %w", err)
}
