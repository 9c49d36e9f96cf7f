package models

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser is what the repository needs to insert a record; id and
// timestamps are assigned on insert.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
}

// UserChanges carries a partial update. Nil fields are left untouched.
type UserChanges struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

func (c UserChanges) Empty() bool {
	return c.Name == nil && c.Email == nil && c.PasswordHash == nil
}
