package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewUserID returns a random (v4) UUID string.
func NewUserID() string {
	return uuid.NewString()
}

// NewRequestID returns a time-sortable identifier for tracing requests in logs.
func NewRequestID() string {
	return ksuid.New().String()
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
