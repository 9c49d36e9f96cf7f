package events

import (
	"context"

	"github.com/rs/zerolog"
)

// AuditLog writes every event as a structured log line.
type AuditLog struct {
	logger zerolog.Logger
}

func NewAuditLog(logger zerolog.Logger) *AuditLog {
	return &AuditLog{logger: logger.With().Str("component", "audit").Logger()}
}

func (a *AuditLog) Handle(_ context.Context, event Event) error {
	entry := a.logger.Info()
	switch event.Type {
	case UserRegistered, UserUpdated, UserDeleted:
	default:
		entry = a.logger.Warn()
	}

	entry.
		Str("event", string(event.Type)).
		Str("user_id", event.UserID).
		Strs("changed", event.Changed).
		Time("at", event.At).
		Msg("user event")
	return nil
}
