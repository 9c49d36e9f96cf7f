package events

import (
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	UserRegistered Type = "user.registered"
	UserUpdated    Type = "user.updated"
	UserDeleted    Type = "user.deleted"
)

// Event is one user lifecycle change. Changed lists field names only, never
// values.
type Event struct {
	Type    Type
	UserID  string
	Changed []string
	At      time.Time
}

// Values flattens the event into redis stream fields.
func (e Event) Values() map[string]any {
	return map[string]any{
		"type":    string(e.Type),
		"user_id": e.UserID,
		"changed": strings.Join(e.Changed, ","),
		"at":      e.At.UTC().Format(time.RFC3339Nano),
	}
}

// Decode is the inverse of Values.
func Decode(values map[string]any) (Event, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	e := Event{
		Type:   Type(str("type")),
		UserID: str("user_id"),
	}
	if e.Type == "" || e.UserID == "" {
		return Event{}, fmt.Errorf("event missing type or user_id: %v", values)
	}

	if changed := str("changed"); changed != "" {
		e.Changed = strings.Split(changed, ",")
	}

	at, err := time.Parse(time.RFC3339Nano, str("at"))
	if err != nil {
		return Event{}, fmt.Errorf("event timestamp: %w", err)
	}
	e.At = at
	return e, nil
}
