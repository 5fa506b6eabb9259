package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/buyeth/identity-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDirectoryBootstrapped EventType = "directory_bootstrapped"
	EventUserCreated           EventType = "user_created"
	EventUserUpdated           EventType = "user_updated"
	EventUserDeleted           EventType = "user_deleted"
	EventSessionIssued         EventType = "session_issued"
	EventLoginFailed           EventType = "login_failed"
)

// AllEventTypes lists every event type in publication order of a typical lifecycle.
var AllEventTypes = []EventType{
	EventDirectoryBootstrapped,
	EventUserCreated,
	EventUserUpdated,
	EventUserDeleted,
	EventSessionIssued,
	EventLoginFailed,
}

// Actor identifies who caused an event. Empty for anonymous callers.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// ActorFrom builds an Actor from an authenticated caller, which may be nil.
func ActorFrom(user *domain.SessionUser) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{UserID: user.ID, Role: user.Role}
}

// Event represents a lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, userID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserCreatedPayload payload. Source is bootstrap, signup or admin.
type UserCreatedPayload struct {
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	Source string      `json:"source"`
}

// UserUpdatedPayload lists the changed fields, never their secret values.
type UserUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// SessionIssuedPayload payload.
type SessionIssuedPayload struct {
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Email string `json:"email"`
}
