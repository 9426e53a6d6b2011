package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/edu-platform/credential-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
)

// Login failure reasons. These are internal and never sent to callers.
const (
	ReasonAccountNotFound = "account_not_found"
	ReasonInvalidPassword = "invalid_password"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, accountID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// LoginFailedPayload payload. Login input is never carried on events.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}
