package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds every event the API emits.
const StreamEvents = "TREINOIA_EVENTS"

// Subject constants.
const (
	SubjectUsageEvent = "treinoia.events.usage"
	SubjectAuditEvent = "treinoia.events.audit"
)

// UsageEvent is published after every AI gateway call, successful or not.
type UsageEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Kind         string    `json:"kind"`    // chat_messages or photo_analyses
	Outcome      string    `json:"outcome"` // ok, remote_error, invalid_output, transport_error, config_error
	RemoteStatus int       `json:"remote_status,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// AuditEvent is published for quota denials and entitlement changes.
type AuditEvent struct {
	OwnerUserID  uuid.UUID `json:"owner_user_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}
