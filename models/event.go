package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the type of a lifecycle event
type EventKind string

const (
	EventKindPolicyCreated   EventKind = "policy_created"
	EventKindPolicyResolved  EventKind = "policy_resolved"
	EventKindClaimRegistered EventKind = "claim_registered"
)

// Event is an audit-trail entry emitted by the lifecycle engine. Payload
// field names and order are fixed; external indexers depend on them.
type Event struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Kind      EventKind       `json:"kind" db:"kind"`
	PolicyID  PolicyID        `json:"policy_id" db:"policy_id"`
	Payload   json.RawMessage `json:"payload" db:"payload"` // JSONB
	RequestID string          `json:"request_id,omitempty" db:"request_id"`
	EmittedAt time.Time       `json:"emitted_at" db:"emitted_at"`
}

// TableName returns the table name for the Event model
func (Event) TableName() string {
	return "events"
}

// PolicyCreatedPayload carries the creation event fields.
type PolicyCreatedPayload struct {
	ID       PolicyID  `json:"id"`
	Owner    Address   `json:"owner"`
	Target   Address   `json:"target"`
	Deadline time.Time `json:"deadline"`
	Coverage int64     `json:"coverage"`
}

// PolicyResolvedPayload carries the resolution event fields.
type PolicyResolvedPayload struct {
	ID          PolicyID `json:"id"`
	Compensated bool     `json:"compensated"`
}

// ClaimRegisteredPayload carries the claim-registration event fields.
type ClaimRegisteredPayload struct {
	ID     PolicyID  `json:"id"`
	Owner  Address   `json:"owner"`
	Target Address   `json:"target"`
	At     time.Time `json:"at"`
}

// NewEvent creates an event with a marshalled payload.
func NewEvent(kind EventKind, policyID PolicyID, payload interface{}) *Event {
	e := &Event{
		ID:        uuid.New(),
		Kind:      kind,
		PolicyID:  policyID,
		EmittedAt: time.Now(),
	}
	if data, err := json.Marshal(payload); err == nil {
		e.Payload = data
	}
	return e
}

// WithRequestID attaches the originating request id.
func (e *Event) WithRequestID(requestID string) *Event {
	e.RequestID = requestID
	return e
}
