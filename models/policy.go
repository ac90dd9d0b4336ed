package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PolicyStatus represents the lifecycle state of a policy
type PolicyStatus string

const (
	// PolicyStatusActive is the initial state; all mutating operations require it.
	PolicyStatusActive PolicyStatus = "active"

	// PolicyStatusResolved is terminal. A policy resolves exactly once, either
	// through verification or emergency recovery, and never re-opens.
	PolicyStatusResolved PolicyStatus = "resolved"
)

// PolicyID is a fixed-width identifier derived from (owner, target, creation
// instant). Collisions are treated as practically impossible and not handled.
type PolicyID string

// NewPolicyID derives a deterministic policy identifier.
func NewPolicyID(owner, target Address, createdAt time.Time) PolicyID {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d", owner, target, createdAt.UnixNano())
	return PolicyID(hex.EncodeToString(h.Sum(nil)))
}

// ParsePolicyID validates the fixed-width hex form of a policy identifier.
func ParsePolicyID(s string) (PolicyID, error) {
	if len(s) != sha256.Size*2 {
		return "", fmt.Errorf("policy id must be %d hex characters", sha256.Size*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("policy id is not valid hex: %w", err)
	}
	return PolicyID(s), nil
}

// String implements fmt.Stringer.
func (id PolicyID) String() string {
	return string(id)
}

// Policy is a time-bounded, escrow-backed coverage contract. The full escrow
// (Coverage + FeePaid) is moved into custody atomically with record creation
// and disbursed exactly once at resolution. Amounts are in the ledger's
// smallest unit.
type Policy struct {
	ID          PolicyID     `json:"id" db:"id"`
	Owner       Address      `json:"owner" db:"owner"`
	Target      Address      `json:"target" db:"target"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	Deadline    time.Time    `json:"deadline" db:"deadline"`
	Coverage    int64        `json:"coverage" db:"coverage"`
	FeePaid     int64        `json:"fee_paid" db:"fee_paid"` // immutable after creation
	Status      PolicyStatus `json:"status" db:"status"`
	Compensated bool         `json:"compensated" db:"compensated"` // meaningful only once resolved
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates an active policy record with its derived identifier.
// The deadline is computed by the lifecycle engine, not supplied by callers.
func NewPolicy(owner, target Address, coverage, fee int64, createdAt time.Time, deadline time.Time) *Policy {
	return &Policy{
		ID:          NewPolicyID(owner, target, createdAt),
		Owner:       owner,
		Target:      target,
		CreatedAt:   createdAt,
		Deadline:    deadline,
		Coverage:    coverage,
		FeePaid:     fee,
		Status:      PolicyStatusActive,
		Compensated: false,
	}
}

// Escrow returns the total amount held in custody for this policy.
func (p *Policy) Escrow() int64 {
	return p.Coverage + p.FeePaid
}

// IsActive reports whether the policy can still be mutated.
func (p *Policy) IsActive() bool {
	return p.Status == PolicyStatusActive
}
