// Package audit records who accessed civilian data and which state changes
// they made, in an append-only, hash-chained trail.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Entity types.
const (
	EntityCivilian   = "civilian"
	EntityProfile    = "profile"
	EntityAllocation = "allocation"
	EntityRequest    = "request"
)

// Actions.
const (
	ActionViewCivilianDetail = "view_civilian_detail"
	ActionRevealPII          = "reveal_pii"
	ActionSubmitProfile      = "submit_profile"
	ActionAllocateCivilian   = "allocate_civilian"
	ActionCreateRequest      = "create_request"
)

// Entry is a stored audit event.
type Entry struct {
	ID         string
	ActorID    string
	ActorRole  string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
	CreatedAt  time.Time

	RequestID string
	IPAddress string
	UserAgent string

	// PreviousHash is the hash of the entry appended before this one.
	// Empty for the first entry.
	PreviousHash string
}

// Hash returns the SHA-256 of the entry's content, chained over PreviousHash.
func (e *Entry) Hash() string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		e.ID,
		e.ActorID,
		e.ActorRole,
		e.EntityType,
		e.EntityID,
		e.Action,
		e.Outcome,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.RequestID,
		e.PreviousHash,
	}, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// LogEntry is the input for appending an audit event.
type LogEntry struct {
	ActorID    string
	ActorRole  string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string

	RequestID string
	IPAddress string
	UserAgent string
}
