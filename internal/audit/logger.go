package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/middleware"
)

var (
	// ErrNilRepository is returned when a nil repository is passed to logging functions.
	ErrNilRepository = errors.New("audit repository cannot be nil")
	// ErrInvalidEntityType is returned for an empty or unknown entity type.
	ErrInvalidEntityType = errors.New("invalid entity type")
	// ErrInvalidEntityID is returned when the entity ID is empty.
	ErrInvalidEntityID = errors.New("entity ID cannot be empty")
	// ErrInvalidAction is returned for an empty or unknown action.
	ErrInvalidAction = errors.New("invalid action")
	// ErrChainBroken is returned by VerifyHashChain when an entry does not
	// reference the hash of its predecessor.
	ErrChainBroken = errors.New("audit hash chain broken")
)

// ValidEntityTypes defines the allowed entity types.
var ValidEntityTypes = map[string]bool{
	EntityCivilian:   true,
	EntityProfile:    true,
	EntityAllocation: true,
}

// ValidActions defines the allowed actions.
var ValidActions = map[string]bool{
	ActionViewCivilianDetail: true,
	ActionRevealPII:          true,
	ActionSubmitProfile:      true,
	ActionAllocateCivilian:   true,
}

func validateLogEntry(entry LogEntry) error {
	if entry.EntityType == "" || !ValidEntityTypes[entry.EntityType] {
		return fmt.Errorf("%w: %q", ErrInvalidEntityType, entry.EntityType)
	}
	if entry.EntityID == "" {
		return ErrInvalidEntityID
	}
	if entry.Action == "" || !ValidActions[entry.Action] {
		return fmt.Errorf("%w: %q", ErrInvalidAction, entry.Action)
	}
	return nil
}

// Log records an event performed by requester. Request id, client IP and
// user agent are taken from the context when present.
//
// Audit failures are returned to the caller: operations that must be audited
// fail closed when the trail is unavailable.
func Log(ctx context.Context, repo Repository, requester auth.Requester, entityType, entityID, action, outcome string) error {
	if repo == nil {
		return ErrNilRepository
	}
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	entry := LogEntry{
		ActorID:    requester.UserID,
		ActorRole:  string(requester.Role),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(ctx),
		IPAddress:  middleware.GetClientIP(ctx),
		UserAgent:  middleware.GetUserAgent(ctx),
	}
	if err := validateLogEntry(entry); err != nil {
		return err
	}

	if _, err := repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// verifyChain checks that entries, oldest first, form an unbroken chain.
func verifyChain(entries []*Entry) error {
	prev := ""
	for i, e := range entries {
		if e.PreviousHash != prev {
			return fmt.Errorf("%w at entry %d (%s)", ErrChainBroken, i, e.ID)
		}
		prev = e.Hash()
	}
	return nil
}
