package allocation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/audit"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/validate"
)

// RequestType is what an authority asks of a civilian.
type RequestType string

// Request types.
const (
	RequestTypeInfo     RequestType = "info"
	RequestTypeAllocate RequestType = "allocate"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == RequestTypeInfo || t == RequestTypeAllocate
}

// RequestStatusPending is the status of a request nobody has acted on yet.
const RequestStatusPending = "pending"

// AuthorityRequest is an authority's request for information from, or the
// allocation of, one civilian.
type AuthorityRequest struct {
	ID          string      `json:"id"`
	AuthorityID string      `json:"authority_id"`
	Type        RequestType `json:"type"`
	UserID      string      `json:"user_id"`
	Message     string      `json:"message,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RequestInput is the body of a request creation.
type RequestInput struct {
	Type    RequestType `json:"type"`
	UserID  string      `json:"user_id"`
	Message string      `json:"message"`
}

// CreateRequest records a pending request from the calling authority.
func (s *Service) CreateRequest(ctx context.Context, requester auth.Requester, in RequestInput) (*AuthorityRequest, error) {
	if !requester.IsAuthority() {
		return nil, apperr.New(apperr.ErrForbidden, "requests are available to authorities only")
	}
	typ := RequestType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	if !typ.Valid() {
		return nil, apperr.BadRequest("type must be %q or %q", RequestTypeInfo, RequestTypeAllocate)
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, apperr.BadRequest("user_id is required")
	}
	msg, err := validate.FreeText(in.Message)
	if err != nil {
		return nil, apperr.BadRequest("invalid message: %v", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	r, err := s.store.CreateRequest(ctx, &AuthorityRequest{
		ID:          uuid.NewString(),
		AuthorityID: requester.UserID,
		Type:        typ,
		UserID:      userID,
		Message:     msg,
		Status:      RequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.observeRequest(r.Type)

	if s.audit != nil {
		if err := audit.Log(ctx, s.audit, requester, audit.EntityRequest, r.ID, audit.ActionCreateRequest, audit.OutcomeSuccess); err != nil {
			s.logger.ErrorContext(ctx, "failed to audit request",
				slog.String("request_id", r.ID),
				slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "authority request created",
		slog.String("request_id", r.ID),
		slog.String("type", string(r.Type)),
		slog.String("user_id", r.UserID),
		slog.String("authority_id", r.AuthorityID))
	return r, nil
}

// ListRequests returns the calling authority's requests, newest first.
func (s *Service) ListRequests(ctx context.Context, requester auth.Requester, limit int) ([]*AuthorityRequest, error) {
	if !requester.IsAuthority() {
		return nil, apperr.New(apperr.ErrForbidden, "requests are available to authorities only")
	}
	if limit < 0 {
		return nil, apperr.InvalidQuery("limit must not be negative")
	}
	if limit == 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.store.ListRequests(ctx, requester.UserID, limit)
}
