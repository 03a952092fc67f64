package allocation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/audit"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/validate"
)

// DefaultListLimit bounds ListActive when the caller gives no limit.
const DefaultListLimit = 100

// Request asks for one civilian to be allocated to a mission.
type Request struct {
	UserID      string `json:"user_id"`
	MissionCode string `json:"mission_code"`
}

// Service allocates civilians on behalf of authorities.
type Service struct {
	store   Store
	audit   audit.Repository
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(store Store, auditRepo audit.Repository, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: auditRepo, metrics: metrics, logger: logger, now: time.Now}
}

// Allocate assigns req.UserID to req.MissionCode. Only authorities may
// allocate, and only available civilians can be allocated.
func (s *Service) Allocate(ctx context.Context, requester auth.Requester, req Request) (a *Allocation, err error) {
	defer func() { s.metrics.observe(err) }()

	if !requester.IsAuthority() {
		return nil, apperr.New(apperr.ErrForbidden, "allocation is available to authorities only")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, apperr.BadRequest("user_id is required")
	}
	mission, err := validate.MissionCode(req.MissionCode)
	if err != nil {
		return nil, apperr.BadRequest("invalid mission_code: %v", err)
	}

	a, err = s.store.Allocate(ctx, &Allocation{
		ID:          uuid.NewString(),
		UserID:      userID,
		MissionCode: mission,
		AllocatedBy: requester.UserID,
		Status:      StatusActive,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.record(ctx, requester, userID, audit.OutcomeDenied)
		}
		return nil, err
	}

	s.record(ctx, requester, userID, audit.OutcomeSuccess)
	s.logger.InfoContext(ctx, "civilian allocated",
		slog.String("allocation_id", a.ID),
		slog.String("user_id", a.UserID),
		slog.String("mission_code", a.MissionCode),
		slog.String("allocated_by", a.AllocatedBy))
	return a, nil
}

// record writes the allocation audit entry. The status change is already
// committed, so a failing trail is logged rather than returned.
func (s *Service) record(ctx context.Context, requester auth.Requester, userID, outcome string) {
	if s.audit == nil {
		return
	}
	if err := audit.Log(ctx, s.audit, requester, audit.EntityCivilian, userID, audit.ActionAllocateCivilian, outcome); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit allocation",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// ListActive returns active allocations, newest first.
func (s *Service) ListActive(ctx context.Context, requester auth.Requester, limit int) ([]*Allocation, error) {
	if !requester.IsAuthority() {
		return nil, apperr.New(apperr.ErrForbidden, "allocations are available to authorities only")
	}
	if limit < 0 {
		return nil, apperr.InvalidQuery("limit must not be negative")
	}
	if limit == 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.store.ListActive(ctx, limit)
}
