package civilian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/audit"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/geo"
	"github.com/onnwee/civitas/internal/idempotency"
	"github.com/onnwee/civitas/internal/skills"
	"github.com/onnwee/civitas/internal/validate"
)

// SubmitScope is the idempotency scope of profile submissions.
const SubmitScope = "civilian.submit"

// MaxSkills bounds the number of skills one profile may list.
const MaxSkills = 50

// MaxResources bounds the number of declared resources.
const MaxResources = 50

// ResourceInput is a declared resource as submitted. Quantity defaults to 1.
type ResourceInput struct {
	Category string         `json:"category"`
	Subtype  string         `json:"subtype"`
	Quantity *int           `json:"quantity,omitempty"`
	Specs    map[string]any `json:"specs,omitempty"`
}

// SubmitRequest is a civilian's profile submission. SubmissionID is the
// idempotency key: replays return the first outcome.
type SubmitRequest struct {
	SubmissionID   string          `json:"submission_id"`
	Consent        bool            `json:"consent"`
	FullName       string          `json:"full_name"`
	Address        string          `json:"address"`
	DOB            string          `json:"dob"`
	Lat            *float64        `json:"lat"`
	Lon            *float64        `json:"lon"`
	EducationLevel string          `json:"education_level"`
	Industry       string          `json:"industry"`
	Skills         []string        `json:"skills"`
	FreeText       string          `json:"free_text"`
	SkillLevels    map[string]int  `json:"skill_levels"`
	Resources      []ResourceInput `json:"resources"`
	Availability   string          `json:"availability"`
}

// SubmitResult is returned for a stored submission.
type SubmitResult struct {
	Message         string   `json:"message"`
	SubmissionID    string   `json:"submission_id"`
	UserID          string   `json:"user_id"`
	CapabilityScore int      `json:"capability_score"`
	Tags            []string `json:"tags"`
	Status          Status   `json:"status"`
	Replayed        bool     `json:"-"`
}

// Service implements profile submission and self-view.
type Service struct {
	repo     Repository
	registry skills.Registry
	keys     idempotency.Repository
	audit    audit.Repository
	logger   *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(repo Repository, registry skills.Registry, keys idempotency.Repository, auditRepo audit.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, keys: keys, audit: auditRepo, logger: logger}
}

// Submit validates and stores the requester's profile. The write happens at
// most once per submission id.
func (s *Service) Submit(ctx context.Context, requester auth.Requester, req SubmitRequest) (*SubmitResult, error) {
	if requester.Role != auth.RoleCivilian || requester.Anonymous() {
		return nil, apperr.New(apperr.ErrForbidden, "only civilians can submit profiles")
	}
	if !req.Consent {
		return nil, apperr.BadRequest("consent is required to submit profile")
	}
	if err := idempotency.ValidateKey(req.SubmissionID); err != nil {
		return nil, apperr.BadRequest("invalid submission_id: %v", err)
	}

	profile, err := buildProfile(requester.UserID, req)
	if err != nil {
		return nil, err
	}

	outcome, err := idempotency.Guard(ctx, s.keys, req.SubmissionID, SubmitScope, requester.UserID,
		func(ctx context.Context) (int, string, error) {
			res, err := s.store(ctx, requester, req.SubmissionID, profile)
			if err != nil {
				return 0, "", err
			}
			body, err := json.Marshal(res)
			if err != nil {
				return 0, "", fmt.Errorf("encode submit result: %w", err)
			}
			return http.StatusOK, string(body), nil
		})
	if err != nil {
		return nil, mapIdempotencyError(err)
	}

	var res SubmitResult
	if err := json.Unmarshal([]byte(outcome.Body), &res); err != nil {
		return nil, fmt.Errorf("decode submit result: %w", err)
	}
	res.Replayed = outcome.Replayed
	return &res, nil
}

func (s *Service) store(ctx context.Context, requester auth.Requester, submissionID string, p *Profile) (*SubmitResult, error) {
	names, err := skills.RegisterAll(ctx, s.registry, p.Skills)
	if err != nil {
		return nil, err
	}
	p.Skills = names

	stored, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("store profile %s: %w", p.UserID, err)
	}

	if err := audit.Log(ctx, s.audit, requester, audit.EntityProfile, stored.UserID,
		audit.ActionSubmitProfile, audit.OutcomeSuccess); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit profile submission",
			"user_id", stored.UserID, "error", err)
	}

	s.logger.InfoContext(ctx, "profile submitted",
		"user_id", stored.UserID,
		"submission_id", submissionID,
		"capability_score", stored.CapabilityScore,
		"tags", stored.Tags)

	return &SubmitResult{
		Message:         "Profile submitted successfully",
		SubmissionID:    submissionID,
		UserID:          stored.UserID,
		CapabilityScore: stored.CapabilityScore,
		Tags:            stored.Tags,
		Status:          stored.Status,
	}, nil
}

// Me returns the requester's own, unredacted profile.
func (s *Service) Me(ctx context.Context, requester auth.Requester) (*Profile, error) {
	if requester.Role != auth.RoleCivilian || requester.Anonymous() {
		return nil, apperr.New(apperr.ErrForbidden, "only civilians have a profile")
	}
	return s.repo.Get(ctx, requester.UserID)
}

func mapIdempotencyError(err error) error {
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		return apperr.New(apperr.ErrConflict, "a submission with this id is still being processed")
	case errors.Is(err, idempotency.ErrKeyReused):
		return apperr.New(apperr.ErrConflict, "submission_id was already used for a different request")
	case errors.Is(err, idempotency.ErrInvalidKey), errors.Is(err, idempotency.ErrKeyTooLong):
		return apperr.BadRequest("invalid submission_id: %v", err)
	}
	return err
}

// buildProfile validates req into a Profile for userID.
func buildProfile(userID string, req SubmitRequest) (*Profile, error) {
	p := &Profile{UserID: userID}

	var err error
	if p.PII.FullName, err = validate.PersonName(req.FullName); err != nil {
		return nil, apperr.BadRequest("invalid full_name: %v", err)
	}
	if p.PII.Address, err = validate.Address(req.Address); err != nil {
		return nil, apperr.BadRequest("invalid address: %v", err)
	}
	if req.DOB != "" {
		dob, err := time.Parse(time.DateOnly, req.DOB)
		if err != nil {
			return nil, apperr.BadRequest("dob must be YYYY-MM-DD")
		}
		p.PII.DOB = &dob
	}

	switch {
	case req.Lat != nil && req.Lon != nil:
		loc := geo.Point{Lat: *req.Lat, Lon: *req.Lon}
		if !loc.Valid() {
			return nil, apperr.InvalidLocation("coordinates out of range: %s", loc)
		}
		p.Location = &loc
	case req.Lat != nil || req.Lon != nil:
		return nil, apperr.InvalidLocation("lat and lon must be given together")
	}

	p.Education = capability.Education(req.EducationLevel)
	if !p.Education.Valid() {
		return nil, apperr.BadRequest("unknown education_level %q", req.EducationLevel)
	}
	if p.Industry, err = validate.Label(req.Industry); err != nil {
		return nil, apperr.BadRequest("invalid industry: %v", err)
	}
	if p.FreeText, err = validate.FreeText(req.FreeText); err != nil {
		return nil, apperr.BadRequest("invalid free_text: %v", err)
	}

	if len(req.Skills) > MaxSkills {
		return nil, apperr.BadRequest("at most %d skills may be listed", MaxSkills)
	}
	p.Skills = append([]string(nil), req.Skills...)

	if len(req.SkillLevels) > 0 {
		p.SkillLevels = make(capability.Levels, len(req.SkillLevels))
		for id, level := range req.SkillLevels {
			sid := capability.SkillID(id)
			if !sid.Valid() {
				return nil, apperr.BadRequest("unknown skill level id %q", id)
			}
			if !capability.ValidLevel(level) {
				return nil, apperr.BadRequest("skill level for %s must be between %d and %d",
					id, capability.MinLevel, capability.MaxLevel)
			}
			p.SkillLevels[sid] = level
		}
	}

	if len(req.Resources) > MaxResources {
		return nil, apperr.BadRequest("at most %d resources may be declared", MaxResources)
	}
	for i, r := range req.Resources {
		res, err := buildResource(r)
		if err != nil {
			return nil, apperr.BadRequest("resource %d: %v", i, err)
		}
		p.Resources = append(p.Resources, res)
	}

	p.Availability = Availability(req.Availability)
	if req.Availability == "" {
		p.Availability = AvailabilityImmediate
	}
	if !p.Availability.Valid() {
		return nil, apperr.BadRequest("unknown availability %q", req.Availability)
	}
	return p, nil
}

func buildResource(r ResourceInput) (Resource, error) {
	category, err := validate.Label(r.Category)
	if err != nil || category == "" {
		return Resource{}, errors.New("category is required (max 100 characters)")
	}
	subtype, err := validate.Label(r.Subtype)
	if err != nil || subtype == "" {
		return Resource{}, errors.New("subtype is required (max 100 characters)")
	}
	qty := 1
	if r.Quantity != nil {
		qty = *r.Quantity
	}
	if qty < 1 {
		return Resource{}, errors.New("quantity must be at least 1")
	}
	return Resource{Category: category, Subtype: subtype, Quantity: qty, Spec: r.Specs}, nil
}
