package civilian

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/audit"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/idempotency"
	"github.com/onnwee/civitas/internal/skills"
)

type serviceFixture struct {
	svc      *Service
	repo     *InMemoryRepository
	registry *skills.InMemoryRegistry
	audit    *audit.InMemoryRepository
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	f := serviceFixture{
		repo:     NewInMemoryRepository(newScorer(t)),
		registry: skills.NewInMemoryRegistry(skills.Canonical),
		audit:    audit.NewInMemoryRepository(),
	}
	f.svc = NewService(f.repo, f.registry, idempotency.NewInMemoryRepository(), f.audit, nil)
	return f
}

var civ = auth.Requester{UserID: "civ-1", Role: auth.RoleCivilian}

func ptr[T any](v T) *T { return &v }

func validRequest() SubmitRequest {
	return SubmitRequest{
		SubmissionID:   "sub-001",
		Consent:        true,
		FullName:       "Aino  Virtanen",
		Address:        "Mannerheimintie 1, Helsinki",
		DOB:            "1988-02-29",
		Lat:            ptr(60.17),
		Lon:            ptr(24.93),
		EducationLevel: "vocational",
		Skills:         []string{"  first   aid ", "drone photography"},
		SkillLevels:    map[string]int{"drone_piloting": 4},
		Resources:      []ResourceInput{{Category: "vehicle", Subtype: "van"}},
	}
}

func TestService_Submit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, civ, validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Replayed {
		t.Error("first submission reported as replayed")
	}
	if res.UserID != "civ-1" || res.SubmissionID != "sub-001" || res.Status != StatusAvailable {
		t.Errorf("result = %+v", res)
	}

	p, err := f.svc.Me(ctx, civ)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if p.PII.FullName != "Aino Virtanen" {
		t.Errorf("FullName = %q, want whitespace collapsed", p.PII.FullName)
	}
	if len(p.Skills) != 2 || p.Skills[0] != "First Aid" || p.Skills[1] != "Drone Photography" {
		t.Errorf("Skills = %v, want registry names", p.Skills)
	}
	if p.Resources[0].Quantity != 1 {
		t.Errorf("default resource quantity = %d, want 1", p.Resources[0].Quantity)
	}
	if p.CapabilityScore != res.CapabilityScore || p.CapabilityScore == 0 {
		t.Errorf("stored score %d, result score %d", p.CapabilityScore, res.CapabilityScore)
	}
	if !p.HasTag("medical") || !p.HasTag("drone") {
		t.Errorf("Tags = %v", p.Tags)
	}
	if p.Availability != AvailabilityImmediate {
		t.Errorf("Availability = %s, want default immediate", p.Availability)
	}

	created, _, err := f.registry.Ensure(ctx, "Drone Photography")
	if err != nil || created.Canonical {
		t.Errorf("new skill should be registered as non-canonical: %+v, %v", created, err)
	}

	entries, _ := f.audit.QueryByEntity(ctx, audit.EntityProfile, "civ-1", 0)
	if len(entries) != 1 || entries[0].Action != audit.ActionSubmitProfile {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestService_SubmitReplay(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, civ, validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	before, _ := f.repo.Get(ctx, "civ-1")

	// Same id with different content replays the first outcome untouched.
	replay := validRequest()
	replay.EducationLevel = "doctoral"
	second, err := f.svc.Submit(ctx, civ, replay)
	if err != nil {
		t.Fatalf("replayed Submit() error = %v", err)
	}
	if !second.Replayed {
		t.Error("second submission should be marked replayed")
	}
	if second.CapabilityScore != first.CapabilityScore {
		t.Errorf("replayed score = %d, want %d", second.CapabilityScore, first.CapabilityScore)
	}

	after, _ := f.repo.Get(ctx, "civ-1")
	if after.Education != capability.EducationVocational || !after.LastUpdated.Equal(before.LastUpdated) {
		t.Error("replay mutated the stored profile")
	}
	entries, _ := f.audit.QueryByEntity(ctx, audit.EntityProfile, "civ-1", 0)
	if len(entries) != 1 {
		t.Errorf("replay was audited as a new submission: %d entries", len(entries))
	}

	// A different civilian reusing the id is refused.
	other := auth.Requester{UserID: "civ-2", Role: auth.RoleCivilian}
	if _, err := f.svc.Submit(ctx, other, validRequest()); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("reused key error = %v, want ErrConflict", err)
	}
}

func TestService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name      string
		requester auth.Requester
		mutate    func(r *SubmitRequest)
		wantErr   error
	}{
		{"authority cannot submit", auth.Requester{UserID: "a", Role: auth.RoleAuthority}, func(r *SubmitRequest) {}, apperr.ErrForbidden},
		{"anonymous cannot submit", auth.Requester{Role: auth.RoleCivilian}, func(r *SubmitRequest) {}, apperr.ErrForbidden},
		{"consent required", civ, func(r *SubmitRequest) { r.Consent = false }, apperr.ErrBadRequest},
		{"submission id required", civ, func(r *SubmitRequest) { r.SubmissionID = "" }, apperr.ErrBadRequest},
		{"submission id too long", civ, func(r *SubmitRequest) { r.SubmissionID = string(make([]byte, 65)) }, apperr.ErrBadRequest},
		{"unknown education", civ, func(r *SubmitRequest) { r.EducationLevel = "phd" }, apperr.ErrBadRequest},
		{"unknown level id", civ, func(r *SubmitRequest) { r.SkillLevels = map[string]int{"cooking": 3} }, apperr.ErrBadRequest},
		{"level out of range", civ, func(r *SubmitRequest) { r.SkillLevels = map[string]int{"rf_radio": 6} }, apperr.ErrBadRequest},
		{"zero quantity", civ, func(r *SubmitRequest) { r.Resources[0].Quantity = ptr(0) }, apperr.ErrBadRequest},
		{"resource without category", civ, func(r *SubmitRequest) { r.Resources[0].Category = " " }, apperr.ErrBadRequest},
		{"lat without lon", civ, func(r *SubmitRequest) { r.Lon = nil }, apperr.ErrInvalidLocation},
		{"lat out of range", civ, func(r *SubmitRequest) { r.Lat = ptr(95.0) }, apperr.ErrInvalidLocation},
		{"bad dob", civ, func(r *SubmitRequest) { r.DOB = "29.02.1988" }, apperr.ErrBadRequest},
		{"unknown availability", civ, func(r *SubmitRequest) { r.Availability = "later" }, apperr.ErrBadRequest},
		{"empty skill name", civ, func(r *SubmitRequest) { r.Skills = []string{"   "} }, apperr.ErrInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.svc.Submit(context.Background(), tt.requester, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := f.repo.Get(context.Background(), tt.requester.UserID); !errors.Is(err, apperr.ErrNotFound) {
				t.Error("rejected submission was stored")
			}
		})
	}
}

func TestService_SubmitFailureReleasesKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	bad := validRequest()
	bad.Skills = []string{"   "}
	if _, err := f.svc.Submit(ctx, civ, bad); err == nil {
		t.Fatal("expected failure for empty skill name")
	}

	// The same submission id can be retried after a failed attempt.
	if _, err := f.svc.Submit(ctx, civ, validRequest()); err != nil {
		t.Fatalf("retry after failure error = %v", err)
	}
}

func TestService_Me(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Me(ctx, civ); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Me() before submission error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Me(ctx, auth.Requester{UserID: "a", Role: auth.RoleAuthority}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Me() for authority error = %v, want ErrForbidden", err)
	}
}
