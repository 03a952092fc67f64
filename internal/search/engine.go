package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/audit"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/geo"
	"github.com/onnwee/civitas/internal/privacy"
	"github.com/onnwee/civitas/internal/ranking"
	"github.com/onnwee/civitas/internal/tracing"
)

// Result is one ranked search hit. Lat and Lon are the centre of the
// civilian's coarse display cell, never the stored position.
type Result struct {
	Rank            int               `json:"rank"`
	UserID          string            `json:"user_id"`
	DistanceKm      float64           `json:"distance_km"`
	CapabilityScore int               `json:"capability_score"`
	Relevance       float64           `json:"relevance"`
	CombinedScore   float64           `json:"combined_score"`
	SkillLevels     capability.Levels `json:"skill_levels"`
	Skills          []string          `json:"skills"`
	Tags            []string          `json:"tags"`
	Status          civilian.Status   `json:"status"`
	Availability    string            `json:"availability"`
	Lat             float64           `json:"lat"`
	Lon             float64           `json:"lon"`
}

// Response is a page of search results.
type Response struct {
	Results        []Result  `json:"results"`
	Total          int       `json:"total"`
	Page           int       `json:"page"`
	Limit          int       `json:"limit"`
	Sort           SortMode  `json:"sort"`
	SearchCenter   geo.Point `json:"search_center"`
	CenterSource   string    `json:"center_source"`
	PlaceName      string    `json:"place_name,omitempty"`
	SearchRadiusKm float64   `json:"search_radius_km"`
}

// SearchContext carries the filters of the search a detail view was opened
// from, so the detail can explain the match.
type SearchContext struct {
	Skills      []string
	IncludeTags []string
}

// DetailResponse is a privacy-gated detail payload plus the match against
// the originating search, when one was given.
type DetailResponse struct {
	privacy.Detail
	Relevance     *float64 `json:"relevance,omitempty"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
}

// Engine runs searches over a snapshot of the civilian repository.
type Engine struct {
	repo       civilian.Repository
	normalizer *Normalizer
	weights    *ranking.Weights
	audit      audit.Repository
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an Engine. Nil weights use ranking.DefaultWeights, a nil
// logger uses slog.Default() and nil metrics are not recorded. Detail reads
// by authorities are audited through auditRepo.
func NewEngine(repo civilian.Repository, normalizer *Normalizer, weights *ranking.Weights, auditRepo audit.Repository, metrics *Metrics, logger *slog.Logger) *Engine {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:       repo,
		normalizer: normalizer,
		weights:    weights,
		audit:      auditRepo,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Search normalises req, filters and scores the current snapshot, and
// returns the requested page. Only authorities may search.
func (e *Engine) Search(ctx context.Context, requester auth.Requester, req Request) (resp *Response, err error) {
	start := e.now()
	ctx, endSpan := tracing.StartSpan(ctx, "search")
	defer func() {
		endSpan(err)
		e.metrics.observeSearch(req.Sort, err, e.now().Sub(start))
	}()

	if !requester.IsAuthority() {
		return nil, apperr.New(apperr.ErrForbidden, "search is available to authorities only")
	}

	q, err := e.normalizer.Normalize(ctx, req)
	if err != nil {
		return nil, err
	}
	tracing.SetAttributes(ctx,
		attribute.String("search.sort", string(q.Sort)),
		attribute.String("search.center_source", q.CenterSource),
		attribute.Float64("search.radius_km", q.RadiusKm),
	)

	profiles, err := e.repo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot civilians: %w", err)
	}

	candidates := Filter(q, profiles, func(p *civilian.Profile, cerr error) {
		e.metrics.corruptRecord()
		e.logger.WarnContext(ctx, "skipping malformed civilian record",
			slog.String("user_id", p.UserID),
			slog.String("error", cerr.Error()))
	})
	e.metrics.observeCandidates(len(candidates))
	tracing.SetAttributes(ctx, attribute.Int("search.candidates", len(candidates)))

	scored := Score(q, candidates, e.weights)
	Rank(scored, q.Sort)
	page := Paginate(scored, q.Offset(), q.Limit)

	resp = &Response{
		Results:        make([]Result, len(page)),
		Total:          len(scored),
		Page:           q.Page,
		Limit:          q.Limit,
		Sort:           q.Sort,
		SearchCenter:   q.Center,
		CenterSource:   q.CenterSource,
		PlaceName:      q.PlaceName,
		SearchRadiusKm: q.RadiusKm,
	}
	for i, s := range page {
		resp.Results[i] = toResult(q.Offset()+i+1, s)
	}
	return resp, nil
}

func toResult(rank int, s Scored) Result {
	p := s.Profile
	display := geo.Coarsen(*p.Location)
	levels := p.SkillLevels.Clone()
	if levels == nil {
		levels = capability.Levels{}
	}
	return Result{
		Rank:            rank,
		UserID:          p.UserID,
		DistanceKm:      round2(s.DistanceKm),
		CapabilityScore: p.CapabilityScore,
		Relevance:       round2(s.Relevance),
		CombinedScore:   s.Combined,
		SkillLevels:     levels,
		Skills:          append([]string{}, p.Skills...),
		Tags:            append([]string{}, p.Tags...),
		Status:          p.Status,
		Availability:    string(p.Availability),
		Lat:             display.Lat,
		Lon:             display.Lon,
	}
}

// Detail returns the privacy-gated detail of one civilian. Authorities may
// read any civilian and every read is audited, with an extra reveal entry
// when PII is shown. Civilians may only read themselves, unaudited.
func (e *Engine) Detail(ctx context.Context, requester auth.Requester, userID string, sc *SearchContext) (resp *DetailResponse, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search.detail")
	defer func() { endSpan(err) }()

	if !requester.IsAuthority() && !requester.IsSelf(userID) {
		return nil, apperr.New(apperr.ErrForbidden, "not allowed to view this civilian")
	}

	p, err := e.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := privacy.Decide(requester, p)
	if requester.IsAuthority() {
		if err := e.auditDetail(ctx, requester, userID, state); err != nil {
			return nil, err
		}
	}
	e.metrics.detailView(state.String())

	resp = &DetailResponse{Detail: privacy.Render(requester, p)}
	if sc != nil {
		q := Query{Skills: normalizeTerms(sc.Skills), IncludeTags: normalizeTerms(sc.IncludeTags)}
		if q.HasRelevance() {
			c := Candidate{Profile: p}
			rel := round2(Relevance(q, c))
			resp.Relevance = &rel
			resp.MatchedSkills = MatchedSkills(q.Skills, c)
		}
	}
	return resp, nil
}

// auditDetail records the read before any PII leaves the engine. A failing
// trail fails the read.
func (e *Engine) auditDetail(ctx context.Context, requester auth.Requester, userID string, state privacy.State) error {
	if e.audit == nil {
		return nil
	}
	if err := audit.Log(ctx, e.audit, requester, audit.EntityCivilian, userID, audit.ActionViewCivilianDetail, audit.OutcomeSuccess); err != nil {
		e.logger.ErrorContext(ctx, "audit detail view failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return fmt.Errorf("audit detail view: %w", err)
	}
	if state != privacy.Revealed {
		return nil
	}
	if err := audit.Log(ctx, e.audit, requester, audit.EntityCivilian, userID, audit.ActionRevealPII, audit.OutcomeSuccess); err != nil {
		e.logger.ErrorContext(ctx, "audit pii reveal failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return fmt.Errorf("audit pii reveal: %w", err)
	}
	return nil
}
