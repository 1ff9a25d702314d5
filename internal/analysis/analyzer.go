// Package analysis runs the similarity pipeline for a reference ticket:
// selection, scoring, the threshold policy with its single fallback pass,
// ranking and recommendations. It also drives batch and grouping runs.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/ticketsim/internal/cache"
	"github.com/thebtf/ticketsim/internal/recommend"
	"github.com/thebtf/ticketsim/internal/scoring"
	"github.com/thebtf/ticketsim/internal/selector"
	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/internal/subject"
	"github.com/thebtf/ticketsim/internal/textnorm"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/pkg/models"
)

const (
	// DefaultThreshold is the inclusion threshold when the caller gives none.
	DefaultThreshold = 0.3
	// DefaultMaxResults caps the ranked result list.
	DefaultMaxResults = 10
	// FallbackStep is subtracted from the threshold for the fallback pass.
	FallbackStep = 0.1
	// FallbackFloor is the lowest threshold the fallback pass may use.
	FallbackFloor = 0.1
	// MaxCommonKeywords caps the shared keywords reported per candidate.
	MaxCommonKeywords = 10
	// commentFetchConcurrency bounds parallel comment fetches per run.
	commentFetchConcurrency = 4
)

// keyPattern matches tracker keys such as PLAT-123.
var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

// Config configures an Analyzer.
type Config struct {
	Scoring          *models.ScoringConfig
	Selector         selector.Config
	DefaultThreshold float64
	MaxResults       int
	BatchSize        int
	BatchDelay       time.Duration
	GroupThreshold   float64
	GroupMaxTickets  int
	// SkipComments disables comment mining even when the source supports it.
	SkipComments bool
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		Scoring:          models.DefaultScoringConfig(),
		Selector:         selector.DefaultConfig(),
		DefaultThreshold: DefaultThreshold,
		MaxResults:       DefaultMaxResults,
		BatchSize:        DefaultBatchSize,
		BatchDelay:       DefaultBatchDelay,
		GroupThreshold:   DefaultGroupThreshold,
		GroupMaxTickets:  DefaultGroupMaxTickets,
	}
}

// Options are the per-request analysis options.
type Options struct {
	// Threshold overrides the configured threshold when > 0.
	Threshold float64 `json:"threshold,omitempty"`
	// MaxResults overrides the configured result cap when > 0.
	MaxResults int `json:"max_results,omitempty"`
	// NoCache bypasses the result cache for reads; the fresh run is still stored.
	NoCache bool `json:"no_cache,omitempty"`
}

// Analyzer ties the pipeline stages together.
type Analyzer struct {
	src     source.TicketSource
	vocab   *vocab.Store
	cache   cache.Cache
	metrics *instruments
	stats   *Stats
	flight  singleflight.Group
	cfg     Config
}

// New creates an analyzer. A nil store uses the embedded vocabulary and a nil
// cache disables result caching.
func New(src source.TicketSource, store *vocab.Store, c cache.Cache, cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.Scoring == nil {
		cfg.Scoring = def.Scoring
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = def.DefaultThreshold
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.GroupThreshold <= 0 {
		cfg.GroupThreshold = def.GroupThreshold
	}
	if cfg.GroupMaxTickets <= 0 {
		cfg.GroupMaxTickets = def.GroupMaxTickets
	}
	if store == nil {
		store = vocab.NewStaticStore(vocab.Default())
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &Analyzer{
		src:     src,
		vocab:   store,
		cache:   c,
		cfg:     cfg,
		metrics: newInstruments(),
		stats:   &Stats{},
	}
}

// Stats returns the analyzer's counters.
func (a *Analyzer) Stats() *Stats {
	return a.stats
}

// CacheStats returns the result cache counters.
func (a *Analyzer) CacheStats() map[string]any {
	return a.cache.Stats()
}

// pipeline is the set of stage objects built from one vocabulary snapshot.
type pipeline struct {
	norm       *textnorm.Normalizer
	calc       *scoring.Calculator
	selector   *selector.Selector
	recommends *recommend.Generator
}

func (a *Analyzer) pipeline() *pipeline {
	norm := textnorm.New(a.vocab.Tables())
	calc := scoring.NewCalculator(a.cfg.Scoring, norm, subject.NewHeadTermRecognizer(norm))
	return &pipeline{
		norm:       norm,
		calc:       calc,
		selector:   selector.New(a.src, calc, a.cfg.Selector),
		recommends: recommend.NewGenerator(norm),
	}
}

// NormalizeKey trims and upper-cases a reference key and checks its shape.
func NormalizeKey(key string) (string, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k == "" {
		return "", models.NewAnalysisError(models.KindInput, "", "validate", "reference key is required", nil)
	}
	if !keyPattern.MatchString(k) {
		return "", models.NewAnalysisError(models.KindInput, k, "validate",
			fmt.Sprintf("malformed reference key %q", key), nil)
	}
	return k, nil
}

// Analyze ranks the tickets similar to the reference ticket key.
//
// An empty result is a normal outcome (Outcome == OutcomeEmpty), not an
// error. Errors are *models.AnalysisError of kind input or upstream_fetch.
func (a *Analyzer) Analyze(ctx context.Context, key string, opts Options) (*models.AnalysisRun, error) {
	refKey, err := NormalizeKey(key)
	if err != nil {
		a.fail(ctx, err)
		return nil, err
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = a.cfg.DefaultThreshold
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		err := models.NewAnalysisError(models.KindInput, refKey, "validate",
			fmt.Sprintf("threshold %v outside [0, 1]", opts.Threshold), nil)
		a.fail(ctx, err)
		return nil, err
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = a.cfg.MaxResults
	}

	cacheKey := cache.Key(refKey,
		strconv.FormatFloat(threshold, 'f', -1, 64),
		strconv.Itoa(maxResults),
		a.vocab.Path(),
	)

	if !opts.NoCache {
		if cached, ok := a.fromCache(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	// Coalesce concurrent identical requests. The shared run is detached from
	// the caller that started it so one caller's cancellation never fails the
	// others; each caller stops waiting on its own context.
	ch := a.flight.DoChan(cacheKey, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		run, err := a.run(runCtx, refKey, threshold, maxResults)
		if err != nil {
			return nil, err
		}
		if err := a.cache.Set(runCtx, cacheKey, run); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("reference", refKey).Msg("Failed to cache analysis run")
		}
		return run, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Shared {
		atomic.AddInt64(&a.stats.CoalescedRequests, 1)
	}
	if res.Err != nil {
		a.fail(ctx, res.Err)
		return nil, res.Err
	}
	return res.Val.(*models.AnalysisRun), nil
}

func (a *Analyzer) fromCache(ctx context.Context, cacheKey string) (*models.AnalysisRun, bool) {
	cached, ok, err := a.cache.Get(ctx, cacheKey)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", cacheKey).Msg("Result cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	atomic.AddInt64(&a.stats.CacheHits, 1)
	a.metrics.cacheHits.Add(ctx, 1)

	out := *cached
	out.Cached = true
	return &out, true
}

func (a *Analyzer) fail(ctx context.Context, err error) {
	atomic.AddInt64(&a.stats.AnalysisErrors, 1)
	kind := models.KindUpstreamFetch
	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		kind = ae.Kind
	}
	a.metrics.recordError(ctx, kind)
}

// scored pairs a gated candidate with its score.
type scored struct {
	profile *scoring.Profile
	result  models.SimilarityResult
}

// run executes the pipeline without caching or coalescing.
func (a *Analyzer) run(ctx context.Context, refKey string, threshold float64, maxResults int) (*models.AnalysisRun, error) {
	start := time.Now()
	logger := zerolog.Ctx(ctx)
	p := a.pipeline()

	run := &models.AnalysisRun{
		RunID:              uuid.New().String(),
		ReferenceKey:       refKey,
		StartedAt:          start.UTC(),
		ThresholdRequested: threshold,
		ThresholdUsed:      threshold,
	}

	ref, err := a.src.Get(ctx, refKey)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, models.NewAnalysisError(models.KindInput, refKey, "fetch_reference", "reference ticket not found", err)
		}
		return nil, models.NewAnalysisError(models.KindUpstreamFetch, refKey, "fetch_reference", "failed to fetch reference ticket", err)
	}
	run.Reference = ref
	run.ReferenceEscalation = ref.EscalationWeight()

	refProfile := p.calc.Profile(ref)
	if refProfile.Malformed {
		run.Diagnostics = append(run.Diagnostics, models.Diagnostic{
			Kind:         models.KindScoring,
			ReferenceKey: refKey,
			Stage:        "profile",
			Message:      "reference ticket has missing or invalid text",
		})
	}

	sel, err := p.selector.Select(ctx, refProfile)
	if err != nil {
		return nil, err
	}
	run.Diagnostics = append(run.Diagnostics, sel.Diagnostics...)
	run.TotalCandidatesExamined = len(sel.Pool)
	run.TotalGated = len(sel.Gated)

	candidates := make([]scored, 0, len(sel.Gated))
	for _, cand := range sel.Gated {
		// Never score the reference against itself
		if strings.EqualFold(cand.Ticket.Key, refKey) {
			continue
		}
		result, diag := p.calc.Score(ctx, refProfile, cand)
		if diag != nil {
			run.Diagnostics = append(run.Diagnostics, *diag)
		}
		candidates = append(candidates, scored{profile: cand, result: result})
	}

	passed := filter(candidates, threshold)
	if len(passed) == 0 && len(sel.Pool) > 0 {
		lowered := fallbackThreshold(threshold)
		run.FallbackApplied = true
		run.ThresholdUsed = lowered
		passed = filter(candidates, lowered)
		logger.Debug().
			Str("reference", refKey).
			Float64("threshold", threshold).
			Float64("fallback_threshold", lowered).
			Int("passed", len(passed)).
			Msg("No candidates at threshold, fallback pass applied")
	}

	rank(passed)
	run.TotalPassed = len(passed)
	if len(passed) > maxResults {
		passed = passed[:maxResults]
	}

	comments, diags := a.fetchComments(ctx, refKey, passed)
	run.Diagnostics = append(run.Diagnostics, diags...)

	run.Results = make([]models.RankedCandidate, 0, len(passed))
	for i, s := range passed {
		run.Results = append(run.Results, models.RankedCandidate{
			Ticket:           *s.profile.Ticket,
			Scores:           s.result,
			CommonKeywords:   commonKeywords(refProfile, s.profile),
			RecommendedFixes: p.recommends.Recommend(s.profile.Ticket),
			FixInsight:       p.recommends.Insight(s.profile.Ticket, ref, comments[i]),
			EscalationWeight: s.profile.Ticket.EscalationWeight(),
		})
	}

	run.Outcome = models.OutcomeMatched
	if len(run.Results) == 0 {
		run.Outcome = models.OutcomeEmpty
		atomic.AddInt64(&a.stats.EmptyResults, 1)
	}
	run.DurationMs = time.Since(start).Milliseconds()

	atomic.AddInt64(&a.stats.TotalAnalyses, 1)
	atomic.AddInt64(&a.stats.TotalLatencyNs, time.Since(start).Nanoseconds())
	atomic.AddInt64(&a.stats.CandidatesExamined, int64(run.TotalCandidatesExamined))
	atomic.AddInt64(&a.stats.CandidatesPassed, int64(run.TotalPassed))
	if run.FallbackApplied {
		atomic.AddInt64(&a.stats.Fallbacks, 1)
	}
	a.metrics.recordRun(ctx, run)

	logger.Info().
		Str("run_id", run.RunID).
		Str("reference", refKey).
		Str("outcome", string(run.Outcome)).
		Int("examined", run.TotalCandidatesExamined).
		Int("gated", run.TotalGated).
		Int("passed", run.TotalPassed).
		Bool("fallback", run.FallbackApplied).
		Int64("duration_ms", run.DurationMs).
		Msg("Analysis complete")

	return run, nil
}

// fetchComments loads the comments of each ranked candidate when the source
// supports it. A failed fetch becomes a diagnostic and leaves that candidate
// without comments.
func (a *Analyzer) fetchComments(ctx context.Context, refKey string, list []scored) ([][]models.Comment, []models.Diagnostic) {
	out := make([][]models.Comment, len(list))
	cs, ok := a.src.(source.CommentSource)
	if !ok || a.cfg.SkipComments || len(list) == 0 {
		return out, nil
	}

	failed := make([]*models.Diagnostic, len(list))
	var g errgroup.Group
	g.SetLimit(commentFetchConcurrency)
	for i := range list {
		g.Go(func() error {
			key := list[i].profile.Ticket.Key
			comments, err := cs.Comments(ctx, key)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("candidate", key).Msg("Failed to fetch comments")
				failed[i] = &models.Diagnostic{
					Kind:         models.KindUpstreamFetch,
					ReferenceKey: refKey,
					CandidateKey: key,
					Stage:        "comments",
					Message:      err.Error(),
				}
				return nil
			}
			out[i] = comments
			return nil
		})
	}
	_ = g.Wait()

	var diags []models.Diagnostic
	for _, d := range failed {
		if d != nil {
			diags = append(diags, *d)
		}
	}
	return out, diags
}

// fallbackThreshold is the threshold of the single retry pass.
func fallbackThreshold(threshold float64) float64 {
	return math.Max(threshold-FallbackStep, FallbackFloor)
}

// filter keeps the candidates satisfying the inclusion rule at threshold.
func filter(candidates []scored, threshold float64) []scored {
	out := make([]scored, 0)
	for _, c := range candidates {
		if scoring.Included(c.result, threshold) {
			out = append(out, c)
		}
	}
	return out
}

// rank orders by overall score, then content similarity, then key.
func rank(list []scored) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].result, list[j].result
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.ContentSimilarity != b.ContentSimilarity {
			return a.ContentSimilarity > b.ContentSimilarity
		}
		return a.CandidateKey < b.CandidateKey
	})
}

// commonKeywords returns the normalized terms shared by both tickets,
// alphabetically, capped at MaxCommonKeywords.
func commonKeywords(ref, cand *scoring.Profile) []string {
	out := make([]string, 0)
	for term := range ref.Terms {
		if cand.Terms[term] {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	if len(out) > MaxCommonKeywords {
		out = out[:MaxCommonKeywords]
	}
	return out
}
