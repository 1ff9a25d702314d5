// Package models contains domain models for ticketsim.
package models

import "time"

// SimilarityResult holds the score breakdown for one (reference, candidate) pair.
// All scores are in [0, 1].
type SimilarityResult struct {
	ReferenceKey      string  `json:"reference_key"`
	CandidateKey      string  `json:"candidate_key"`
	OverallScore      float64 `json:"overall_score"`
	SubjectScore      float64 `json:"subject_score"`
	SummaryScore      float64 `json:"summary_score"`
	TechScore         float64 `json:"tech_score"`
	JaccardScore      float64 `json:"jaccard_score"`
	ContentSimilarity float64 `json:"content_similarity"`
	MetadataScore     float64 `json:"metadata_score"`
	LengthBonus       float64 `json:"length_bonus"`
}

// FixType classifies where a fix insight came from.
type FixType string

const (
	FixTypeNone       FixType = ""
	FixTypeResolved   FixType = "resolved"
	FixTypeWorkaround FixType = "workaround"
)

// CommentAnalysis summarizes what a ticket's comment thread says about the
// problem. Each list holds whole sentences in thread order.
type CommentAnalysis struct {
	Participants  []string `json:"participants,omitempty"`
	Solutions     []string `json:"solutions,omitempty"`
	Workarounds   []string `json:"workarounds,omitempty"`
	RootCauses    []string `json:"root_causes,omitempty"`
	StatusUpdates []string `json:"status_updates,omitempty"`
	NextSteps     []string `json:"next_steps,omitempty"`
	CommentCount  int      `json:"comment_count"`
}

// FixInsight describes whether a similar ticket carries a fix that may apply
// to the reference ticket.
type FixInsight struct {
	Comments   *CommentAnalysis `json:"comments,omitempty"`
	FixType    FixType          `json:"fix_type,omitempty"`
	Solution   string           `json:"solution,omitempty"`
	Workaround string           `json:"workaround,omitempty"`
	RootCause  string           `json:"root_cause,omitempty"`
	Confidence float64          `json:"confidence"`
	HasFix     bool             `json:"has_fix"`
	Applicable bool             `json:"applicable"`
}

// RankedCandidate is one entry of an analysis result list.
type RankedCandidate struct {
	Ticket           Ticket           `json:"ticket"`
	Scores           SimilarityResult `json:"scores"`
	FixInsight       FixInsight       `json:"fix_insight"`
	CommonKeywords   []string         `json:"common_keywords"`
	RecommendedFixes []string         `json:"recommended_fixes"`
	EscalationWeight int              `json:"escalation_weight"`
}

// Outcome is the terminal state of an analysis run.
type Outcome string

const (
	// OutcomeMatched means at least one candidate passed the inclusion rule.
	OutcomeMatched Outcome = "matched"
	// OutcomeEmpty means no candidate passed, even after the fallback pass.
	// This is a legitimate result, not an error.
	OutcomeEmpty Outcome = "empty"
)

// AnalysisRun is the full output of analyzing one reference ticket.
type AnalysisRun struct {
	StartedAt               time.Time         `json:"started_at"`
	Reference               *Ticket           `json:"reference,omitempty"`
	RunID                   string            `json:"run_id"`
	ReferenceKey            string            `json:"reference_key"`
	Outcome                 Outcome           `json:"outcome"`
	Results                 []RankedCandidate `json:"results"`
	Diagnostics             []Diagnostic      `json:"diagnostics,omitempty"`
	ThresholdRequested      float64           `json:"threshold_requested"`
	ThresholdUsed           float64           `json:"threshold_used"`
	TotalCandidatesExamined int               `json:"total_candidates_examined"`
	TotalGated              int               `json:"total_gated"`
	TotalPassed             int               `json:"total_passed"`
	ReferenceEscalation     int               `json:"reference_escalation_weight"`
	DurationMs              int64             `json:"duration_ms"`
	FallbackApplied         bool              `json:"fallback_applied"`
	Cached                  bool              `json:"cached"`
}

// IsEmpty reports whether the run produced no matches.
func (r *AnalysisRun) IsEmpty() bool {
	return r.Outcome == OutcomeEmpty || len(r.Results) == 0
}

// CandidateKeys returns the result keys in rank order.
func (r *AnalysisRun) CandidateKeys() []string {
	keys := make([]string, len(r.Results))
	for i, res := range r.Results {
		keys[i] = res.Ticket.Key
	}
	return keys
}
