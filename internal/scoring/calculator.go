// Package scoring provides similarity score calculation for ticket pairs.
package scoring

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/thebtf/ticketsim/internal/subject"
	"github.com/thebtf/ticketsim/internal/textnorm"
	"github.com/thebtf/ticketsim/pkg/models"
	"github.com/thebtf/ticketsim/pkg/similarity"
)

// Profile is the precomputed text fingerprint of one ticket.
// Build it once per ticket per run with Calculator.Profile.
type Profile struct {
	Ticket        *models.Ticket
	Subjects      subject.Set
	SummaryTokens []string
	SummaryTF     map[string]int
	Terms         map[string]bool
	TechTerms     map[string]bool
	SummaryLen    int
	Malformed     bool
}

// Calculator computes similarity scores between ticket profiles.
type Calculator struct {
	config     *models.ScoringConfig
	norm       *textnorm.Normalizer
	recognizer subject.Recognizer
}

// NewCalculator creates a new similarity calculator.
// If config is nil, uses the default configuration.
func NewCalculator(config *models.ScoringConfig, norm *textnorm.Normalizer, recognizer subject.Recognizer) *Calculator {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	return &Calculator{config: config, norm: norm, recognizer: recognizer}
}

// Profile extracts the tokens, subjects and technical terms of a ticket.
func (c *Calculator) Profile(t *models.Ticket) *Profile {
	p := &Profile{Ticket: t}
	if !utf8.ValidString(t.Summary) || !utf8.ValidString(t.Description) ||
		strings.TrimSpace(t.Summary) == "" && strings.TrimSpace(t.Description) == "" {
		p.Malformed = true
		p.Subjects = subject.NewSet()
		p.SummaryTF = map[string]int{}
		p.Terms = map[string]bool{}
		p.TechTerms = map[string]bool{}
		return p
	}

	p.SummaryTokens = c.norm.Tokens(t.Summary)
	p.SummaryTF = similarity.TermFrequencies(p.SummaryTokens)
	p.Terms = c.norm.TokenSet(t.Text())
	p.TechTerms = make(map[string]bool)
	tables := c.norm.Tables()
	for term := range p.Terms {
		if tables.IsTechnical(term) || isIdentifier(term) {
			p.TechTerms[term] = true
		}
	}
	p.Subjects = c.recognizer.Subjects(t.Summary, t.Description)
	p.SummaryLen = utf8.RuneCountInString(strings.TrimSpace(t.Summary))
	return p
}

// Score computes the similarity of a candidate to a reference.
//
// The scoring formula:
//
//	Content = 0.50×Subject + 0.35×Summary + 0.10×Tech + 0.05×Jaccard
//	Overall = Content + MetadataWeight×Metadata + LengthBonus   (clamped to [0, 1])
//
// Where:
//   - Subject = Jaccard of subject sets
//   - Summary = term-frequency cosine of normalized summaries
//   - Tech = Jaccard of technical terms and alphanumeric identifiers
//   - Jaccard = Jaccard of all normalized summary+description tokens
//   - LengthBonus = LengthBonusMax × ratio when the summary length ratio exceeds
//     LengthRatioMin, and only when Content > 0
//
// Malformed text on either side yields a zero score and a scoring diagnostic;
// the warning goes to the logger carried by ctx.
func (c *Calculator) Score(ctx context.Context, ref, cand *Profile) (models.SimilarityResult, *models.Diagnostic) {
	result := models.SimilarityResult{
		ReferenceKey: ref.Ticket.Key,
		CandidateKey: cand.Ticket.Key,
	}

	if ref.Malformed || cand.Malformed {
		bad := cand
		if ref.Malformed {
			bad = ref
		}
		zerolog.Ctx(ctx).Warn().
			Str("reference", ref.Ticket.Key).
			Str("candidate", cand.Ticket.Key).
			Str("malformed", bad.Ticket.Key).
			Msg("Malformed ticket text, scoring pair as 0")
		return result, &models.Diagnostic{
			Kind:         models.KindScoring,
			ReferenceKey: ref.Ticket.Key,
			CandidateKey: cand.Ticket.Key,
			Stage:        "score",
			Message:      "missing or invalid text in " + bad.Ticket.Key,
		}
	}

	return c.CalculateComponents(ref, cand), nil
}

// CalculateComponents returns the individual components of the similarity score.
// Both profiles must be well-formed.
func (c *Calculator) CalculateComponents(ref, cand *Profile) models.SimilarityResult {
	subjectScore := ref.Subjects.Jaccard(cand.Subjects)
	summaryScore := similarity.CosineFrequencies(ref.SummaryTF, cand.SummaryTF)
	techScore := similarity.JaccardSimilarity(ref.TechTerms, cand.TechTerms)
	jaccardScore := similarity.JaccardSimilarity(ref.Terms, cand.Terms)

	content := clamp(c.config.SubjectWeight*subjectScore +
		c.config.SummaryWeight*summaryScore +
		c.config.TechWeight*techScore +
		c.config.JaccardWeight*jaccardScore)

	metadata := MetadataAgreement(ref.Ticket, cand.Ticket)

	lengthBonus := 0.0
	if content > 0 {
		if ratio := lengthRatio(ref.SummaryLen, cand.SummaryLen); ratio > c.config.LengthRatioMin {
			lengthBonus = c.config.LengthBonusMax * ratio
		}
	}

	overall := clamp(content + c.config.MetadataWeight*metadata + lengthBonus)

	return models.SimilarityResult{
		ReferenceKey:      ref.Ticket.Key,
		CandidateKey:      cand.Ticket.Key,
		OverallScore:      overall,
		SubjectScore:      subjectScore,
		SummaryScore:      summaryScore,
		TechScore:         techScore,
		JaccardScore:      jaccardScore,
		ContentSimilarity: content,
		MetadataScore:     metadata,
		LengthBonus:       lengthBonus,
	}
}

// Included applies the inclusion rule: the overall score must reach the
// threshold, and a pair without any content similarity must also reach
// MetadataOnlyFloor.
func Included(r models.SimilarityResult, threshold float64) bool {
	if r.OverallScore < threshold {
		return false
	}
	return r.ContentSimilarity > 0 || r.OverallScore >= models.MetadataOnlyFloor
}

// MetadataAgreement is the mean agreement over issue type, priority, project,
// component overlap and label overlap.
func MetadataAgreement(a, b *models.Ticket) float64 {
	score := 0.0
	if sameNonEmpty(a.IssueType, b.IssueType) {
		score++
	}
	if sameNonEmpty(a.Priority, b.Priority) {
		score++
	}
	if sameNonEmpty(a.ProjectKey(), b.ProjectKey()) {
		score++
	}
	score += similarity.JaccardSimilarity(lowerSet(a.Components), lowerSet(b.Components))
	score += similarity.JaccardSimilarity(lowerSet(a.Labels), lowerSet(b.Labels))
	return score / 5.0
}

// isIdentifier reports whether a token mixes letters and digits (oauth2, http500).
func isIdentifier(tok string) bool {
	var letter, digit bool
	for _, r := range tok {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func lengthRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return float64(min(a, b)) / float64(max(a, b))
}

func sameNonEmpty(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = true
		}
	}
	return set
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
