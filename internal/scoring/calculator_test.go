// Package scoring provides similarity score calculation for ticket pairs.
package scoring

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ticketsim/internal/subject"
	"github.com/thebtf/ticketsim/internal/textnorm"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/pkg/models"
)

// CalculatorSuite is a test suite for the Calculator.
type CalculatorSuite struct {
	suite.Suite
	calc *Calculator
	ctx  context.Context
}

func (s *CalculatorSuite) SetupTest() {
	norm := textnorm.New(vocab.Default())
	s.calc = NewCalculator(nil, norm, subject.NewHeadTermRecognizer(norm))
	s.ctx = context.Background()
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

func (s *CalculatorSuite) score(ref, cand *models.Ticket) models.SimilarityResult {
	result, diag := s.calc.Score(s.ctx, s.calc.Profile(ref), s.calc.Profile(cand))
	s.Nil(diag)
	return result
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *CalculatorSuite) TestScore_GoodScenarios_SharedSubject() {
	ref := &models.Ticket{Key: "PLAT-1", Summary: "Database connection timeout in production", IssueType: "Bug"}
	cand := &models.Ticket{Key: "PLAT-2", Summary: "Database connection pool exhaustion", IssueType: "Bug"}

	r := s.score(ref, cand)

	s.InDelta(1.0/9.0, r.SubjectScore, 0.001)
	s.InDelta(0.5, r.SummaryScore, 0.001)
	s.InDelta(0.5, r.TechScore, 0.001, "pool and exhaustion are not technical terms")
	s.InDelta(1.0/3.0, r.JaccardScore, 0.001)
	s.Greater(r.ContentSimilarity, 0.0)
	s.InDelta(0.2972, r.ContentSimilarity, 0.001)
	s.Greater(r.LengthBonus, 0.0)
	s.LessOrEqual(r.LengthBonus, 0.02)
	s.GreaterOrEqual(r.OverallScore, 0.3)
	s.True(Included(r, 0.3))
}

func (s *CalculatorSuite) TestScore_GoodScenarios_Identical() {
	t := &models.Ticket{Key: "PLAT-1", Summary: "Performance dashboard slow to load", Description: "The analytics dashboard takes 40s."}
	other := *t
	other.Key = "PLAT-2"

	r := s.score(t, &other)

	s.InDelta(1.0, r.ContentSimilarity, 0.0001)
	s.InDelta(1.0, r.OverallScore, 0.0001, "clamped to 1")
}

func (s *CalculatorSuite) TestScore_GoodScenarios_IdentifiersAreTechnical() {
	ref := s.calc.Profile(&models.Ticket{Key: "A", Summary: "oauth2 callback returns http500"})
	s.True(ref.TechTerms["oauth2"])
	s.True(ref.TechTerms["http500"])
	s.False(ref.TechTerms["callback"])
}

func (s *CalculatorSuite) TestScore_GoodScenarios_MetadataWeight() {
	cfg := models.DefaultScoringConfig()
	cfg.MetadataWeight = 0.1
	s.Require().NoError(cfg.Validate())
	norm := textnorm.New(vocab.Default())
	calc := NewCalculator(cfg, norm, subject.NewHeadTermRecognizer(norm))

	ref := &models.Ticket{Key: "PLAT-1", Summary: "API timeout", IssueType: "Bug", Priority: "High"}
	cand := &models.Ticket{Key: "PLAT-2", Summary: "API timeout", IssueType: "Bug", Priority: "Low"}

	r, diag := calc.Score(s.ctx, calc.Profile(ref), calc.Profile(cand))
	s.Nil(diag)
	// type and project agree, priority differs, no components or labels
	s.InDelta(0.4, r.MetadataScore, 0.001)
	s.InDelta(1.0, r.ContentSimilarity, 0.001, "metadata never enters content similarity")
}

// =============================================================================
// BAD SCENARIOS - Metadata-only and malformed pairs
// =============================================================================

func (s *CalculatorSuite) TestScore_BadScenarios_MetadataOnlyExcluded() {
	ref := &models.Ticket{Key: "PLAT-1", Project: "PLAT", Summary: "DialogGPT API timeout", IssueType: "Bug", Priority: "High"}
	cand := &models.Ticket{Key: "PLAT-2", Project: "PLAT", Summary: "Admin console migration tool update", IssueType: "Bug", Priority: "High"}

	r := s.score(ref, cand)

	s.Zero(r.ContentSimilarity)
	s.Zero(r.LengthBonus)
	s.Less(r.OverallScore, models.MetadataOnlyFloor)
	s.False(Included(r, 0.1))
	s.False(Included(r, 0.0))
}

func (s *CalculatorSuite) TestScore_BadScenarios_MaxMetadataWeightStillExcluded() {
	cfg := models.DefaultScoringConfig()
	cfg.MetadataWeight = 0.129
	s.Require().NoError(cfg.Validate())
	norm := textnorm.New(vocab.Default())
	calc := NewCalculator(cfg, norm, subject.NewHeadTermRecognizer(norm))

	ref := &models.Ticket{Key: "PLAT-1", Summary: "DialogGPT API timeout", IssueType: "Bug", Priority: "High",
		Components: []string{"Bots"}, Labels: []string{"urgent"}}
	cand := &models.Ticket{Key: "PLAT-2", Summary: "Admin console migration tool update", IssueType: "Bug", Priority: "High",
		Components: []string{"Bots"}, Labels: []string{"urgent"}}

	r, _ := calc.Score(s.ctx, calc.Profile(ref), calc.Profile(cand))
	s.InDelta(1.0, r.MetadataScore, 0.001)
	s.Zero(r.ContentSimilarity)
	s.Less(r.OverallScore, models.MetadataOnlyFloor)
	s.False(Included(r, 0.0))
}

func (s *CalculatorSuite) TestScore_BadScenarios_MalformedText() {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	ref := s.calc.Profile(&models.Ticket{Key: "PLAT-1", Summary: "API timeout"})
	empty := s.calc.Profile(&models.Ticket{Key: "PLAT-2", Summary: "  ", Description: ""})
	invalid := s.calc.Profile(&models.Ticket{Key: "PLAT-3", Summary: "API \xff\xfe timeout"})

	for _, cand := range []*Profile{empty, invalid} {
		r, diag := s.calc.Score(ctx, ref, cand)
		s.Zero(r.OverallScore)
		s.Zero(r.ContentSimilarity)
		s.Require().NotNil(diag)
		s.Equal(models.KindScoring, diag.Kind)
		s.Equal(cand.Ticket.Key, diag.CandidateKey)
	}
	s.Contains(buf.String(), "Malformed ticket text")
}

func (s *CalculatorSuite) TestScore_BadScenarios_LengthBonusNeedsContent() {
	ref := &models.Ticket{Key: "A", Summary: "alpha bravo charlie"}
	cand := &models.Ticket{Key: "B", Summary: "delta echo foxtrot"}

	r := s.score(ref, cand)

	s.Zero(r.ContentSimilarity)
	s.Zero(r.LengthBonus, "equal-length summaries earn nothing without text overlap")
	s.Zero(r.OverallScore)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestScore_RangeAndRegression(t *testing.T) {
	norm := textnorm.New(vocab.Default())
	calc := NewCalculator(nil, norm, subject.NewHeadTermRecognizer(norm))
	words := []string{
		"api", "timeout", "dashboard", "database", "connection", "oauth2", "login",
		"session", "report", "filter", "slow", "export", "the", "not", "working", "bug",
	}
	rng := rand.New(rand.NewSource(42))
	sentence := func() string {
		n := 1 + rng.Intn(6)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = words[rng.Intn(len(words))]
		}
		return strings.Join(parts, " ")
	}

	for i := 0; i < 500; i++ {
		a := &models.Ticket{Key: "A", Summary: sentence(), Description: sentence(), IssueType: "Bug"}
		b := &models.Ticket{Key: "B", Summary: sentence(), Description: sentence(), IssueType: "Bug"}
		r, _ := calc.Score(context.Background(), calc.Profile(a), calc.Profile(b))

		for _, v := range []float64{r.OverallScore, r.SubjectScore, r.SummaryScore, r.TechScore, r.JaccardScore, r.ContentSimilarity} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
		if r.ContentSimilarity == 0 && r.OverallScore < models.MetadataOnlyFloor {
			for _, th := range []float64{0, 0.05, 0.1, 0.3} {
				assert.False(t, Included(r, th))
			}
		}
	}
}

func TestIncluded(t *testing.T) {
	tests := []struct {
		name      string
		result    models.SimilarityResult
		threshold float64
		expected  bool
	}{
		{"above threshold with content", models.SimilarityResult{OverallScore: 0.35, ContentSimilarity: 0.3}, 0.3, true},
		{"below threshold", models.SimilarityResult{OverallScore: 0.25, ContentSimilarity: 0.25}, 0.3, false},
		{"exactly at threshold", models.SimilarityResult{OverallScore: 0.3, ContentSimilarity: 0.3}, 0.3, true},
		{"no content under floor", models.SimilarityResult{OverallScore: 0.12}, 0.1, false},
		{"no content at floor", models.SimilarityResult{OverallScore: 0.15}, 0.1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Included(tt.result, tt.threshold))
		})
	}
}

func TestScoringConfig_Validate(t *testing.T) {
	assert.NoError(t, models.DefaultScoringConfig().Validate())

	cfg := models.DefaultScoringConfig()
	cfg.MetadataWeight = 0.13
	assert.Error(t, cfg.Validate(), "0.13 + 0.02 reaches the floor")

	cfg = models.DefaultScoringConfig()
	cfg.SubjectWeight = 0.6
	assert.Error(t, cfg.Validate())

	cfg = models.DefaultScoringConfig()
	cfg.LengthBonusMax = 0.05
	assert.Error(t, cfg.Validate())
}
