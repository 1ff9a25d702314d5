// Package models contains domain models for ticketsim.
package models

import (
	"errors"
	"fmt"
	"math"
)

// MetadataOnlyFloor is the overall score a candidate with zero content
// similarity must reach to be included. Metadata agreement alone is kept
// strictly below it.
const MetadataOnlyFloor = 0.15

// ScoringConfig contains the similarity weights and bonus parameters.
type ScoringConfig struct {
	// SubjectWeight scales the subject-set Jaccard component.
	SubjectWeight float64 `json:"subject_weight"`

	// SummaryWeight scales the summary term-frequency cosine component.
	SummaryWeight float64 `json:"summary_weight"`

	// TechWeight scales the technical-term Jaccard component.
	TechWeight float64 `json:"tech_weight"`

	// JaccardWeight scales the full-text token Jaccard component.
	JaccardWeight float64 `json:"jaccard_weight"`

	// MetadataWeight scales metadata agreement (type, priority, project,
	// components, labels). It never contributes to content similarity.
	MetadataWeight float64 `json:"metadata_weight"`

	// LengthBonusMax is the bonus for summaries of near-identical length.
	LengthBonusMax float64 `json:"length_bonus_max"`

	// LengthRatioMin is the summary length ratio above which the bonus applies.
	LengthRatioMin float64 `json:"length_ratio_min"`
}

// DefaultScoringConfig returns the default scoring configuration.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		SubjectWeight:  0.50,
		SummaryWeight:  0.35,
		TechWeight:     0.10,
		JaccardWeight:  0.05,
		MetadataWeight: 0.0, // Text-only ranking by default
		LengthBonusMax: 0.02,
		LengthRatioMin: 0.8,
	}
}

// Validate checks weight ranges. The content weights must sum to 1 and the
// metadata weight plus the length bonus must stay below MetadataOnlyFloor.
func (c *ScoringConfig) Validate() error {
	weights := map[string]float64{
		"subject_weight":   c.SubjectWeight,
		"summary_weight":   c.SummaryWeight,
		"tech_weight":      c.TechWeight,
		"jaccard_weight":   c.JaccardWeight,
		"metadata_weight":  c.MetadataWeight,
		"length_bonus_max": c.LengthBonusMax,
		"length_ratio_min": c.LengthRatioMin,
	}
	for name, w := range weights {
		if w < 0 || w > 1 || math.IsNaN(w) {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, w)
		}
	}

	sum := c.SubjectWeight + c.SummaryWeight + c.TechWeight + c.JaccardWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("content weights must sum to 1, got %v", sum)
	}
	if c.LengthBonusMax > 0.02 {
		return errors.New("length_bonus_max must not exceed 0.02")
	}
	if c.MetadataWeight+c.LengthBonusMax >= MetadataOnlyFloor {
		return fmt.Errorf("metadata_weight + length_bonus_max must stay below %v", MetadataOnlyFloor)
	}
	return nil
}
