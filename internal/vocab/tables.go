// Package vocab holds the vocabulary tables that drive normalization,
// subject extraction, technical-term scoring and recommendations.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

// KeywordRule is a named keyword cluster with an associated suggestion list.
type KeywordRule struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	Suggestions []string `yaml:"suggestions,omitempty"`
}

// FixPatterns lists the wording that marks fix information in a description
// or comment thread. Status and NextSteps are only read from comments.
type FixPatterns struct {
	Solution   []string `yaml:"solution"`
	Workaround []string `yaml:"workaround"`
	RootCause  []string `yaml:"root_cause"`
	Status     []string `yaml:"status"`
	NextSteps  []string `yaml:"next_steps"`
}

// Tables is one immutable set of vocabulary lists.
// Build it with Default, Parse or LoadFile; do not mutate after construction.
type Tables struct {
	StopWords          []string      `yaml:"stop_words"`
	NoiseWords         []string      `yaml:"noise_words"`
	GenericPhrases     []string      `yaml:"generic_phrases"`
	SubjectHeads       []string      `yaml:"subject_heads"`
	DomainPhrases      []string      `yaml:"domain_phrases"`
	TechnicalTerms     []string      `yaml:"technical_terms"`
	Recommendations    []KeywordRule `yaml:"recommendations"`
	DefaultSuggestions []string      `yaml:"default_suggestions"`
	Categories         []KeywordRule `yaml:"categories"`
	FixPatterns        FixPatterns   `yaml:"fix_patterns"`
	FixTechnology      []string      `yaml:"fix_technology"`
	ProblemPatterns    []string      `yaml:"problem_patterns"`

	stop  map[string]bool
	noise map[string]bool
	heads map[string]bool
	tech  map[string]bool
}

// Default returns the embedded default tables.
func Default() *Tables {
	t, err := Parse(defaultData)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(fmt.Sprintf("vocab: invalid embedded defaults: %v", err))
	}
	return t
}

// Parse decodes a complete table set from YAML.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	t.index()
	return &t, nil
}

// LoadFile reads a YAML file and overlays it on the embedded defaults.
// Any non-empty list in the file replaces the corresponding default list.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	overlay, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Default().Merge(overlay), nil
}

// Merge returns a copy of t with every non-empty list of overlay applied.
func (t *Tables) Merge(overlay *Tables) *Tables {
	out := *t
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	pick(&out.StopWords, overlay.StopWords)
	pick(&out.NoiseWords, overlay.NoiseWords)
	pick(&out.GenericPhrases, overlay.GenericPhrases)
	pick(&out.SubjectHeads, overlay.SubjectHeads)
	pick(&out.DomainPhrases, overlay.DomainPhrases)
	pick(&out.TechnicalTerms, overlay.TechnicalTerms)
	pick(&out.DefaultSuggestions, overlay.DefaultSuggestions)
	pick(&out.FixTechnology, overlay.FixTechnology)
	pick(&out.ProblemPatterns, overlay.ProblemPatterns)
	pick(&out.FixPatterns.Solution, overlay.FixPatterns.Solution)
	pick(&out.FixPatterns.Workaround, overlay.FixPatterns.Workaround)
	pick(&out.FixPatterns.RootCause, overlay.FixPatterns.RootCause)
	pick(&out.FixPatterns.Status, overlay.FixPatterns.Status)
	pick(&out.FixPatterns.NextSteps, overlay.FixPatterns.NextSteps)
	if len(overlay.Recommendations) > 0 {
		out.Recommendations = overlay.Recommendations
	}
	if len(overlay.Categories) > 0 {
		out.Categories = overlay.Categories
	}
	out.index()
	return &out
}

func (t *Tables) index() {
	t.stop = toSet(t.StopWords)
	t.noise = toSet(t.NoiseWords)
	t.heads = toSet(t.SubjectHeads)
	t.tech = toSet(t.TechnicalTerms)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// IsStopWord reports whether w is a general English stop word.
func (t *Tables) IsStopWord(w string) bool { return t.stop[w] }

// IsNoise reports whether w is a domain-noise word.
func (t *Tables) IsNoise(w string) bool { return t.noise[w] }

// IsSubjectHead reports whether w is a subject head term.
func (t *Tables) IsSubjectHead(w string) bool { return t.heads[w] }

// IsTechnical reports whether w is a known technical term.
func (t *Tables) IsTechnical(w string) bool { return t.tech[w] }
