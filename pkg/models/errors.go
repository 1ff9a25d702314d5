// Package models contains domain models for ticketsim.
package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the analysis core.
type ErrorKind string

const (
	// KindInput is a missing or malformed reference key. Never retried.
	KindInput ErrorKind = "input"
	// KindUpstreamFetch is a ticket source failure after adapter retries.
	KindUpstreamFetch ErrorKind = "upstream_fetch"
	// KindScoring is malformed candidate text. Recovered locally.
	KindScoring ErrorKind = "scoring"
)

// Sentinel errors for errors.Is checks against AnalysisError.
var (
	ErrInput         = errors.New("invalid input")
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	ErrScoring       = errors.New("scoring failed")
)

// AnalysisError is a structured run-level failure.
type AnalysisError struct {
	Err          error     `json:"-"`
	Kind         ErrorKind `json:"kind"`
	ReferenceKey string    `json:"reference_key,omitempty"`
	Stage        string    `json:"stage"`
	Message      string    `json:"message"`
}

// NewAnalysisError builds an AnalysisError.
func NewAnalysisError(kind ErrorKind, referenceKey, stage, message string, err error) *AnalysisError {
	return &AnalysisError{
		Kind:         kind,
		ReferenceKey: referenceKey,
		Stage:        stage,
		Message:      message,
		Err:          err,
	}
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("%s error at %s", e.Kind, e.Stage)
	if e.ReferenceKey != "" {
		msg += " for " + e.ReferenceKey
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *AnalysisError) Is(target error) bool {
	switch e.Kind {
	case KindInput:
		return target == ErrInput
	case KindUpstreamFetch:
		return target == ErrUpstreamFetch
	case KindScoring:
		return target == ErrScoring
	}
	return false
}

// Diagnostic records a problem that was recovered without failing the run,
// such as a skipped sub-query or a candidate with unscorable text.
type Diagnostic struct {
	Kind         ErrorKind `json:"kind"`
	ReferenceKey string    `json:"reference_key,omitempty"`
	CandidateKey string    `json:"candidate_key,omitempty"`
	Stage        string    `json:"stage"`
	Message      string    `json:"message"`
}
