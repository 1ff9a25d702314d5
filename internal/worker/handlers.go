package worker

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ticketsim/internal/analysis"
	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/pkg/models"
)

// BatchRequest is the body of POST /api/analyze/batch.
type BatchRequest struct {
	Keys       []string `json:"keys"`
	Threshold  float64  `json:"threshold,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	NoCache    bool     `json:"no_cache,omitempty"`
}

// BatchResponse is the reply to POST /api/analyze/batch.
type BatchResponse struct {
	Items     []analysis.BatchItem `json:"items"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error     string                `json:"error"`
	Analysis  *models.AnalysisError `json:"analysis_error,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps err to a status code. Input errors are the caller's fault,
// upstream failures are reported as a bad gateway.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error(), RequestID: GetRequestID(r.Context())}

	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		resp.Analysis = ae
		switch ae.Kind {
		case models.KindInput:
			status = http.StatusBadRequest
		case models.KindUpstreamFetch:
			status = http.StatusBadGateway
		}
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, RequestID: GetRequestID(r.Context())})
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleHealth handles health check requests.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleAnalyze runs one analysis. Query parameters: threshold, max_results,
// no_cache.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts analysis.Options

	if v := q.Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			badRequest(w, r, "invalid threshold: "+v)
			return
		}
		opts.Threshold = t
	}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, r, "invalid max_results: "+v)
			return
		}
		opts.MaxResults = n
	}
	opts.NoCache, _ = strconv.ParseBool(q.Get("no_cache"))

	run, err := s.analyzer.Analyze(r.Context(), chi.URLParam(r, "key"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleAnalyzeBatch analyzes several keys. Per-key failures are reported in
// the items; the request itself only fails on a malformed body.
func (s *Service) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if len(req.Keys) == 0 {
		badRequest(w, r, "keys must not be empty")
		return
	}
	if len(req.Keys) > MaxBatchKeys {
		badRequest(w, r, "too many keys (max "+strconv.Itoa(MaxBatchKeys)+")")
		return
	}

	items := s.analyzer.AnalyzeBatch(r.Context(), req.Keys, analysis.Options{
		Threshold:  req.Threshold,
		MaxResults: req.MaxResults,
		NoCache:    req.NoCache,
	})

	resp := BatchResponse{Items: items}
	for _, it := range items {
		switch {
		case it.Skipped:
			resp.Skipped++
		case it.Err != nil:
			resp.Failed++
		default:
			resp.Succeeded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGroups partitions tickets given inline or fetched by a source query.
func (s *Service) handleGroups(w http.ResponseWriter, r *http.Request) {
	var req analysis.GroupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.Query != nil {
		if err := validateQuery(req.Query); err != nil {
			badRequest(w, r, err.Error())
			return
		}
	}

	run, err := s.analyzer.Group(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func validateQuery(q *source.Query) error {
	for i, p := range q.Projects {
		p = strings.ToUpper(strings.TrimSpace(p))
		if err := ValidateProjectKey(p); err != nil {
			return err
		}
		q.Projects[i] = p
	}
	return nil
}

// handleGetStats reports analyzer, cache and rate limiter statistics.
func (s *Service) handleGetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime)
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"analysis":       s.analyzer.Stats().GetStats(),
		"cache":          s.analyzer.CacheStats(),
		"rate_limit":     s.limiter.Stats(),
		"vocabulary":     s.vocab.Path(),
	})
}
