// Package handlers provides the HTTP handlers of the finddrugs API: single and batch
// note analysis, lexicon inspection and health checks.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/interfaces"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/metrics"
	"github.com/giygas/finddrugs/notes"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	store         interfaces.LexiconStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(store interfaces.LexiconStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		store:         store,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// AnalysisResponse is one analyzed note with the class names its member vector refers to
type AnalysisResponse struct {
	analyzer.Result
	Classes []string `json:"classes"`
}

// LexiconResponse describes the active lexicon
type LexiconResponse struct {
	Classes    []lexicon.Class                  `json:"classes"`
	FlatList   []string                         `json:"flat_list"`
	Generics   int                              `json:"generics"`
	LastUpdate string                           `json:"last_update"`
	Quality    *interfaces.LexiconQualityReport `json:"quality,omitempty"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	LastUpdate    string         `json:"last_update"`
	DataAgeHours  float64        `json:"data_age_hours"`
	Uptime        string         `json:"uptime,omitempty"`
	NextUpdate    string         `json:"next_update,omitempty"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
	UptimeSeconds int64          `json:"uptime_seconds,omitempty"`
}

// currentAnalyzer returns the analyzer for the active lexicon, answering 503 when
// none is loaded yet
func (h *HTTPHandlerImpl) currentAnalyzer(w http.ResponseWriter, r *http.Request) *analyzer.Analyzer {
	a := h.store.GetAnalyzer()
	if a == nil {
		respondWithError(w, r, http.StatusServiceUnavailable, "Drug lexicon not loaded yet")
	}
	return a
}

// analyze runs one validated note through a
func (h *HTTPHandlerImpl) analyze(r *http.Request, a *analyzer.Analyzer, n notes.Note) (AnalysisResponse, error) {
	res, err := a.AnalyzeNote(n)
	if err != nil {
		metrics.RecordErrorsTotal.Inc()
		return AnalysisResponse{}, err
	}

	metrics.ObserveGroup(res.Group.String())
	if res.Group == analyzer.GroupUncertain {
		logging.Warn("Note matches no exposure group",
			"request_id", middleware.GetReqID(r.Context()),
			"row_id", res.RowID,
			"subject_id", res.SubjectID,
		)
	}

	return AnalysisResponse{Result: res, Classes: a.Lexicon().ClassNames()}, nil
}

// AnalyzeNote handles POST /v1/analyze with one note as the body
func (h *HTTPHandlerImpl) AnalyzeNote(w http.ResponseWriter, r *http.Request) {
	var n notes.Note
	if err := decodeJSON(r, &n); err != nil {
		respondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.ValidateNote(n); err != nil {
		logging.Warn("Rejected note", "row_id", n.RowID, "error", err)
		respondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	a := h.currentAnalyzer(w, r)
	if a == nil {
		return
	}

	resp, err := h.analyze(r, a, n)
	if err != nil {
		respondWithError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondWithJSON(w, r, http.StatusOK, resp)
}

// AnalyzeBatch handles POST /v1/analyze/batch with an array of notes as the body.
// Results keep the request order. All notes are analyzed with the same lexicon.
func (h *HTTPHandlerImpl) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var batch []notes.Note
	if err := decodeJSON(r, &batch); err != nil {
		respondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.ValidateBatch(batch); err != nil {
		logging.Warn("Rejected note batch", "notes", len(batch), "error", err)
		respondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	a := h.currentAnalyzer(w, r)
	if a == nil {
		return
	}

	out := make([]AnalysisResponse, 0, len(batch))
	for i, n := range batch {
		resp, err := h.analyze(r, a, n)
		if err != nil {
			respondWithError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("note %d: %v", i, err))
			return
		}
		out = append(out, resp)
	}

	respondWithJSON(w, r, http.StatusOK, out)
}

// ServeLexicon handles GET /v1/lexicon
func (h *HTTPHandlerImpl) ServeLexicon(w http.ResponseWriter, r *http.Request) {
	lex := h.store.GetLexicon()
	if lex == nil {
		respondWithError(w, r, http.StatusServiceUnavailable, "Drug lexicon not loaded yet")
		return
	}

	respondWithJSON(w, r, http.StatusOK, LexiconResponse{
		Classes:    lex.Classes(),
		FlatList:   lex.FlatList(),
		Generics:   lex.Len(),
		LastUpdate: h.store.GetLastUpdated().Format(time.RFC3339),
		Quality:    h.store.GetQualityReport(),
	})
}

// HealthCheck handles GET /health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.healthChecker.HealthCheck()

	resp := HealthResponse{Status: status}
	if v, ok := details["last_update"].(string); ok {
		resp.LastUpdate = v
	}
	if v, ok := details["data_age_hours"].(float64); ok {
		resp.DataAgeHours = v
	}
	if v, ok := details["next_update"].(string); ok {
		resp.NextUpdate = v
	}
	if v, ok := details["data"].(map[string]any); ok {
		resp.Data = v
	}
	if v, ok := details["system"].(map[string]any); ok {
		resp.System = v
	}
	if v, ok := details["uptime_seconds"].(int64); ok {
		resp.UptimeSeconds = v
		resp.Uptime = formatUptimeHuman(time.Duration(v) * time.Second)
	}

	respondWithJSON(w, r, httpStatus, resp)
}

// decodeJSON decodes the request body into v, rejecting trailing data
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: unexpected data after the first value")
	}
	return nil
}
