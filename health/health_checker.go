// Package health provides health checking for the finddrugs API.
package health

import (
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/giygas/finddrugs/interfaces"
)

// Compile-time check to ensure HealthCheckerImpl implements HealthChecker
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store          interfaces.LexiconStore
	reloadInterval time.Duration
}

// NewHealthChecker creates a health checker. reloadInterval is the lexicon reload
// period, zero when reloads are disabled.
func NewHealthChecker(store interfaces.LexiconStore, reloadInterval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:          store,
		reloadInterval: reloadInterval,
	}
}

// HealthCheck reports whether a lexicon is loaded and reloads keep succeeding.
// Used by the /health endpoint.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	lex := h.store.GetLexicon()
	lastUpdate := h.store.GetLastUpdated()
	isUpdating := h.store.IsUpdating()

	generics, classes := 0, 0
	if lex != nil {
		generics = lex.Len()
		classes = len(lex.ClassNames())
	}

	dataAge := time.Since(lastUpdate)

	switch {
	case lex == nil || generics == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case h.reloadInterval > 0 && dataAge > 4*h.reloadInterval:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case h.reloadInterval > 0 && dataAge > 2*h.reloadInterval:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"data": map[string]any{
			"classes":     classes,
			"generics":    generics,
			"is_updating": isUpdating,
		},
		"system": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": mem.Alloc / 1024 / 1024,
				"sys_mb":   mem.Sys / 1024 / 1024,
			},
		},
	}

	if start := h.store.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = int64(time.Since(start).Seconds())
	}

	if next := h.CalculateNextUpdate(); !next.IsZero() {
		data["next_update"] = next.Format(time.RFC3339)
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload, or the zero time when
// reloads are disabled
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	if h.reloadInterval <= 0 {
		return time.Time{}
	}

	last := h.store.GetLastUpdated()
	if last.IsZero() {
		return time.Now().Add(h.reloadInterval)
	}

	next := last.Add(h.reloadInterval)
	// A missed reload is due on the next tick after now
	for now := time.Now(); next.Before(now); {
		next = next.Add(h.reloadInterval)
	}
	return next
}
