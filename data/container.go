// Package data holds the lexicon served by the finddrugs API.
// LexiconContainer swaps lexicons atomically so requests in flight keep the
// snapshot they started with while a reload installs the next one.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/interfaces"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/metrics"
)

// Compile-time check to ensure LexiconContainer implements LexiconStore
var _ interfaces.LexiconStore = (*LexiconContainer)(nil)

// snapshot keeps a lexicon together with the analyzer compiled from it
type snapshot struct {
	lex      *lexicon.Lexicon
	analyzer *analyzer.Analyzer
	report   *interfaces.LexiconQualityReport
}

// LexiconContainer holds the active lexicon with atomic pointers for zero-downtime reloads
type LexiconContainer struct {
	current         atomic.Pointer[snapshot]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewLexiconContainer creates an empty container
func NewLexiconContainer() *LexiconContainer {
	lc := &LexiconContainer{}
	lc.current.Store(&snapshot{})
	lc.lastUpdated.Store(time.Time{})
	lc.serverStartTime.Store(time.Time{})
	return lc
}

// GetLexicon returns the active lexicon, or nil before the first load
func (lc *LexiconContainer) GetLexicon() *lexicon.Lexicon {
	if s := lc.current.Load(); s != nil && s.lex != nil {
		return s.lex
	}

	logging.Warn("Lexicon is not loaded")
	return nil
}

// GetAnalyzer returns the analyzer for the active lexicon, or nil before the first load
func (lc *LexiconContainer) GetAnalyzer() *analyzer.Analyzer {
	if s := lc.current.Load(); s != nil && s.analyzer != nil {
		return s.analyzer
	}

	logging.Warn("Analyzer is not available, lexicon not loaded")
	return nil
}

// GetQualityReport returns the quality report computed for the active lexicon
func (lc *LexiconContainer) GetQualityReport() *interfaces.LexiconQualityReport {
	if s := lc.current.Load(); s != nil {
		return s.report
	}
	return nil
}

// GetLastUpdated returns the time the active lexicon was installed
func (lc *LexiconContainer) GetLastUpdated() time.Time {
	if v := lc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a reload is in progress
func (lc *LexiconContainer) IsUpdating() bool {
	return lc.updating.Load()
}

// SetServerStartTime sets the server start time
func (lc *LexiconContainer) SetServerStartTime(startTime time.Time) {
	lc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (lc *LexiconContainer) GetServerStartTime() time.Time {
	if v := lc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateLexicon atomically installs a new lexicon and its analyzer.
// A nil lexicon or an analyzer built for another lexicon is ignored.
func (lc *LexiconContainer) UpdateLexicon(lex *lexicon.Lexicon, a *analyzer.Analyzer, report *interfaces.LexiconQualityReport) {
	if lex == nil || a == nil || a.Lexicon() != lex {
		logging.Error("Refusing to install an inconsistent lexicon")
		return
	}

	lc.current.Store(&snapshot{lex: lex, analyzer: a, report: report})
	lc.lastUpdated.Store(time.Now())
	metrics.LexiconGenerics.Set(float64(lex.Len()))
}

// BeginUpdate marks the start of a reload.
// Returns true if the reload can proceed, false if another one is in progress
func (lc *LexiconContainer) BeginUpdate() bool {
	return lc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload
func (lc *LexiconContainer) EndUpdate() {
	lc.updating.Store(false)
}
