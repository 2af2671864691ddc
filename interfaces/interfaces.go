// Package interfaces defines the contracts shared between the finddrugs server
// components so they can be wired and tested independently.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/notes"
)

// LexiconQualityReport summarizes suspicious entries in a loaded lexicon.
// None of them prevents the lexicon from being used.
type LexiconQualityReport struct {
	Classes        int
	Generics       int
	EmptyClasses   []string            // classes whose list had no generics
	SharedGenerics map[string][]string // generic -> classes listing it
	SharedBrands   map[string][]string // brand token -> generics whose pattern contains it
}

// LexiconStore holds the active lexicon and the analyzer built from it.
// Readers always see a lexicon and analyzer that belong together.
type LexiconStore interface {
	GetLexicon() *lexicon.Lexicon
	GetAnalyzer() *analyzer.Analyzer
	GetQualityReport() *LexiconQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateLexicon(lex *lexicon.Lexicon, a *analyzer.Analyzer, report *LexiconQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// LexiconLoader produces a fresh lexicon, typically from the drug list files
type LexiconLoader interface {
	Load(ctx context.Context) (*lexicon.Lexicon, error)
}

// Scheduler manages periodic lexicon reloads
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler defines the API endpoints
type HTTPHandler interface {
	AnalyzeNote(w http.ResponseWriter, r *http.Request)
	AnalyzeBatch(w http.ResponseWriter, r *http.Request)
	ServeLexicon(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health
type HealthChecker interface {
	// HealthCheck returns the status name, details for the response body and the HTTP status
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled lexicon reload
	CalculateNextUpdate() time.Time
}

// DataValidator checks API input and lexicon consistency
type DataValidator interface {
	// ValidateNote checks a note submitted for analysis
	ValidateNote(n notes.Note) error

	// ValidateBatch checks the size of a batch request
	ValidateBatch(batch []notes.Note) error

	// ReportLexiconQuality lists lexicon entries worth a warning
	ReportLexiconQuality(lex *lexicon.Lexicon) *LexiconQualityReport
}
