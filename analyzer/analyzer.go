package analyzer

import (
	"strings"

	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/notes"
)

// Findings is the state accumulated over one note. Flags only ever go from
// false to true; the drug vectors are indexed like the lexicon flat list.
type Findings struct {
	HistFound                  bool   `json:"hist_found"`
	DepressionFound            bool   `json:"depression_found"`
	AdmitFound                 bool   `json:"admit_found"`
	DischargeFound             bool   `json:"discharge_found"`
	GeneralDepressionMedsFound bool   `json:"general_depression_meds_found"`
	DrugsAdmit                 []bool `json:"drugs_admit"`
	DrugsDischarge             []bool `json:"drugs_discharge"`
}

// NewFindings returns empty findings sized for n generics
func NewFindings(n int) *Findings {
	return &Findings{
		DrugsAdmit:     make([]bool, n),
		DrugsDischarge: make([]bool, n),
	}
}

// AnyAdmit reports whether any target drug was seen on admission
func (f *Findings) AnyAdmit() bool {
	return anyTrue(f.DrugsAdmit)
}

// AnyDischarge reports whether any target drug was seen on discharge
func (f *Findings) AnyDischarge() bool {
	return anyTrue(f.DrugsDischarge)
}

func anyTrue(v []bool) bool {
	for _, b := range v {
		if b {
			return true
		}
	}
	return false
}

// Diagnostic describes a line mentioning medications outside any tracked section.
// It never affects findings.
type Diagnostic struct {
	RowID      int64
	SubjectID  int64
	HadmID     int64
	LineNumber int
	Line       string
}

// DiagnosticFunc receives ambiguous-line diagnostics.
// It is called synchronously from the analyzing goroutine.
type DiagnosticFunc func(Diagnostic)

// Option configures an Analyzer
type Option func(*Analyzer)

// WithDiagnostics installs a receiver for ambiguous-line diagnostics
func WithDiagnostics(fn DiagnosticFunc) Option {
	return func(a *Analyzer) {
		a.diagnostics = fn
	}
}

// Analyzer runs the section tracker and drug matcher over notes.
// It holds no per-note state and is safe for concurrent use.
type Analyzer struct {
	lex         *lexicon.Lexicon
	matcher     *DrugMatcher
	ranges      []lexicon.Range
	diagnostics DiagnosticFunc
}

// New creates an analyzer for lex
func New(lex *lexicon.Lexicon, opts ...Option) *Analyzer {
	a := &Analyzer{
		lex:     lex,
		matcher: NewDrugMatcher(lex),
		ranges:  lex.ClassRanges(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Lexicon returns the lexicon the analyzer matches against
func (a *Analyzer) Lexicon() *lexicon.Lexicon {
	return a.lex
}

// Analyze processes text line by line and returns its findings
func (a *Analyzer) Analyze(text string) *Findings {
	return a.analyze(text, Diagnostic{})
}

func (a *Analyzer) analyze(text string, ids Diagnostic) *Findings {
	f := NewFindings(a.lex.Len())
	var tracker SectionTracker

	for i, line := range strings.Split(text, "\n") {
		section, header := tracker.Update(line)
		if header {
			switch section {
			case SectionHistory:
				f.HistFound = true
			case SectionAdmit:
				f.AdmitFound = true
			case SectionDischarge:
				f.DischargeFound = true
			}
		}

		// The header line itself is also searched
		switch section {
		case SectionHistory:
			if depressionPattern.MatchString(line) {
				f.DepressionFound = true
			}

		case SectionAdmit:
			a.matcher.MatchInto(line, f.DrugsAdmit)
			if depressionMedsPattern.MatchString(line) {
				f.GeneralDepressionMedsFound = true
			}

		case SectionDischarge:
			a.matcher.MatchInto(line, f.DrugsDischarge)

		default:
			if a.diagnostics != nil && medicationPattern.MatchString(line) && transitionPattern.MatchString(line) {
				d := ids
				d.LineNumber = i + 1
				d.Line = line
				a.diagnostics(d)
			}
		}
	}

	return f
}

// Member reports, per class, whether any of its generics was seen on admission.
// Discharge matches deliberately play no part.
func (a *Analyzer) Member(f *Findings) []bool {
	member := make([]bool, len(a.ranges))
	for c, r := range a.ranges {
		for i := r.Start; i <= r.End; i++ {
			if f.DrugsAdmit[i] {
				member[c] = true
				break
			}
		}
	}
	return member
}

// Result is the per-note output record
type Result struct {
	RowID     int64     `json:"row_id"`
	SubjectID int64     `json:"subject_id"`
	HadmID    int64     `json:"hadm_id"`
	Findings  *Findings `json:"findings"`
	Group     Group     `json:"group"`
	Member    []bool    `json:"member"`
}

// AnalyzeNote validates n, analyzes its text and classifies the result.
// A *notes.RecordError is returned for notes without usable text.
func (a *Analyzer) AnalyzeNote(n notes.Note) (Result, error) {
	if err := n.Validate(); err != nil {
		return Result{}, err
	}

	f := a.analyze(n.Text, Diagnostic{RowID: n.RowID, SubjectID: n.SubjectID, HadmID: n.HadmID})

	return Result{
		RowID:     n.RowID,
		SubjectID: n.SubjectID,
		HadmID:    n.HadmID,
		Findings:  f,
		Group:     Classify(f),
		Member:    a.Member(f),
	}, nil
}
