// Package validation checks notes submitted to the API and reports suspicious
// entries in drug lexicons.
package validation

import (
	"fmt"
	"strings"

	"github.com/giygas/finddrugs/interfaces"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/notes"
)

const (
	// MaxNoteLength bounds the text of a single note (the longest MIMIC discharge
	// summaries are well under this)
	MaxNoteLength = 512 * 1024

	// MaxBatchNotes bounds the number of notes in one batch request
	MaxBatchNotes = 500
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	maxNoteLength int
	maxBatchNotes int
}

// NewDataValidator creates a validator with the default limits
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{
		maxNoteLength: MaxNoteLength,
		maxBatchNotes: MaxBatchNotes,
	}
}

// ValidateNote checks a note submitted for analysis
func (v *DataValidatorImpl) ValidateNote(n notes.Note) error {
	if n.RowID < 0 || n.SubjectID < 0 || n.HadmID < 0 {
		return fmt.Errorf("identifiers must not be negative")
	}

	if err := n.Validate(); err != nil {
		return err
	}

	if len(n.Text) > v.maxNoteLength {
		return fmt.Errorf("note text too long: %d bytes (max %d)", len(n.Text), v.maxNoteLength)
	}

	if strings.ContainsRune(n.Text, 0) {
		return fmt.Errorf("note text contains NUL bytes")
	}

	return nil
}

// ValidateBatch checks the shape of a batch request and every note in it
func (v *DataValidatorImpl) ValidateBatch(batch []notes.Note) error {
	if len(batch) == 0 {
		return fmt.Errorf("batch is empty")
	}
	if len(batch) > v.maxBatchNotes {
		return fmt.Errorf("batch too large: %d notes (max %d)", len(batch), v.maxBatchNotes)
	}

	for i, n := range batch {
		if err := v.ValidateNote(n); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	return nil
}

// ReportLexiconQuality finds empty classes, generics listed in several classes and
// brand tokens shared between generics. Each finding makes analysis results
// harder to interpret but does not prevent loading.
func (v *DataValidatorImpl) ReportLexiconQuality(lex *lexicon.Lexicon) *interfaces.LexiconQualityReport {
	report := &interfaces.LexiconQualityReport{
		SharedGenerics: make(map[string][]string),
		SharedBrands:   make(map[string][]string),
	}
	if lex == nil {
		return report
	}

	classes := lex.Classes()
	report.Classes = len(classes)
	report.Generics = lex.Len()

	genericClasses := make(map[string][]string)
	for _, c := range classes {
		if len(c.Generics) == 0 {
			report.EmptyClasses = append(report.EmptyClasses, c.Name)
		}
		for _, g := range c.Generics {
			genericClasses[g] = append(genericClasses[g], c.Name)
		}
	}
	for g, cs := range genericClasses {
		if len(cs) > 1 {
			report.SharedGenerics[g] = cs
		}
	}

	tokenGenerics := make(map[string][]string)
	flat := lex.FlatList()
	for i, generic := range flat {
		seen := make(map[string]bool)
		for _, token := range strings.Split(lex.Source(i), "|") {
			token = strings.TrimSpace(token)
			if token == "" || seen[token] {
				continue
			}
			seen[token] = true
			tokenGenerics[token] = append(tokenGenerics[token], generic)
		}
	}
	for token, gs := range tokenGenerics {
		if len(gs) > 1 && !sameGeneric(gs) {
			report.SharedBrands[token] = gs
		}
	}

	return report
}

// sameGeneric reports whether all entries name one generic (listed in several classes)
func sameGeneric(gs []string) bool {
	for _, g := range gs[1:] {
		if g != gs[0] {
			return false
		}
	}
	return true
}

// LogQualityReport writes one warning per kind of finding
func LogQualityReport(report *interfaces.LexiconQualityReport) {
	if report == nil {
		return
	}

	if len(report.EmptyClasses) > 0 {
		logging.Warn("Drug classes without generics",
			"count", len(report.EmptyClasses),
			"classes", report.EmptyClasses,
		)
	}

	if len(report.SharedGenerics) > 0 {
		logging.Warn("Generics listed in several classes",
			"count", len(report.SharedGenerics),
			"generics", report.SharedGenerics,
		)
	}

	if len(report.SharedBrands) > 0 {
		logging.Warn("Brand names shared between generics",
			"count", len(report.SharedBrands),
			"brands", report.SharedBrands,
		)
	}
}
