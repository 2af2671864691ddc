// Package notes provides the clinical note record analyzed by the core and the
// sources that produce it: MIMIC note-event files, CSV exports and a Postgres
// noteevents table.
package notes

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Note is one clinical note as handed to the analyzer
type Note struct {
	RowID     int64  `json:"row_id"`
	SubjectID int64  `json:"subject_id"`
	HadmID    int64  `json:"hadm_id"`
	Category  string `json:"category,omitempty"`
	Text      string `json:"text"`
	Source    string `json:"-"` // file name or table the note came from, for diagnostics
}

// Validate checks that the note carries usable text
func (n Note) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return &RecordError{RowID: n.RowID, Source: n.Source, Reason: "missing note text"}
	}
	if !utf8.ValidString(n.Text) {
		return &RecordError{RowID: n.RowID, Source: n.Source, Reason: "note text is not valid UTF-8"}
	}
	return nil
}

// RecordError reports a note that cannot be analyzed.
// Whether to skip the note or abort the run is left to the caller.
type RecordError struct {
	RowID  int64
	Source string
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("note record %d", e.RowID)
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// HandlerFunc receives each note in source order. recErr is non-nil when the
// source could not build a usable record; returning an error stops iteration.
type HandlerFunc func(n Note, recErr error) error

// Source produces notes
type Source interface {
	Each(ctx context.Context, fn HandlerFunc) error
}
