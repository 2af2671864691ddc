// Package report writes per-note analysis results as delimited text, one row per note
// after a single header row.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/lexicon"
)

// ErrOutputExists is returned by Create when the output file is already there
var ErrOutputExists = errors.New("output file already exists")

// fixedColumns precede the class membership and generic columns
var fixedColumns = []string{
	"ROW_ID",
	"SUBJECT_ID",
	"HADM_ID",
	"HIST_FOUND",
	"DEPRESSION",
	"ADMIT_FOUND",
	"DIS_FOUND",
	"GEN_DEPRESS_MEDS_FOUND",
	"GROUP",
}

// Header returns the column names for lex: fixed columns, class names, then generics
func Header(lex *lexicon.Lexicon) []string {
	header := make([]string, 0, len(fixedColumns)+len(lex.ClassNames())+lex.Len())
	header = append(header, fixedColumns...)
	header = append(header, lex.ClassNames()...)
	header = append(header, lex.FlatList()...)
	return header
}

// Record renders one result in Header order. Drug columns carry admission matches.
func Record(r analyzer.Result) []string {
	f := r.Findings
	rec := make([]string, 0, len(fixedColumns)+len(r.Member)+len(f.DrugsAdmit))
	rec = append(rec,
		strconv.FormatInt(r.RowID, 10),
		strconv.FormatInt(r.SubjectID, 10),
		strconv.FormatInt(r.HadmID, 10),
		flag(f.HistFound),
		flag(f.DepressionFound),
		flag(f.AdmitFound),
		flag(f.DischargeFound),
		flag(f.GeneralDepressionMedsFound),
		r.Group.String(),
	)
	for _, m := range r.Member {
		rec = append(rec, flag(m))
	}
	for _, d := range f.DrugsAdmit {
		rec = append(rec, flag(d))
	}
	return rec
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Option configures a Writer
type Option func(*Writer)

// WithDelimiter sets the field delimiter (default ',')
func WithDelimiter(d rune) Option {
	return func(w *Writer) {
		w.csv.Comma = d
	}
}

// Writer emits the header on the first write and one row per result after it.
// It is not safe for concurrent use.
type Writer struct {
	csv           *csv.Writer
	lex           *lexicon.Lexicon
	headerWritten bool
	rows          int
}

// NewWriter returns a Writer for results produced with lex
func NewWriter(w io.Writer, lex *lexicon.Lexicon, opts ...Option) *Writer {
	rw := &Writer{csv: csv.NewWriter(w), lex: lex}
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// WriteHeader writes the header row unless it was already written
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if err := w.csv.Write(Header(w.lex)); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// Write appends one result row
func (w *Writer) Write(r analyzer.Result) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if r.Findings == nil {
		return fmt.Errorf("result for row %d has no findings", r.RowID)
	}
	if len(r.Findings.DrugsAdmit) != w.lex.Len() || len(r.Member) != len(w.lex.ClassNames()) {
		return fmt.Errorf("result for row %d does not match the report lexicon", r.RowID)
	}
	if err := w.csv.Write(Record(r)); err != nil {
		return fmt.Errorf("failed to write report row %d: %w", r.RowID, err)
	}
	w.rows++
	return nil
}

// Rows returns the number of result rows written
func (w *Writer) Rows() int {
	return w.rows
}

// Flush writes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// Create opens path for a new report. An existing file is only truncated when force is set.
func Create(path string, force bool) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w (use --force to overwrite)", path, ErrOutputExists)
		}
		return nil, fmt.Errorf("failed to create report %s: %w", path, err)
	}
	return f, nil
}
