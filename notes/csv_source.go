package notes

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/giygas/finddrugs/charset"
	"github.com/giygas/finddrugs/logging"
)

// CSVSource reads notes from a noteevents CSV export with a header row.
// Required columns are row_id, subject_id, hadm_id and text; category is optional.
type CSVSource struct {
	Path     string
	Limit    int
	Category *regexp.Regexp // nil keeps every row
}

// NewCSVSource creates a source over a CSV export
func NewCSVSource(path string, limit int) *CSVSource {
	return &CSVSource{Path: path, Limit: limit}
}

// Each implements Source
func (cs *CSVSource) Each(ctx context.Context, fn HandlerFunc) error {
	f, err := os.Open(cs.Path)
	if err != nil {
		return fmt.Errorf("failed to open notes CSV %s: %w", cs.Path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close notes CSV", "path", cs.Path, "error", err)
		}
	}()

	return cs.read(ctx, f, fn)
}

func (cs *CSVSource) read(ctx context.Context, r io.Reader, fn HandlerFunc) error {
	data, err := charset.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read notes CSV: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read notes CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"row_id", "subject_id", "hadm_id", "text"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("notes CSV is missing required column %q", required)
		}
	}

	emitted := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cs.Limit > 0 && emitted >= cs.Limit {
			return nil
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			source := cs.Path
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				source = fmt.Sprintf("%s:%d", cs.Path, parseErr.StartLine)
			}
			emitted++
			if err := fn(Note{Source: source}, &RecordError{Source: source, Reason: "malformed CSV row", Err: err}); err != nil {
				return err
			}
			continue
		}

		line, _ := reader.FieldPos(0)
		note, recErr := rowToNote(row, cols, fmt.Sprintf("%s:%d", cs.Path, line))
		if recErr == nil && cs.Category != nil && !cs.Category.MatchString(note.Category) {
			continue
		}

		emitted++
		if err := fn(note, recErr); err != nil {
			return err
		}
	}
}

func rowToNote(row []string, cols map[string]int, source string) (Note, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	note := Note{Source: source}
	note.Category, _ = field("category")

	ids := []struct {
		name string
		dst  *int64
	}{
		{"row_id", &note.RowID},
		{"subject_id", &note.SubjectID},
		{"hadm_id", &note.HadmID},
	}
	for _, id := range ids {
		value, _ := field(id.name)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return note, &RecordError{RowID: note.RowID, Source: source, Reason: "invalid " + id.name, Err: err}
		}
		*id.dst = parsed
	}

	text, ok := field("text")
	if !ok {
		return note, &RecordError{RowID: note.RowID, Source: source, Reason: "missing text column"}
	}
	note.Text = text

	return note, nil
}
