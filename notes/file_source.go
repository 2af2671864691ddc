package notes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/giygas/finddrugs/charset"
)

// FieldSeparator separates fields in MIMIC note-event files
const FieldSeparator = "_:-:_"

var (
	// DischargeSummaryCategory selects the note analyzed for a patient
	DischargeSummaryCategory = regexp.MustCompile(`(?i)discharge.*summary`)

	subjectFromFileName = regexp.MustCompile(`(?i)NOTE-EVENTS-([0-9]+)\.txt`)
)

// FileSource reads one patient per file from a directory of note-event files.
//
// The first line of each file names the fields, separated and terminated by
// FieldSeparator. Every record that follows uses the same layout, so a file is
// a flat sequence of separator-terminated fields. The first note whose CATEGORY
// matches Category is emitted for the file.
type FileSource struct {
	Dir      string
	Limit    int            // maximum number of files, 0 for all
	Category *regexp.Regexp // nil means DischargeSummaryCategory
}

// NewFileSource creates a source over a notes directory
func NewFileSource(dir string, limit int) *FileSource {
	return &FileSource{Dir: dir, Limit: limit}
}

// Each implements Source
func (fs *FileSource) Each(ctx context.Context, fn HandlerFunc) error {
	names, err := fs.fileNames()
	if err != nil {
		return err
	}

	category := fs.Category
	if category == nil {
		category = DischargeSummaryCategory
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		note, recErr := fs.readNote(name, category)
		if err := fn(note, recErr); err != nil {
			return err
		}
	}

	return nil
}

// fileNames lists regular files in Dir, sorted, honoring Limit
func (fs *FileSource) fileNames() ([]string, error) {
	entries, err := os.ReadDir(fs.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes directory %s: %w", fs.Dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if fs.Limit > 0 && len(names) > fs.Limit {
		names = names[:fs.Limit]
	}
	return names, nil
}

func (fs *FileSource) readNote(name string, category *regexp.Regexp) (Note, error) {
	note := Note{Source: name}

	raw, err := os.ReadFile(filepath.Join(fs.Dir, name))
	if err != nil {
		return note, &RecordError{Source: name, Reason: "failed to read note file", Err: err}
	}
	data, err := charset.Decode(raw)
	if err != nil {
		return note, &RecordError{Source: name, Reason: "failed to decode note file", Err: err}
	}

	records, err := ParseNoteEvents(string(data))
	if err != nil {
		return note, &RecordError{Source: name, Reason: "malformed note file", Err: err}
	}

	for _, rec := range records {
		if !category.MatchString(rec["CATEGORY"]) {
			continue
		}

		note, err = recordToNote(rec, name)
		if err != nil {
			return note, err
		}

		// The file name carries the subject when present
		if m := subjectFromFileName.FindStringSubmatch(name); m != nil {
			if sid, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				note.SubjectID = sid
			}
		}
		return note, nil
	}

	return note, &RecordError{Source: name, Reason: "no note matches category " + category.String()}
}

// ParseNoteEvents splits a note-event file into records keyed by upper-cased field name
func ParseNoteEvents(data string) ([]map[string]string, error) {
	headerLine, body, _ := strings.Cut(data, "\n")

	heads := strings.Split(strings.TrimRight(headerLine, "\r"), FieldSeparator)
	// The header is terminated by a separator, leaving an empty last entry
	heads = heads[:len(heads)-1]
	if len(heads) == 0 {
		return nil, fmt.Errorf("header line has no %q separated fields", FieldSeparator)
	}
	for i := range heads {
		heads[i] = strings.ToUpper(strings.TrimSpace(heads[i]))
	}

	tokens := strings.Split(body, FieldSeparator)
	n := len(heads)

	var records []map[string]string
	i := 0
	for ; i+n <= len(tokens); i += n {
		rec := make(map[string]string, n)
		for j, head := range heads {
			value := tokens[i+j]
			if head != "TEXT" {
				value = strings.TrimSpace(value)
			} else {
				value = strings.TrimPrefix(strings.TrimPrefix(value, "\r"), "\n")
			}
			rec[head] = value
		}
		records = append(records, rec)
	}

	// Whatever follows the last terminator must be blank
	if rest := strings.Join(tokens[i:], FieldSeparator); strings.TrimSpace(rest) != "" {
		return records, fmt.Errorf("truncated record after %d complete records", len(records))
	}

	return records, nil
}

// recordToNote converts a parsed record, with ids optional except when malformed
func recordToNote(rec map[string]string, source string) (Note, error) {
	note := Note{
		Category: rec["CATEGORY"],
		Text:     rec["TEXT"],
		Source:   source,
	}

	ids := []struct {
		field string
		dst   *int64
	}{
		{"ROW_ID", &note.RowID},
		{"SUBJECT_ID", &note.SubjectID},
		{"HADM_ID", &note.HadmID},
	}
	for _, id := range ids {
		value := rec[id.field]
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return note, &RecordError{RowID: note.RowID, Source: source, Reason: "invalid " + strings.ToLower(id.field), Err: err}
		}
		*id.dst = parsed
	}

	if _, ok := rec["TEXT"]; !ok {
		return note, &RecordError{RowID: note.RowID, Source: source, Reason: "missing TEXT field"}
	}

	return note, nil
}
