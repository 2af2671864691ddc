package lexicon

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/giygas/finddrugs/charset"
	"github.com/giygas/finddrugs/logging"
)

// ClassFile points a class name at a "generic|brand1|brand2" drug list.
// An Optional class whose file does not exist is left out of the lexicon.
type ClassFile struct {
	Name     string
	Path     string
	Optional bool
}

// ParseClass reads a drug list. Every non-blank line must be of the form
// "generic|brand1|brand2"; tokens are lowercased and file order becomes generic order.
func ParseClass(name string, r io.Reader) (ClassDef, error) {
	raw, err := charset.ReadAll(r)
	if err != nil {
		return ClassDef{}, &ConfigError{Source: name, Msg: "failed to read drug list", Err: err}
	}

	def := ClassDef{
		Name:     name,
		Patterns: make(map[string]string),
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))

		// Skip blank lines silently
		if line == "" {
			continue
		}

		if !strings.Contains(line, "|") {
			return ClassDef{}, &ConfigError{Source: name, Line: lineNo, Msg: "missing '|' delimiter"}
		}

		tokens := strings.Split(line, "|")
		generic := strings.TrimSpace(tokens[0])
		if generic == "" {
			return ClassDef{}, &ConfigError{Source: name, Line: lineNo, Msg: "empty generic name"}
		}
		if _, dup := def.Patterns[generic]; dup {
			return ClassDef{}, &ConfigError{Source: name, Line: lineNo, Msg: fmt.Sprintf("duplicate generic %q", generic)}
		}

		// Empty alternatives ("zoloft||") would match every line
		alternatives := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if tok = strings.TrimSpace(tok); tok != "" {
				alternatives = append(alternatives, tok)
			}
		}

		def.Patterns[generic] = strings.Join(alternatives, "|")
		def.Order = append(def.Order, generic)
	}

	if err := scanner.Err(); err != nil {
		return ClassDef{}, &ConfigError{Source: name, Msg: "failed to scan drug list", Err: err}
	}

	return def, nil
}

// LoadClassFile opens and parses one drug list file
func LoadClassFile(cf ClassFile) (ClassDef, error) {
	f, err := os.Open(cf.Path)
	if err != nil {
		return ClassDef{}, fmt.Errorf("failed to open drug list %s: %w", cf.Path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close drug list", "path", cf.Path, "error", err)
		}
	}()

	def, err := ParseClass(cf.Name, f)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = cf.Path
		}
		return ClassDef{}, err
	}
	return def, nil
}

// Load reads every class file in order and builds the lexicon
func Load(files []ClassFile) (*Lexicon, error) {
	if len(files) == 0 {
		return nil, &ConfigError{Msg: "no drug lists configured"}
	}

	defs := make([]ClassDef, 0, len(files))
	for _, cf := range files {
		def, err := LoadClassFile(cf)
		if err != nil {
			if cf.Optional && errors.Is(err, fs.ErrNotExist) {
				logging.Warn("Optional drug list not found, skipping class", "class", cf.Name, "path", cf.Path)
				continue
			}
			return nil, err
		}

		logging.Info("Using drugs from list", "class", cf.Name, "path", cf.Path, "generics", len(def.Order))
		defs = append(defs, def)
	}

	return Build(defs)
}

// FileLoader loads a lexicon from a fixed set of drug list files
type FileLoader struct {
	Files []ClassFile
}

// NewFileLoader creates a loader over the given class files
func NewFileLoader(files []ClassFile) *FileLoader {
	return &FileLoader{Files: files}
}

// Load implements interfaces.LexiconLoader
func (fl *FileLoader) Load(ctx context.Context) (*Lexicon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(fl.Files)
}

// ParseClassFiles parses a class file list of the form
// "SSRI=lists/SSRI_list.txt,MISC=lists/MISC_list.txt?".
// A trailing '?' marks the class as optional.
func ParseClassFiles(list string) ([]ClassFile, error) {
	var files []ClassFile
	seen := make(map[string]bool)

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, path, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid drug list entry %q, expected CLASS=path", entry)}
		}

		optional := strings.HasSuffix(path, "?")
		path = strings.TrimSuffix(path, "?")

		if seen[name] {
			return nil, &ConfigError{Source: name, Msg: "duplicate class name"}
		}
		seen[name] = true

		files = append(files, ClassFile{Name: name, Path: path, Optional: optional})
	}

	if len(files) == 0 {
		return nil, &ConfigError{Msg: "no drug lists configured"}
	}

	return files, nil
}
