// Package lexicon holds the target drug classes searched for in clinical notes.
// A Lexicon is built once from ordered class definitions and is read-only afterwards,
// so it can be shared by any number of goroutines without locking.
package lexicon

import (
	"fmt"
	"regexp"
	"strings"
)

// ClassDef describes one drug class before compilation.
// Patterns maps each lowercase generic to its disjunctive search pattern
// ("generic|brand1|brand2"), Order lists the generics in file order.
type ClassDef struct {
	Name     string
	Patterns map[string]string
	Order    []string
}

// Range is a contiguous slice of the flat generic list owned by one class.
// End is inclusive; an empty class has End == Start-1.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of generics covered by the range
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Contains reports whether the flat index i belongs to the range
func (r Range) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

// Class is a compiled drug class
type Class struct {
	Name     string   `json:"name"`
	Generics []string `json:"generics"`
	Range    Range    `json:"range"`
}

// Lexicon is the immutable set of drug classes, flattened in class order
type Lexicon struct {
	classes  []Class
	flat     []string
	sources  []string
	patterns []*regexp.Regexp
}

// Build compiles the class definitions into a Lexicon.
// The flat list is the concatenation of every class's Order, in class order.
func Build(defs []ClassDef) (*Lexicon, error) {
	lex := &Lexicon{}
	seenClass := make(map[string]bool, len(defs))

	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, &ConfigError{Msg: "class name cannot be empty"}
		}
		if seenClass[name] {
			return nil, &ConfigError{Source: name, Msg: "duplicate class name"}
		}
		seenClass[name] = true

		if err := checkMembership(name, def); err != nil {
			return nil, err
		}

		start := len(lex.flat)
		generics := make([]string, 0, len(def.Order))

		for _, generic := range def.Order {
			source := def.Patterns[generic]
			re, err := regexp.Compile("(?i)" + source)
			if err != nil {
				return nil, &ConfigError{
					Source: name,
					Msg:    fmt.Sprintf("invalid pattern for generic %q", generic),
					Err:    err,
				}
			}

			generics = append(generics, generic)
			lex.flat = append(lex.flat, generic)
			lex.sources = append(lex.sources, source)
			lex.patterns = append(lex.patterns, re)
		}

		lex.classes = append(lex.classes, Class{
			Name:     name,
			Generics: generics,
			Range:    Range{Start: start, End: start + len(generics) - 1},
		})
	}

	return lex, nil
}

// checkMembership verifies that the pattern map and the order list name the same generics
func checkMembership(class string, def ClassDef) error {
	seen := make(map[string]bool, len(def.Order))

	for _, generic := range def.Order {
		if strings.TrimSpace(generic) == "" {
			return &ConfigError{Source: class, Msg: "empty generic name"}
		}
		if seen[generic] {
			return &ConfigError{Source: class, Msg: fmt.Sprintf("duplicate generic %q", generic)}
		}
		seen[generic] = true

		if _, ok := def.Patterns[generic]; !ok {
			return &ConfigError{Source: class, Msg: fmt.Sprintf("generic %q has no pattern", generic)}
		}
	}

	if len(def.Patterns) != len(seen) {
		for generic := range def.Patterns {
			if !seen[generic] {
				return &ConfigError{Source: class, Msg: fmt.Sprintf("pattern for %q is missing from the generic order", generic)}
			}
		}
	}

	return nil
}

// FlatList returns every generic in class order, then per-class order
func (l *Lexicon) FlatList() []string {
	out := make([]string, len(l.flat))
	copy(out, l.flat)
	return out
}

// Len returns the size of the flat list
func (l *Lexicon) Len() int {
	return len(l.flat)
}

// ClassRanges returns one inclusive range per class, partitioning [0, Len())
func (l *Lexicon) ClassRanges() []Range {
	ranges := make([]Range, len(l.classes))
	for i, c := range l.classes {
		ranges[i] = c.Range
	}
	return ranges
}

// ClassNames returns the class names in class order
func (l *Lexicon) ClassNames() []string {
	names := make([]string, len(l.classes))
	for i, c := range l.classes {
		names[i] = c.Name
	}
	return names
}

// Classes returns a copy of the compiled classes
func (l *Lexicon) Classes() []Class {
	out := make([]Class, len(l.classes))
	for i, c := range l.classes {
		out[i] = Class{
			Name:     c.Name,
			Generics: append([]string(nil), c.Generics...),
			Range:    c.Range,
		}
	}
	return out
}

// Pattern returns the compiled, case-insensitive pattern for flat index i
func (l *Lexicon) Pattern(i int) *regexp.Regexp {
	return l.patterns[i]
}

// Source returns the raw pattern text for flat index i
func (l *Lexicon) Source(i int) string {
	return l.sources[i]
}

// Index returns the flat index of a generic, or -1
func (l *Lexicon) Index(generic string) int {
	for i, g := range l.flat {
		if g == generic {
			return i
		}
	}
	return -1
}
