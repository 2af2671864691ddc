// Package analyzer extracts drug-exposure findings from a single discharge note.
//
// A note is read line by line. Header-looking lines move a small state machine
// between the history, admission-medication and discharge-medication sections;
// every line is then checked against the open section. The order of the header
// rules and their trigger words are the heuristic itself and must not change.
package analyzer

import "regexp"

// Section is the note region currently open
type Section int

const (
	SectionNone Section = iota
	SectionHistory
	SectionAdmit
	SectionDischarge
)

func (s Section) String() string {
	switch s {
	case SectionHistory:
		return "history"
	case SectionAdmit:
		return "admit"
	case SectionDischarge:
		return "discharge"
	default:
		return "none"
	}
}

var (
	// Optional enumerator ("1." / "a)"), free text, then a colon or a linking word
	headerPattern = regexp.MustCompile(`(?i)^((\d|[A-Z])(\.|\)))?\s*([a-zA-Z',\.\-\*\d\[\]\(\) ]+)(:| WERE | IS | ARE |INCLUDED|INCLUDING)`)

	historyPattern      = regexp.MustCompile(`(?i)med(ical)?\s+hist(ory)?`)
	medicationPattern   = regexp.MustCompile(`(?i)medication|meds`)
	dischargePattern    = regexp.MustCompile(`(?i)disch(arge)?`)
	admitContextPattern = regexp.MustCompile(`(?i)admission|admitting|home|nh|nmeds|pre(\-|\s)?(hosp|op)|current|previous|outpatient|outpt|outside|^[^a-zA-Z]*med(ication)?(s)?`)

	depressionPattern     = regexp.MustCompile(`(?i)depression`)
	depressionMedsPattern = regexp.MustCompile(`(?i)depression\s+med(ication)?(s)?`)
	transitionPattern     = regexp.MustCompile(`(?i)admission|discharge|transfer`)
)

// IsHeader reports whether line looks like a section header
func IsHeader(line string) bool {
	return headerPattern.MatchString(line)
}

// Transition returns the section open after line, given the section open before it.
// header is false, and next equals current, when line is not a header.
func Transition(current Section, line string) (next Section, header bool) {
	if !IsHeader(line) {
		return current, false
	}

	switch {
	case historyPattern.MatchString(line):
		return SectionHistory, true
	case medicationPattern.MatchString(line) && dischargePattern.MatchString(line):
		return SectionDischarge, true
	case admitContextPattern.MatchString(line) &&
		(current == SectionAdmit || medicationPattern.MatchString(line)):
		return SectionAdmit, true
	default:
		// Any other header closes the open section
		return SectionNone, true
	}
}

// SectionTracker follows the open section across the lines of one note
type SectionTracker struct {
	current Section
}

// Current returns the open section
func (t *SectionTracker) Current() Section {
	return t.current
}

// Update feeds the next line and returns the section now open
func (t *SectionTracker) Update(line string) (Section, bool) {
	next, header := Transition(t.current, line)
	t.current = next
	return next, header
}
