package analyzer

import "github.com/giygas/finddrugs/lexicon"

// DrugMatcher finds lexicon generics mentioned in a line
type DrugMatcher struct {
	lex *lexicon.Lexicon
}

// NewDrugMatcher creates a matcher over lex
func NewDrugMatcher(lex *lexicon.Lexicon) *DrugMatcher {
	return &DrugMatcher{lex: lex}
}

// Match returns the flat indices, in ascending order, of every generic whose
// pattern occurs anywhere in line (case-insensitive)
func (m *DrugMatcher) Match(line string) []int {
	var found []int
	for i := 0; i < m.lex.Len(); i++ {
		if m.lex.Pattern(i).MatchString(line) {
			found = append(found, i)
		}
	}
	return found
}

// MatchInto sets drugs[i] for every generic matched in line. Existing true
// entries are never cleared. drugs must have the lexicon's length.
func (m *DrugMatcher) MatchInto(line string, drugs []bool) {
	for i := 0; i < m.lex.Len(); i++ {
		if !drugs[i] && m.lex.Pattern(i).MatchString(line) {
			drugs[i] = true
		}
	}
}
