package analyzer

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/notes"
)

func testLexicon(t testing.TB) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Build([]lexicon.ClassDef{
		{
			Name: "SSRI",
			Patterns: map[string]string{
				"sertraline": "sertraline|zoloft",
				"fluoxetine": "fluoxetine|prozac",
				"citalopram": "citalopram|celexa",
			},
			Order: []string{"sertraline", "fluoxetine", "citalopram"},
		},
		{
			Name: "MISC",
			Patterns: map[string]string{
				"bupropion":   "bupropion|wellbutrin",
				"mirtazapine": "mirtazapine|remeron",
			},
			Order: []string{"bupropion", "mirtazapine"},
		},
	})
	if err != nil {
		t.Fatalf("failed to build lexicon: %v", err)
	}
	return lex
}

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

func TestDrugMatcher(t *testing.T) {
	lex := testLexicon(t)
	m := NewDrugMatcher(lex)

	tests := []struct {
		line string
		want []int
	}{
		{"Patient started on sertraline 50mg", []int{0}},
		{"ZOLOFT 100 mg, Wellbutrin SR 150 mg", []int{0, 3}},
		{"fluoxetine and remeron qhs", []int{1, 4}},
		{"aspirin 81 mg", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := m.Match(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %v, want %v", tt.line, got, tt.want)
			}
			// Idempotent
			if again := m.Match(tt.line); !reflect.DeepEqual(again, got) {
				t.Errorf("Match(%q) changed between calls", tt.line)
			}
		})
	}

	drugs := make([]bool, lex.Len())
	drugs[2] = true
	m.MatchInto("sertraline", drugs)
	m.MatchInto("aspirin", drugs)
	if !reflect.DeepEqual(drugs, []bool{true, false, true, false, false}) {
		t.Errorf("MatchInto() = %v, must OR into the vector", drugs)
	}
}

func TestAnalyzeScenarios(t *testing.T) {
	a := New(testLexicon(t))

	t.Run("discharge ssri only", func(t *testing.T) {
		f := a.Analyze(lines("DISCHARGE MEDICATIONS:", "Patient started on sertraline 50mg"))
		if !f.DischargeFound || !f.DrugsDischarge[0] {
			t.Fatalf("expected discharge sertraline, got %+v", f)
		}
		if f.AdmitFound || f.AnyAdmit() {
			t.Errorf("no admission findings expected, got %+v", f)
		}
		if g := Classify(f); g != Group0 {
			t.Errorf("Classify() = %v, want 0", g)
		}
	})

	t.Run("history of depression", func(t *testing.T) {
		f := a.Analyze(lines("PAST MEDICAL HISTORY:", "History of depression and hypertension"))
		if !f.HistFound || !f.DepressionFound {
			t.Errorf("expected history with depression, got %+v", f)
		}
	})

	t.Run("admission without target drugs", func(t *testing.T) {
		f := a.Analyze("ADMISSION MEDICATIONS: none")
		if !f.AdmitFound || f.AnyAdmit() || f.GeneralDepressionMedsFound {
			t.Fatalf("unexpected findings %+v", f)
		}
		if g := Classify(f); g != Group1 {
			t.Errorf("Classify() = %v, want 1", g)
		}
	})

	t.Run("untracked header only", func(t *testing.T) {
		f := a.Analyze(lines("ALLERGIES:", "penicillin"))
		if f.HistFound || f.AdmitFound || f.DischargeFound || f.DepressionFound || f.GeneralDepressionMedsFound {
			t.Fatalf("no flags expected, got %+v", f)
		}
		if g := Classify(f); g != GroupUncertain {
			t.Errorf("Classify() = %v, want U", g)
		}
	})
}

func TestAnalyzeAmbiguousLine(t *testing.T) {
	var got []Diagnostic
	a := New(testLexicon(t), WithDiagnostics(func(d Diagnostic) {
		got = append(got, d)
	}))

	text := lines("Brief hospital course", "Medications changed on transfer to the floor, sertraline held")
	f := a.Analyze(text)

	if len(got) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(got))
	}
	if got[0].LineNumber != 2 || !strings.Contains(got[0].Line, "transfer") {
		t.Errorf("unexpected diagnostic %+v", got[0])
	}

	// Diagnostics never change findings
	empty := NewFindings(a.Lexicon().Len())
	if !reflect.DeepEqual(f, empty) {
		t.Errorf("findings changed by ambiguous line: %+v", f)
	}
	if !reflect.DeepEqual(New(testLexicon(t)).Analyze(text), empty) {
		t.Error("findings must not depend on the diagnostics hook")
	}
}

func TestAnalyzeHeaderLineIsSearched(t *testing.T) {
	a := New(testLexicon(t))

	f := a.Analyze("Discharge medications: Zoloft 50 mg")
	if !f.DrugsDischarge[0] {
		t.Errorf("drug on the header line should be matched, got %+v", f)
	}

	f = a.Analyze("Home meds: depression medications")
	if !f.GeneralDepressionMedsFound {
		t.Error("general depression meds on the header line should be detected")
	}
}

func TestAnalyzeSectionsAreIndependent(t *testing.T) {
	a := New(testLexicon(t))

	f := a.Analyze(lines(
		"PAST MEDICAL HISTORY:",
		"1. Depression",
		"2. sertraline intolerance", // history lines never match drugs
		"MEDICATIONS ON ADMISSION:",
		"Prozac 20 mg daily",
		"depression meds at home",
		"ALLERGIES:",
		"Wellbutrin (rash)", // closed section
		"DISCHARGE MEDICATIONS:",
		"Celexa 20 mg",
		"Remeron 15 mg qhs",
	))

	want := &Findings{
		HistFound:                  true,
		DepressionFound:            true,
		AdmitFound:                 true,
		DischargeFound:             true,
		GeneralDepressionMedsFound: true,
		DrugsAdmit:                 []bool{false, true, false, false, false},
		DrugsDischarge:             []bool{false, false, true, false, true},
	}
	if !reflect.DeepEqual(f, want) {
		t.Errorf("Analyze() = %+v, want %+v", f, want)
	}
	if g := Classify(f); g != Group3 {
		t.Errorf("Classify() = %v, want 3", g)
	}
	if m := a.Member(f); !reflect.DeepEqual(m, []bool{true, false}) {
		t.Errorf("Member() = %v, want [true false]", m)
	}
}

func TestAnalyzeFlagsAreMonotonic(t *testing.T) {
	a := New(testLexicon(t))

	text := lines(
		"PAST MEDICAL HISTORY:",
		"asthma",
		"ADMISSION MEDICATIONS:",
		"lisinopril",
		"DISCHARGE MEDICATIONS:",
		"lisinopril",
		"ALLERGIES:",
		"Followup instructions:",
	)

	all := strings.Split(text, "\n")
	var prev *Findings
	for n := 1; n <= len(all); n++ {
		f := a.Analyze(strings.Join(all[:n], "\n"))
		if prev != nil {
			if (prev.HistFound && !f.HistFound) || (prev.AdmitFound && !f.AdmitFound) || (prev.DischargeFound && !f.DischargeFound) {
				t.Fatalf("flag reset after line %d: %+v -> %+v", n, prev, f)
			}
		}
		prev = f
	}
	if !prev.HistFound || !prev.AdmitFound || !prev.DischargeFound {
		t.Errorf("flags lost after closing headers: %+v", prev)
	}
}

func TestMemberUsesAdmissionOnly(t *testing.T) {
	a := New(testLexicon(t))

	f := a.Analyze(lines("DISCHARGE MEDICATIONS:", "sertraline", "bupropion"))
	if m := a.Member(f); !reflect.DeepEqual(m, []bool{false, false}) {
		t.Errorf("Member() = %v, discharge drugs must not count", m)
	}

	// member[c] is true exactly when some admit index inside the class range is true
	ranges := a.Lexicon().ClassRanges()
	for mask := 0; mask < 1<<a.Lexicon().Len(); mask++ {
		f := NewFindings(a.Lexicon().Len())
		for i := range f.DrugsAdmit {
			f.DrugsAdmit[i] = mask&(1<<i) != 0
		}
		member := a.Member(f)
		for c, r := range ranges {
			want := false
			for i := r.Start; i <= r.End; i++ {
				want = want || f.DrugsAdmit[i]
			}
			if member[c] != want {
				t.Fatalf("mask %b: member[%d] = %v, want %v", mask, c, member[c], want)
			}
		}
	}
}

func TestAnalyzeNote(t *testing.T) {
	var diags []Diagnostic
	a := New(testLexicon(t), WithDiagnostics(func(d Diagnostic) { diags = append(diags, d) }))

	res, err := a.AnalyzeNote(notes.Note{
		RowID:     7,
		SubjectID: 70,
		HadmID:    700,
		Text:      lines("Medications on transfer reviewed", "Home medications:", "Zoloft 50"),
	})
	if err != nil {
		t.Fatalf("AnalyzeNote() error = %v", err)
	}

	if res.RowID != 7 || res.SubjectID != 70 || res.HadmID != 700 {
		t.Errorf("ids not carried over: %+v", res)
	}
	if res.Group != Group3 || !reflect.DeepEqual(res.Member, []bool{true, false}) {
		t.Errorf("unexpected result %+v", res)
	}
	if len(diags) != 1 || diags[0].RowID != 7 || diags[0].LineNumber != 1 {
		t.Errorf("unexpected diagnostics %+v", diags)
	}

	_, err = a.AnalyzeNote(notes.Note{RowID: 8})
	var recErr *notes.RecordError
	if !errors.As(err, &recErr) || recErr.RowID != 8 {
		t.Errorf("AnalyzeNote() error = %v, want *notes.RecordError", err)
	}
}

func TestAnalyzeKeepsCarriageReturns(t *testing.T) {
	a := New(testLexicon(t))
	f := a.Analyze("DISCHARGE MEDICATIONS:\r\nsertraline 50 mg\r\n")
	if !f.DischargeFound || !f.DrugsDischarge[0] {
		t.Errorf("CRLF notes should analyze like LF notes, got %+v", f)
	}
}
