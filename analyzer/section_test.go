package analyzer

import "testing"

var allSections = []Section{SectionNone, SectionHistory, SectionAdmit, SectionDischarge}

func TestIsHeader(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"PAST MEDICAL HISTORY:", true},
		{"Discharge Medications:", true},
		{"1. Admission medications:", true},
		{"a) Home meds:", true},
		{"Medications on admission were", false}, // linking word needs surrounding spaces
		{"Medications on admission were reviewed", true},
		{"Her home medications are listed below", true},
		{"Meds INCLUDED aspirin", true},
		{"Medications including sertraline", true},
		{"Patient started on sertraline 50mg", false},
		{"History of depression and hypertension", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := IsHeader(tt.line); got != tt.want {
				t.Errorf("IsHeader(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestTransitionRules(t *testing.T) {
	tests := []struct {
		name    string
		current Section
		line    string
		want    Section
	}{
		{"history", SectionNone, "PAST MEDICAL HISTORY:", SectionHistory},
		{"abbreviated history", SectionAdmit, "Past med hist:", SectionHistory},
		{"history wins over discharge meds", SectionNone, "Medical history and discharge medications:", SectionHistory},
		{"discharge meds", SectionNone, "DISCHARGE MEDICATIONS:", SectionDischarge},
		{"abbreviated discharge meds", SectionHistory, "Disch meds:", SectionDischarge},
		{"discharge wins over admission", SectionNone, "Medications on admission and discharge were adjusted", SectionDischarge},
		{"admission meds", SectionNone, "ADMISSION MEDICATIONS:", SectionAdmit},
		{"home meds", SectionDischarge, "Home meds:", SectionAdmit},
		{"pre-op meds", SectionNone, "Pre-op medications:", SectionAdmit},
		{"outpatient meds", SectionNone, "Outpatient medications:", SectionAdmit},
		{"bare meds header", SectionNone, "Meds:", SectionAdmit},
		{"context without meds keeps admit open", SectionAdmit, "Current:", SectionAdmit},
		{"context without meds outside admit closes", SectionNone, "Current:", SectionNone},
		{"context without meds closes discharge", SectionDischarge, "Previous:", SectionNone},
		{"untracked header closes", SectionAdmit, "ALLERGIES:", SectionNone},
		{"untracked header from history", SectionHistory, "Physical exam:", SectionNone},
		{"lowercase header", SectionNone, "discharge medications:", SectionDischarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, header := Transition(tt.current, tt.line)
			if !header {
				t.Fatalf("Transition(%v, %q) did not recognize a header", tt.current, tt.line)
			}
			if got != tt.want {
				t.Errorf("Transition(%v, %q) = %v, want %v", tt.current, tt.line, got, tt.want)
			}
		})
	}
}

func TestTransitionIsSticky(t *testing.T) {
	lines := []string{
		"sertraline 50 mg daily",
		"History of depression",
		"Medications changed on transfer",
		"",
		"  - aspirin 81",
	}

	for _, current := range allSections {
		for _, line := range lines {
			got, header := Transition(current, line)
			if header {
				t.Errorf("Transition(%v, %q) unexpectedly saw a header", current, line)
			}
			if got != current {
				t.Errorf("Transition(%v, %q) = %v, non-header lines must not change the section", current, line, got)
			}
		}
	}
}

func TestTransitionIsDeterministic(t *testing.T) {
	lines := []string{"DISCHARGE MEDICATIONS:", "Current:", "ALLERGIES:", "lisinopril 10"}

	for _, current := range allSections {
		for _, line := range lines {
			first, firstHeader := Transition(current, line)
			for i := 0; i < 5; i++ {
				again, againHeader := Transition(current, line)
				if again != first || againHeader != firstHeader {
					t.Fatalf("Transition(%v, %q) not deterministic", current, line)
				}
			}
		}
	}
}

func TestSectionTracker(t *testing.T) {
	var tracker SectionTracker
	if tracker.Current() != SectionNone {
		t.Fatalf("new tracker should start in SectionNone")
	}

	steps := []struct {
		line string
		want Section
	}{
		{"Admission medications:", SectionAdmit},
		{"sertraline", SectionAdmit},
		{"Current:", SectionAdmit},
		{"Discharge medications:", SectionDischarge},
		{"bupropion", SectionDischarge},
		{"Followup instructions:", SectionNone},
		{"call your doctor", SectionNone},
	}

	for _, step := range steps {
		got, _ := tracker.Update(step.line)
		if got != step.want || tracker.Current() != step.want {
			t.Errorf("Update(%q) = %v, want %v", step.line, got, step.want)
		}
	}
}

func TestSectionString(t *testing.T) {
	want := map[Section]string{
		SectionNone:      "none",
		SectionHistory:   "history",
		SectionAdmit:     "admit",
		SectionDischarge: "discharge",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("Section(%d).String() = %q, want %q", s, s.String(), name)
		}
	}
}
