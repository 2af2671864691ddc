package analyzer

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Group is the admission-versus-discharge exposure category of a patient
type Group int

const (
	// Group0: target drugs on discharge, none (or no admission list) on admission
	Group0 Group = iota
	// Group1: admission list without target drugs, no discharge list
	Group1
	// Group2: admission and discharge lists, neither with target drugs
	Group2
	// Group3: at least one target drug on admission
	Group3
	// GroupUncertain: no rule applied
	GroupUncertain
)

// String returns "0".."3", or "U" for GroupUncertain
func (g Group) String() string {
	switch g {
	case Group0, Group1, Group2, Group3:
		return strconv.Itoa(int(g))
	default:
		return "U"
	}
}

// MarshalJSON encodes the group as its String form
func (g Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON decodes "0".."3" or "U"
func (g *Group) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGroup(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGroup is the inverse of Group.String
func ParseGroup(s string) (Group, error) {
	switch s {
	case "0":
		return Group0, nil
	case "1":
		return Group1, nil
	case "2":
		return Group2, nil
	case "3":
		return Group3, nil
	case "U", "u":
		return GroupUncertain, nil
	}
	return GroupUncertain, fmt.Errorf("unknown group %q", s)
}

// Groups lists every group in output order
func Groups() []Group {
	return []Group{Group0, Group1, Group2, Group3, GroupUncertain}
}

// Classify maps findings to a group; the first matching rule wins
func Classify(f *Findings) Group {
	anyAdmit := f.AnyAdmit()
	anyDischarge := f.AnyDischarge()

	switch {
	case f.DischargeFound && anyDischarge && (!f.AdmitFound || !anyAdmit):
		return Group0
	case f.AdmitFound && !anyAdmit && !f.DischargeFound && !f.GeneralDepressionMedsFound:
		return Group1
	case f.AdmitFound && !anyAdmit && f.DischargeFound && !anyDischarge && !f.GeneralDepressionMedsFound:
		return Group2
	case anyAdmit:
		return Group3
	default:
		return GroupUncertain
	}
}
