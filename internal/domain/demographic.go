package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Target is a value of the closed intersectional demographic lattice.
type Target string

const (
	TargetMen           Target = "men"
	TargetWomen         Target = "women"
	TargetWhite         Target = "white"
	TargetPeopleOfColor Target = "people_of_color"
	TargetWhiteMen      Target = "white_men"
	TargetWhiteWomen    Target = "white_women"
	TargetMenOfColor    Target = "men_of_color"
	TargetWomenOfColor  Target = "women_of_color"
	TargetUnspecified   Target = "unspecified"
)

// AllTargets lists every lattice value in reporting order.
var AllTargets = []Target{
	TargetWomen,
	TargetMen,
	TargetWhite,
	TargetPeopleOfColor,
	TargetWhiteWomen,
	TargetWhiteMen,
	TargetWomenOfColor,
	TargetMenOfColor,
	TargetUnspecified,
}

// ParseTarget resolves a lattice name. Spaces and hyphens are treated as
// underscores so "women of color" and "women_of_color" are equal.
func ParseTarget(name string) (Target, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if norm == "poc" {
		return TargetPeopleOfColor, nil
	}
	for _, t := range AllTargets {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown demographic %q", name)
}

// IsComposite reports whether t combines a gender and a race axis.
func (t Target) IsComposite() bool {
	switch t {
	case TargetWhiteMen, TargetWhiteWomen, TargetMenOfColor, TargetWomenOfColor:
		return true
	}
	return false
}

// Gender is the gender axis of the lattice.
type Gender int

const (
	GenderNone Gender = iota
	GenderMen
	GenderWomen
)

// Race is the race-ethnicity axis of the lattice.
type Race int

const (
	RaceNone Race = iota
	RaceWhite
	RacePeopleOfColor
)

// Subgroup qualifies people of color.
type Subgroup string

const (
	SubgroupBlack      Subgroup = "black"
	SubgroupHispanic   Subgroup = "hispanic"
	SubgroupAsian      Subgroup = "asian"
	SubgroupIndigenous Subgroup = "indigenous"
)

// ParseSubgroup resolves a subgroup name; the empty string is allowed.
func ParseSubgroup(name string) (Subgroup, error) {
	switch s := Subgroup(strings.ToLower(strings.TrimSpace(name))); s {
	case "", SubgroupBlack, SubgroupHispanic, SubgroupAsian, SubgroupIndigenous:
		return s, nil
	}
	return "", fmt.Errorf("unknown subgroup %q", name)
}

var combination = [3][3]Target{
	GenderNone:  {RaceNone: TargetUnspecified, RaceWhite: TargetWhite, RacePeopleOfColor: TargetPeopleOfColor},
	GenderMen:   {RaceNone: TargetMen, RaceWhite: TargetWhiteMen, RacePeopleOfColor: TargetMenOfColor},
	GenderWomen: {RaceNone: TargetWomen, RaceWhite: TargetWhiteWomen, RacePeopleOfColor: TargetWomenOfColor},
}

// Compose maps a (gender, race) pair onto the lattice.
func Compose(g Gender, r Race) Target {
	return combination[g][r]
}

// Axes decomposes a target into its gender and race components.
func (t Target) Axes() (Gender, Race) {
	for g := range combination {
		for r := range combination[g] {
			if combination[g][r] == t {
				return Gender(g), Race(r)
			}
		}
	}
	return GenderNone, RaceNone
}

// Mention is one explicit demographic reference inside a text unit.
type Mention struct {
	Target    Target
	Subgroups []Subgroup
	Start     int
	End       int
	Span      int
	Explicit  bool
}

// TargetsOf returns the distinct targets of mentions in lattice order.
func TargetsOf(mentions []Mention) []Target {
	seen := make(map[Target]bool, len(mentions))
	for _, m := range mentions {
		seen[m.Target] = true
	}
	targets := make([]Target, 0, len(seen))
	for _, t := range AllTargets {
		if seen[t] {
			targets = append(targets, t)
		}
	}
	return targets
}

// MergeSubgroups returns the sorted union of subgroups.
func MergeSubgroups(groups ...[]Subgroup) []Subgroup {
	seen := map[Subgroup]bool{}
	var out []Subgroup
	for _, g := range groups {
		for _, s := range g {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
