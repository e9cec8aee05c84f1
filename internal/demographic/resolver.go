// Package demographic resolves explicit demographic references in text
// units onto the intersectional target lattice.
package demographic

import (
	"fmt"
	"sort"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/lexicon"
)

// Scope is the text range inside which single-axis terms combine.
type Scope string

const (
	ScopeSpan Scope = "span"
	ScopeUnit Scope = "unit"
)

// GenderTerms lists the words naming one gender.
type GenderTerms struct {
	Gender domain.Gender
	Terms  []string
}

// RaceTerms lists the words naming one race-ethnicity group. Subgroup is
// set for the people-of-color sub-groups.
type RaceTerms struct {
	Race     domain.Race
	Subgroup domain.Subgroup
	Terms    []string
}

// Phrase lists explicit intersectional phrases for one composite target.
type Phrase struct {
	Target   domain.Target
	Subgroup domain.Subgroup
	Terms    []string
}

// Config is the keyword surface of the resolver.
type Config struct {
	Genders      []GenderTerms
	Races        []RaceTerms
	Phrases      []Phrase
	CombineScope Scope
}

type genderEntry struct {
	gender domain.Gender
}

type raceEntry struct {
	race     domain.Race
	subgroup domain.Subgroup
}

type phraseEntry struct {
	target   domain.Target
	subgroup domain.Subgroup
}

// Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	scope Scope

	phrases    *lexicon.Matcher
	phraseInfo map[string]phraseEntry
	genders    *lexicon.Matcher
	genderInfo map[string]genderEntry
	races      *lexicon.Matcher
	raceInfo   map[string]raceEntry
}

// New compiles the keyword tables. A term listed under two entries is a
// configuration error.
func New(cfg Config) (*Resolver, error) {
	scope := cfg.CombineScope
	if scope == "" {
		scope = ScopeSpan
	}
	if scope != ScopeSpan && scope != ScopeUnit {
		return nil, &domain.ConfigurationError{Field: "demographics.combineScope", Reason: fmt.Sprintf("unknown scope %q", scope)}
	}

	r := &Resolver{
		scope:      scope,
		phraseInfo: map[string]phraseEntry{},
		genderInfo: map[string]genderEntry{},
		raceInfo:   map[string]raceEntry{},
	}
	seen := map[string]string{}
	claim := func(section, term string) (string, error) {
		key := lexicon.Normalize(term)
		if key == "" {
			return "", nil
		}
		if prev, ok := seen[key]; ok {
			return "", &domain.ConfigurationError{
				Field:  "demographics." + section,
				Reason: fmt.Sprintf("term %q already listed under %s", term, prev),
			}
		}
		seen[key] = section
		return key, nil
	}

	var phraseTerms, genderTerms, raceTerms []string
	for _, p := range cfg.Phrases {
		if !p.Target.IsComposite() {
			return nil, &domain.ConfigurationError{Field: "demographics.intersectional", Reason: fmt.Sprintf("%s is not a composite target", p.Target)}
		}
		for _, t := range p.Terms {
			key, err := claim("intersectional."+string(p.Target), t)
			if err != nil {
				return nil, err
			}
			if key != "" {
				r.phraseInfo[key] = phraseEntry{target: p.Target, subgroup: p.Subgroup}
				phraseTerms = append(phraseTerms, key)
			}
		}
	}
	for _, g := range cfg.Genders {
		for _, t := range g.Terms {
			key, err := claim("gender", t)
			if err != nil {
				return nil, err
			}
			if key != "" {
				r.genderInfo[key] = genderEntry{gender: g.Gender}
				genderTerms = append(genderTerms, key)
			}
		}
	}
	for _, rc := range cfg.Races {
		for _, t := range rc.Terms {
			key, err := claim("race", t)
			if err != nil {
				return nil, err
			}
			if key != "" {
				r.raceInfo[key] = raceEntry{race: rc.Race, subgroup: rc.Subgroup}
				raceTerms = append(raceTerms, key)
			}
		}
	}

	r.phrases = lexicon.Compile(phraseTerms)
	r.genders = lexicon.Compile(genderTerms)
	r.races = lexicon.Compile(raceTerms)
	return r, nil
}

type axisHit struct {
	gender   domain.Gender
	race     domain.Race
	subgroup domain.Subgroup
	start    int
	end      int
	span     int
}

// Resolve returns the explicit mentions of a unit. A unit without any
// gender or race term yields a single unspecified mention covering it.
func (r *Resolver) Resolve(unit domain.TextUnit) []domain.Mention {
	var mentions []domain.Mention
	groups := map[int][]axisHit{}
	var order []int

	for _, sp := range unit.Spans {
		text := unit.Text[sp.Start-unit.Start : sp.End-unit.Start]

		phraseMatches := r.phrases.FindAll(text)
		for _, m := range phraseMatches {
			info := r.phraseInfo[m.Term]
			mentions = append(mentions, domain.Mention{
				Target:    info.target,
				Subgroups: domain.MergeSubgroups([]domain.Subgroup{info.subgroup}),
				Start:     sp.Start + m.Start,
				End:       sp.Start + m.End,
				Span:      sp.Seq,
				Explicit:  true,
			})
		}

		masked := lexicon.Mask(text, phraseMatches)
		key := sp.Seq
		if r.scope == ScopeUnit {
			key = -1
		}
		before := len(groups[key])
		for _, m := range r.genders.FindAll(masked) {
			groups[key] = append(groups[key], axisHit{
				gender: r.genderInfo[m.Term].gender,
				start:  sp.Start + m.Start, end: sp.Start + m.End, span: sp.Seq,
			})
		}
		for _, m := range r.races.FindAll(masked) {
			info := r.raceInfo[m.Term]
			groups[key] = append(groups[key], axisHit{
				race: info.race, subgroup: info.subgroup,
				start: sp.Start + m.Start, end: sp.Start + m.End, span: sp.Seq,
			})
		}
		if before == 0 && len(groups[key]) > 0 {
			order = append(order, key)
		}
	}

	for _, key := range order {
		mentions = append(mentions, combine(groups[key])...)
	}

	if len(mentions) == 0 {
		first := 0
		if len(unit.Spans) > 0 {
			first = unit.Spans[0].Seq
		}
		return []domain.Mention{{
			Target: domain.TargetUnspecified,
			Start:  unit.Start,
			End:    unit.End,
			Span:   first,
		}}
	}

	sort.SliceStable(mentions, func(i, j int) bool { return mentions[i].Start < mentions[j].Start })
	return mentions
}

// combine folds single-axis hits of one scope into mentions: every gender
// pairs with every race when both axes are present.
func combine(hits []axisHit) []domain.Mention {
	var genders, races []axisHit
	for _, h := range hits {
		if h.gender != domain.GenderNone {
			genders = append(genders, h)
		} else {
			races = append(races, h)
		}
	}

	type key struct {
		target     domain.Target
		start, end int
	}
	seen := map[key]bool{}
	var out []domain.Mention
	emit := func(m domain.Mention) {
		k := key{target: m.Target, start: m.Start, end: m.End}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, m)
	}
	single := func(h axisHit, target domain.Target) domain.Mention {
		return domain.Mention{
			Target:    target,
			Subgroups: domain.MergeSubgroups([]domain.Subgroup{h.subgroup}),
			Start:     h.start,
			End:       h.end,
			Span:      h.span,
		}
	}

	switch {
	case len(genders) > 0 && len(races) > 0:
		for _, g := range genders {
			for _, rc := range races {
				m := single(rc, domain.Compose(g.gender, rc.race))
				if g.start < m.Start {
					m.Start, m.Span = g.start, g.span
				}
				if g.end > m.End {
					m.End = g.end
				}
				emit(m)
			}
		}
	case len(genders) > 0:
		for _, g := range genders {
			emit(single(g, domain.Compose(g.gender, domain.RaceNone)))
		}
	default:
		for _, rc := range races {
			emit(single(rc, domain.Compose(domain.GenderNone, rc.race)))
		}
	}
	return out
}
