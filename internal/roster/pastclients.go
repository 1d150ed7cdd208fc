package roster

import "math"

const (
	topTierRanks = 18
	topBoost     = 15
	tierFloor    = 10
	flatBoost    = 8
)

// Boost returns the past-client score boost for a roster rank: +15 at rank 1
// falling linearly to +10 at rank 18, then a flat +8.
func Boost(rank int) int {
	if rank < 1 {
		rank = 1
	}
	if rank > topTierRanks {
		return flatBoost
	}
	step := float64(rank-1) / float64(topTierRanks-1) * float64(topBoost-tierFloor)
	return int(math.Round(float64(topBoost) - step))
}

// PastClientMatch is a past-client roster hit.
type PastClientMatch struct {
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
	Boost  int    `json:"boost"`
	Method Method `json:"method"`
}

// PastClients is the ranked past-client roster.
type PastClients struct {
	roster *Roster
}

func NewPastClients(entries []Entry) *PastClients {
	return &PastClients{roster: New(entries, Options{})}
}

func (p *PastClients) Len() int {
	if p == nil {
		return 0
	}
	return p.roster.Len()
}

// Lookup returns the past-client entry matching name, with its boost.
func (p *PastClients) Lookup(name string) (PastClientMatch, bool) {
	if p == nil {
		return PastClientMatch{}, false
	}
	match, ok := p.roster.Match(name)
	if !ok {
		return PastClientMatch{}, false
	}
	return PastClientMatch{
		Name:   match.Entry.Name,
		Rank:   match.Entry.Rank,
		Boost:  Boost(match.Entry.Rank),
		Method: match.Method,
	}, true
}

// Exclusions is the excluded-company roster. A name that is also a past
// client is never excluded.
type Exclusions struct {
	roster      *Roster
	pastClients *PastClients
}

func NewExclusions(entries []Entry, pastClients *PastClients) *Exclusions {
	return &Exclusions{
		roster:      New(entries, Options{PrefixMatch: true}),
		pastClients: pastClients,
	}
}

func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return e.roster.Len()
}

// IsExcluded reports whether name should be suppressed.
func (e *Exclusions) IsExcluded(name string) bool {
	_, excluded := e.Match(name)
	return excluded
}

// Match returns the excluded entry name matched, honoring the past-client
// override.
func (e *Exclusions) Match(name string) (Match, bool) {
	if e == nil {
		return Match{}, false
	}
	match, ok := e.roster.Match(name)
	if !ok {
		return Match{}, false
	}
	if _, isPastClient := e.pastClients.Lookup(name); isPastClient {
		return Match{}, false
	}
	return match, true
}
