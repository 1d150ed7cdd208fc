package roster

import "testing"

func TestBoostBounds(t *testing.T) {
	t.Parallel()

	tests := map[int]int{
		1:   15,
		10:  12,
		18:  10,
		19:  8,
		250: 8,
		0:   15,
	}
	for rank, want := range tests {
		if got := Boost(rank); got != want {
			t.Fatalf("unexpected boost for rank %d: got %d want %d", rank, got, want)
		}
	}
}

func TestBoostDecreasesAcrossTopTier(t *testing.T) {
	t.Parallel()

	prev := Boost(1)
	for rank := 2; rank <= 18; rank++ {
		got := Boost(rank)
		if got > prev {
			t.Fatalf("boost increased at rank %d: %d > %d", rank, got, prev)
		}
		if got < 10 || got > 15 {
			t.Fatalf("boost out of range at rank %d: %d", rank, got)
		}
		prev = got
	}
}

func TestRosterMatchMethods(t *testing.T) {
	t.Parallel()

	r := New([]Entry{
		{Name: "Acme Therapeutics, Inc.", Rank: 3},
		{Name: "Vertex Pharmaceuticals", Rank: 1},
		{Name: "Rho Bio", Rank: 7},
		{Name: "Blue Harbor Labs", Rank: 20},
	}, Options{})

	tests := []struct {
		name       string
		wantEntry  string
		wantMethod Method
		wantOK     bool
	}{
		{name: "acme therapeutics inc", wantEntry: "Acme Therapeutics, Inc.", wantMethod: MethodExact, wantOK: true},
		{name: "ACME Corp., Cambridge, MA", wantEntry: "Acme Therapeutics, Inc.", wantMethod: MethodStripped, wantOK: true},
		{name: "Vertex", wantEntry: "Vertex Pharmaceuticals", wantMethod: MethodStripped, wantOK: true},
		{name: "Blue Harbor Labs East", wantEntry: "Blue Harbor Labs", wantMethod: MethodKeyword, wantOK: true},
		{name: "Rho Bio Partners", wantEntry: "Rho Bio", wantMethod: MethodKeyword, wantOK: true},
		{name: "Rhonda Bio", wantOK: false},
		{name: "Harbor", wantEntry: "Blue Harbor Labs", wantMethod: MethodKeyword, wantOK: true},
		{name: "Orbital Devices", wantOK: false},
		{name: "", wantOK: false},
	}

	for _, tc := range tests {
		match, ok := r.Match(tc.name)
		if ok != tc.wantOK {
			t.Fatalf("unexpected match result for %q: got %v want %v (%+v)", tc.name, ok, tc.wantOK, match)
		}
		if !ok {
			continue
		}
		if match.Entry.Name != tc.wantEntry {
			t.Fatalf("unexpected entry for %q: got %q want %q", tc.name, match.Entry.Name, tc.wantEntry)
		}
		if match.Method != tc.wantMethod {
			t.Fatalf("unexpected method for %q: got %q want %q", tc.name, match.Method, tc.wantMethod)
		}
	}
}

func TestRosterPrefersLowerRank(t *testing.T) {
	t.Parallel()

	r := New([]Entry{
		{Name: "Summit Oncology Partners", Rank: 9},
		{Name: "Summit Oncology", Rank: 2},
	}, Options{})

	match, ok := r.Match("Summit Oncology Partners Research")
	if !ok {
		t.Fatalf("expected keyword match")
	}
	if match.Entry.Rank != 2 {
		t.Fatalf("unexpected matched rank: got %d want 2", match.Entry.Rank)
	}
}

func TestPrefixMatchOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	entries := []Entry{{Name: "Megacorporation Pharmaceuticals"}}
	name := "Megacorp"

	if _, ok := New(entries, Options{}).Match(name); ok {
		t.Fatalf("expected no match without prefix matching")
	}
	match, ok := New(entries, Options{PrefixMatch: true}).Match(name)
	if !ok {
		t.Fatalf("expected prefix match")
	}
	if match.Method != MethodPrefix {
		t.Fatalf("unexpected method: got %q want %q", match.Method, MethodPrefix)
	}
}

func TestPastClientsLookup(t *testing.T) {
	t.Parallel()

	pc := NewPastClients([]Entry{
		{Name: "Acme Therapeutics", Rank: 1},
		{Name: "Orion Biologics", Rank: 18},
		{Name: "Zephyr Bio", Rank: 42},
	})

	tests := map[string]int{
		"Acme Therapeutics, Inc., Boston, MA": 15,
		"Orion Biologics LLC":                 10,
		"zephyr bio":                          8,
	}
	for name, wantBoost := range tests {
		match, ok := pc.Lookup(name)
		if !ok {
			t.Fatalf("expected past-client match for %q", name)
		}
		if match.Boost != wantBoost {
			t.Fatalf("unexpected boost for %q: got %d want %d", name, match.Boost, wantBoost)
		}
	}

	if _, ok := pc.Lookup("Unrelated Devices"); ok {
		t.Fatalf("expected no match for unrelated name")
	}
	var nilRoster *PastClients
	if _, ok := nilRoster.Lookup("Acme"); ok {
		t.Fatalf("expected nil roster to match nothing")
	}
}

func TestExclusionPastClientOverride(t *testing.T) {
	t.Parallel()

	pc := NewPastClients([]Entry{{Name: "Pfizer Inc.", Rank: 5}})
	ex := NewExclusions([]Entry{
		{Name: "Pfizer"},
		{Name: "Johnson & Johnson"},
	}, pc)

	if ex.IsExcluded("Pfizer, Inc., New York, NY") {
		t.Fatalf("past client must never be excluded")
	}
	if !ex.IsExcluded("Johnson & Johnson Services, Inc.") {
		t.Fatalf("expected Johnson & Johnson to be excluded")
	}
	if ex.IsExcluded("Small Startup Bio") {
		t.Fatalf("unexpected exclusion")
	}

	noOverride := NewExclusions([]Entry{{Name: "Pfizer"}}, nil)
	if !noOverride.IsExcluded("Pfizer Inc") {
		t.Fatalf("expected exclusion without past-client roster")
	}
}
