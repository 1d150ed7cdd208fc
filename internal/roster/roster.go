// Package roster matches organization names against ranked or flat rosters
// of known organizations.
package roster

import (
	"math"
	"sort"
	"strings"

	"horse.fit/bdradar/internal/orgname"
)

// Method records which step produced a match.
type Method string

const (
	MethodExact    Method = "exact"
	MethodStripped Method = "stripped"
	MethodKeyword  Method = "keyword"
	MethodPrefix   Method = "prefix"
)

const (
	shortWordMaxLen = 4
	prefixMinLen    = 4
	containMinLen   = 8
)

// Entry is one roster row. Rank is ignored by unranked rosters.
type Entry struct {
	Name string
	Rank int
}

// Options selects the optional matching steps.
type Options struct {
	// PrefixMatch enables the truncation step after keyword matching.
	PrefixMatch bool
}

// Match is a successful roster lookup.
type Match struct {
	Entry  Entry
	Method Method
}

type indexedEntry struct {
	entry      Entry
	normalized string
	key        string
	keywords   []string
	keywordSet map[string]struct{}
	boundary   map[string]struct{}
}

// Roster is an immutable, pre-indexed roster.
type Roster struct {
	opts       Options
	entries    []indexedEntry
	byExact    map[string]int
	byStripped map[string]int
}

// New indexes entries. Ranked entries are ordered by rank so that, when a
// name matches more than one entry, the most important one wins.
func New(entries []Entry, opts Options) *Roster {
	sorted := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		sorted = append(sorted, entry)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankOrder(sorted[i].Rank) < rankOrder(sorted[j].Rank)
	})

	r := &Roster{
		opts:       opts,
		entries:    make([]indexedEntry, 0, len(sorted)),
		byExact:    make(map[string]int, len(sorted)),
		byStripped: make(map[string]int, len(sorted)),
	}
	for _, entry := range sorted {
		indexed := index(entry)
		pos := len(r.entries)
		r.entries = append(r.entries, indexed)
		if _, exists := r.byExact[indexed.normalized]; !exists && indexed.normalized != "" {
			r.byExact[indexed.normalized] = pos
		}
		if _, exists := r.byStripped[indexed.key]; !exists && indexed.key != "" {
			r.byStripped[indexed.key] = pos
		}
	}
	return r
}

// Len returns the number of indexed entries.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Match runs exact, stripped, keyword and (optionally) prefix matching in
// that order and returns the first hit.
func (r *Roster) Match(name string) (Match, bool) {
	if r == nil || len(r.entries) == 0 {
		return Match{}, false
	}
	candidate := index(Entry{Name: name})
	if candidate.normalized == "" {
		return Match{}, false
	}

	if pos, ok := r.byExact[candidate.normalized]; ok {
		return Match{Entry: r.entries[pos].entry, Method: MethodExact}, true
	}
	if candidate.key != "" {
		if pos, ok := r.byStripped[candidate.key]; ok {
			return Match{Entry: r.entries[pos].entry, Method: MethodStripped}, true
		}
	}

	for _, entry := range r.entries {
		if keywordsContained(candidate, entry) || keywordsContained(entry, candidate) {
			return Match{Entry: entry.entry, Method: MethodKeyword}, true
		}
	}

	if r.opts.PrefixMatch {
		for _, entry := range r.entries {
			if prefixRelated(candidate.key, entry.key) {
				return Match{Entry: entry.entry, Method: MethodPrefix}, true
			}
		}
	}

	return Match{}, false
}

func index(entry Entry) indexedEntry {
	normalized := orgname.Normalize(entry.Name)
	key := orgname.Key(entry.Name)
	keywords := orgname.Tokens(key)

	keywordSet := make(map[string]struct{}, len(keywords))
	for _, word := range keywords {
		keywordSet[word] = struct{}{}
	}
	boundary := map[string]struct{}{}
	for _, word := range orgname.Tokens(normalized) {
		boundary[word] = struct{}{}
	}

	return indexedEntry{
		entry:      entry,
		normalized: normalized,
		key:        key,
		keywords:   keywords,
		keywordSet: keywordSet,
		boundary:   boundary,
	}
}

// keywordsContained reports whether every core keyword of from appears in
// target. Short words must sit on a word boundary of the target's
// normalized text; longer words must be one of the target's keywords.
func keywordsContained(from, target indexedEntry) bool {
	if len(from.keywords) == 0 || len(target.keywords) == 0 {
		return false
	}
	for _, word := range from.keywords {
		if len([]rune(word)) <= shortWordMaxLen {
			if _, ok := target.boundary[word]; !ok {
				return false
			}
			continue
		}
		if _, ok := target.keywordSet[word]; !ok {
			return false
		}
	}
	return true
}

func prefixRelated(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len([]rune(shorter)) < prefixMinLen {
		return false
	}
	if strings.HasPrefix(longer, shorter) {
		return true
	}
	return len([]rune(shorter)) >= containMinLen && strings.Contains(longer, shorter)
}

func rankOrder(rank int) int {
	if rank < 1 {
		return math.MaxInt
	}
	return rank
}
