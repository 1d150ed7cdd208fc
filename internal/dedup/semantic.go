package dedup

import (
	"sort"
	"strings"
	"time"

	"horse.fit/bdradar/internal/orgname"
	"horse.fit/bdradar/internal/signal"
)

const (
	prefixChars   = 6
	containsChars = 8
)

// Record is the slice of a stored signal the semantic pass looks at.
type Record struct {
	ID         int64
	Company    string
	Kind       string
	Detail     signal.Detail
	DetectedAt time.Time
}

// Options tunes the semantic pass.
type Options struct {
	SharedActorWindow time.Duration
	ClusterWindow     time.Duration
}

func DefaultOptions() Options {
	return Options{
		SharedActorWindow: 30 * 24 * time.Hour,
		ClusterWindow:     7 * 24 * time.Hour,
	}
}

// Reason names the rule that linked two records.
type Reason string

const (
	ReasonSymmetricFiling  Reason = "symmetric_filing"
	ReasonSharedActor      Reason = "shared_actor"
	ReasonIdenticalParties Reason = "identical_parties"
	ReasonCluster          Reason = "company_kind_cluster"
)

// Pass identifies which sweep produced a decision.
type Pass string

const (
	PassPair    Pass = "pair"
	PassCluster Pass = "cluster"
)

// Decision drops one record in favor of another.
type Decision struct {
	Keep   int64  `json:"keep"`
	Drop   int64  `json:"drop"`
	Pass   Pass   `json:"pass"`
	Reason Reason `json:"reason"`
}

// Similar is the loose name test used for deal matching: after
// normalization, one name starts with the other's first six characters or
// contains the other's first eight. Keys shorter than that match on
// whatever they have, so a one- or two-letter key is similar to most names
// containing it and can merge unrelated deals.
func Similar(a, b string) bool {
	ka := orgname.Key(a)
	kb := orgname.Key(b)
	if ka == "" || kb == "" {
		return false
	}
	return strings.HasPrefix(ka, head(kb, prefixChars)) ||
		strings.HasPrefix(kb, head(ka, prefixChars)) ||
		strings.Contains(ka, head(kb, containsChars)) ||
		strings.Contains(kb, head(ka, containsChars))
}

// SameDeal reports whether a and b describe one transaction.
func SameDeal(a, b Record, opts Options) (Reason, bool) {
	aCounterparty, bCounterparty := a.Detail.Counterparty(), b.Detail.Counterparty()
	aActor, bActor := a.Detail.Acquirer(), b.Detail.Acquirer()

	if Similar(a.Company, bCounterparty) && Similar(b.Company, aCounterparty) {
		return ReasonSymmetricFiling, true
	}
	if (Similar(a.Company, bActor) || Similar(b.Company, aActor)) && within(a.DetectedAt, b.DetectedAt, opts.SharedActorWindow) {
		return ReasonSharedActor, true
	}
	if Similar(aActor, bActor) && Similar(aCounterparty, bCounterparty) {
		return ReasonIdenticalParties, true
	}
	return "", false
}

// Richer returns the record to keep: more non-empty detail fields, then
// the more recent detection, then the higher id.
func Richer(a, b Record) Record {
	na, nb := a.Detail.NonEmptyFields(), b.Detail.NonEmptyFields()
	switch {
	case na > nb:
		return a
	case nb > na:
		return b
	case a.DetectedAt.After(b.DetectedAt):
		return a
	case b.DetectedAt.After(a.DetectedAt):
		return b
	case a.ID >= b.ID:
		return a
	default:
		return b
	}
}

// Plan runs the pairwise pass and then the company/kind cluster pass and
// returns every deletion. Running Plan again over the survivors yields
// nothing.
func Plan(records []Record, opts Options) []Decision {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	dropped := make(map[int64]struct{}, len(ordered))
	decisions := make([]Decision, 0)

	for i := 0; i < len(ordered); i++ {
		if _, gone := dropped[ordered[i].ID]; gone {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			if _, gone := dropped[ordered[j].ID]; gone {
				continue
			}
			reason, same := SameDeal(ordered[i], ordered[j], opts)
			if !same {
				continue
			}
			keep := Richer(ordered[i], ordered[j])
			drop := ordered[j]
			if keep.ID == drop.ID {
				drop = ordered[i]
			}
			dropped[drop.ID] = struct{}{}
			decisions = append(decisions, Decision{Keep: keep.ID, Drop: drop.ID, Pass: PassPair, Reason: reason})
			if drop.ID == ordered[i].ID {
				break
			}
		}
	}

	survivors := make([]Record, 0, len(ordered))
	for _, record := range ordered {
		if _, gone := dropped[record.ID]; !gone {
			survivors = append(survivors, record)
		}
	}
	return append(decisions, clusterPass(survivors, opts)...)
}

type groupKey struct {
	company string
	kind    string
}

// clusterPass groups records by company and kind. Within a group the best
// remaining record is kept and every record detected within the cluster
// window of it is dropped, until the group is exhausted. Survivors of one
// group are therefore more than a window apart, and every dropped record is
// within a window of the record that replaced it.
func clusterPass(records []Record, opts Options) []Decision {
	groups := make(map[groupKey][]Record)
	order := make([]groupKey, 0)
	for _, record := range records {
		key := groupKey{company: orgname.Key(record.Company), kind: record.Kind}
		if key.company == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], record)
	}

	decisions := make([]Decision, 0)
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return better(members[i], members[j]) })

		settled := make([]bool, len(members))
		for i, keep := range members {
			if settled[i] {
				continue
			}
			settled[i] = true
			for j := i + 1; j < len(members); j++ {
				if settled[j] || !within(keep.DetectedAt, members[j].DetectedAt, opts.ClusterWindow) {
					continue
				}
				settled[j] = true
				decisions = append(decisions, Decision{Keep: keep.ID, Drop: members[j].ID, Pass: PassCluster, Reason: ReasonCluster})
			}
		}
	}
	return decisions
}

// better orders records by Richer, best first.
func better(a, b Record) bool {
	return a.ID != b.ID && Richer(a, b).ID == a.ID
}

func within(a, b time.Time, window time.Duration) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
