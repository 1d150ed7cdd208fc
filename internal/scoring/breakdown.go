package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"horse.fit/bdradar/internal/signal"
)

// Score breakdown keys as stored on a signal.
const (
	KeySignalStrength     = "signal_strength"
	KeyRelationshipWarmth = "relationship_warmth"
	KeyActionability      = "actionability"
	KeyPastClientBoost    = "past_client_boost"
	KeyRecency            = "recency"
)

var legacyBoostPattern = regexp.MustCompile(`\+(\d+)`)

// Breakdown is the typed form of a stored score breakdown. Keys the scorer
// does not own survive a round trip through Extra.
type Breakdown struct {
	SignalStrength     int
	RelationshipWarmth int
	Actionability      int
	PastClientBoost    *int
	Recency            int
	Extra              map[string]any
}

// Total is the capped sum of all components.
func (b Breakdown) Total() int {
	total := b.SignalStrength + b.RelationshipWarmth + b.Actionability + b.Recency
	if b.PastClientBoost != nil {
		total += *b.PastClientBoost
	}
	return min(max(total, 0), MaxScore)
}

// Boost returns the past-client boost, 0 when absent.
func (b Breakdown) Boost() int {
	if b.PastClientBoost == nil {
		return 0
	}
	return *b.PastClientBoost
}

// ToMap renders b for storage.
func (b Breakdown) ToMap() map[string]any {
	out := make(map[string]any, len(b.Extra)+5)
	for key, value := range b.Extra {
		out[key] = value
	}
	out[KeySignalStrength] = b.SignalStrength
	out[KeyRelationshipWarmth] = b.RelationshipWarmth
	out[KeyActionability] = b.Actionability
	out[KeyRecency] = b.Recency
	if b.PastClientBoost != nil {
		out[KeyPastClientBoost] = *b.PastClientBoost
	}
	return out
}

// ParseBreakdown validates a stored breakdown. signal_strength is required;
// the other components default to zero, and past_client_boost stays nil when
// absent so legacy records can fall back to their detail payload.
func ParseBreakdown(raw map[string]any) (Breakdown, error) {
	if raw == nil {
		return Breakdown{}, fmt.Errorf("score breakdown is empty")
	}

	var b Breakdown
	strength, ok, err := intField(raw, KeySignalStrength)
	if err != nil {
		return Breakdown{}, err
	}
	if !ok {
		return Breakdown{}, fmt.Errorf("score breakdown is missing %s", KeySignalStrength)
	}
	b.SignalStrength = strength

	for _, field := range []struct {
		key  string
		dest *int
	}{
		{key: KeyRelationshipWarmth, dest: &b.RelationshipWarmth},
		{key: KeyActionability, dest: &b.Actionability},
		{key: KeyRecency, dest: &b.Recency},
	} {
		value, _, err := intField(raw, field.key)
		if err != nil {
			return Breakdown{}, err
		}
		*field.dest = value
	}

	boost, hasBoost, err := intField(raw, KeyPastClientBoost)
	if err != nil {
		return Breakdown{}, err
	}
	if hasBoost {
		b.PastClientBoost = &boost
	}

	for key, value := range raw {
		switch key {
		case KeySignalStrength, KeyRelationshipWarmth, KeyActionability, KeyRecency, KeyPastClientBoost:
			continue
		}
		if b.Extra == nil {
			b.Extra = map[string]any{}
		}
		b.Extra[key] = value
	}
	return b, nil
}

// LegacyBoost reads the past-client boost from a detail payload written
// before the breakdown carried it: either {"past_client": {"boost": n}} or a
// note such as {"past_client": "Past client #4 (+14)"}.
func LegacyBoost(detail signal.Detail) (int, bool) {
	if detail == nil {
		return 0, false
	}
	switch note := detail[signal.DetailPastClient].(type) {
	case map[string]any:
		boost, ok, err := intField(note, "boost")
		if err != nil || !ok {
			return 0, false
		}
		return boost, true
	case signal.Detail:
		boost, ok, err := intField(note, "boost")
		if err != nil || !ok {
			return 0, false
		}
		return boost, true
	case string:
		found := legacyBoostPattern.FindStringSubmatch(note)
		if len(found) != 2 {
			return 0, false
		}
		boost, err := strconv.Atoi(found[1])
		if err != nil {
			return 0, false
		}
		return boost, true
	default:
		return 0, false
	}
}

func (b Breakdown) clone() Breakdown {
	out := b
	if b.PastClientBoost != nil {
		boost := *b.PastClientBoost
		out.PastClientBoost = &boost
	}
	if b.Extra != nil {
		out.Extra = make(map[string]any, len(b.Extra))
		for key, value := range b.Extra {
			out.Extra[key] = value
		}
	}
	return out
}

func intField(raw map[string]any, key string) (int, bool, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return 0, false, nil
	}
	switch v := value.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false, fmt.Errorf("%s is not a finite number", key)
		}
		return int(math.Round(v)), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s is not a number: %w", key, err)
		}
		return int(math.Round(f)), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false, fmt.Errorf("%s is not a number: %q", key, v)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("%s has unsupported type %T", key, value)
	}
}
