// Package scoring computes signal priority scores.
package scoring

import (
	"time"

	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/signal"
)

const (
	MaxScore = 100

	recencyMax       = 25
	recencyFloor     = 10
	recencyDailyDrop = 3
	recencyFreshDays = 7
	recencyStepDays  = 3

	preHiringBonus = 15
	preHiringFloor = 5
)

var baseStrengths = map[signal.Kind]int{
	signal.KindPhaseTransition:   40,
	signal.KindNewIND:            30,
	signal.KindNewAward:          30,
	signal.KindTransaction:       35,
	signal.KindPartnership:       30,
	signal.KindFunding:           35,
	signal.KindCompetitorPosting: 25,
	signal.KindStalePosting:      20,
}

var warmthBonuses = map[signal.Warmth]int{
	signal.WarmthActiveClient: 20,
	signal.WarmthPastClient:   15,
	signal.WarmthInPipeline:   10,
	signal.WarmthNewProspect:  5,
}

// BaseStrength returns the fixed strength for kind, or 0 for unknown kinds.
func BaseStrength(kind signal.Kind) int {
	return baseStrengths[kind]
}

func WarmthBonus(warmth signal.Warmth) int {
	if bonus, ok := warmthBonuses[warmth]; ok {
		return bonus
	}
	return warmthBonuses[signal.WarmthNewProspect]
}

// Recency decays from 25 by 3 a day to a floor of 10 during the first week,
// then climbs back by 1 every 3 days up to 25.
func Recency(daysInQueue int) int {
	if daysInQueue < 0 {
		daysInQueue = 0
	}
	if daysInQueue <= recencyFreshDays {
		return max(recencyMax-recencyDailyDrop*daysInQueue, recencyFloor)
	}
	return min(recencyFloor+(daysInQueue-recencyFreshDays)/recencyStepDays, recencyMax)
}

// PreHiringAdjust raises strength when the company is not hiring yet and
// lowers it, floored at 5, when it already is.
func PreHiringAdjust(strength int, hasActivePostings bool) int {
	if !hasActivePostings {
		return strength + preHiringBonus
	}
	return max(strength-preHiringBonus, preHiringFloor)
}

// DaysInQueue counts UTC calendar days between firstDetected and now.
func DaysInQueue(firstDetected, now time.Time) int {
	start := globaltime.StartOfDay(firstDetected)
	end := globaltime.StartOfDay(now)
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

// Inputs describes a signal at creation time.
type Inputs struct {
	Kind   signal.Kind
	Warmth signal.Warmth

	// PastClientBoost is the roster boost, 0 when the company is not a past client.
	PastClientBoost int

	// ActivePostings enables the pre-hiring adjustment when set.
	ActivePostings *int
}

// Initial scores a signal at insertion time.
func Initial(in Inputs) Breakdown {
	strength := BaseStrength(in.Kind)
	if in.ActivePostings != nil {
		strength = PreHiringAdjust(strength, *in.ActivePostings > 0)
	}
	boost := in.PastClientBoost
	return Breakdown{
		SignalStrength:     strength,
		RelationshipWarmth: WarmthBonus(in.Warmth),
		Actionability:      0,
		PastClientBoost:    &boost,
		Recency:            Recency(0),
	}
}

// Recalculate refreshes the time- and warmth-dependent components of b.
// Signal strength and actionability are carried over unchanged.
func Recalculate(b Breakdown, detail signal.Detail, warmth signal.Warmth, daysInQueue int) Breakdown {
	out := b.clone()
	out.RelationshipWarmth = WarmthBonus(warmth)
	out.Recency = Recency(daysInQueue)
	if out.PastClientBoost == nil {
		if boost, ok := LegacyBoost(detail); ok {
			out.PastClientBoost = &boost
		}
	}
	return out
}
