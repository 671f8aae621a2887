package workout

import (
	"math"
	"strconv"
)

// StandardWeightIncrementKg is the weight added once the top of a rep range or a fixed target is reached.
const StandardWeightIncrementKg = 2.5

// Progression is the suggested target for the next session of an exercise.
type Progression struct {
	SuggestedWeight float64 `json:"suggested_weight"`
	SuggestedReps   int     `json:"suggested_reps"`
	Label           string  `json:"label"`
}

// Advisor suggests double progression targets using a configurable weight increment.
type Advisor struct {
	IncrementKg float64
}

// NewAdvisor returns an Advisor that falls back to StandardWeightIncrementKg for non-positive increments.
func NewAdvisor(incrementKg float64) Advisor {
	if incrementKg <= 0 || math.IsNaN(incrementKg) || math.IsInf(incrementKg, 0) {
		incrementKg = StandardWeightIncrementKg
	}
	return Advisor{IncrementKg: incrementKg}
}

// SuggestProgression applies double progression with the standard increment.
func SuggestProgression(lastWeight, lastReps float64, repsTarget string) *Progression {
	return NewAdvisor(StandardWeightIncrementKg).Suggest(lastWeight, lastReps, repsTarget)
}

// Suggest returns the next target based on the last performance, or nil when there is no usable history or the
// rep target cannot be parsed.
//
// Within a range, reps are added one at a time until the top of the range is reached, after which the weight goes
// up and reps reset to the bottom of the range. A fixed target always adds weight.
func (a Advisor) Suggest(lastWeight, lastReps float64, repsTarget string) *Progression {
	if !(lastWeight > 0) || !(lastReps > 0) {
		return nil
	}
	target := ParseRepTarget(repsTarget)
	if target == nil {
		return nil
	}

	increased := &Progression{
		SuggestedWeight: lastWeight + a.IncrementKg,
		SuggestedReps:   target.Value,
		Label:           "+" + strconv.FormatFloat(a.IncrementKg, 'f', -1, 64) + " kg",
	}

	switch target.Kind {
	case RepTargetFixed:
		return increased
	case RepTargetRange:
		if lastReps >= float64(target.Max) {
			increased.SuggestedReps = target.Min
			return increased
		}
		return &Progression{
			SuggestedWeight: lastWeight,
			SuggestedReps:   int(math.Round(lastReps)) + 1,
			Label:           "+1 rep",
		}
	}
	return nil
}
