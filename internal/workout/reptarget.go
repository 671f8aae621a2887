package workout

import (
	"strconv"
	"strings"
)

// RepTargetKind distinguishes a rep range such as "6-8" from a fixed count such as "5".
type RepTargetKind string

const (
	RepTargetRange RepTargetKind = "range"
	RepTargetFixed RepTargetKind = "fixed"
)

// RepTarget is a parsed rep scheme. Min and Max are set for ranges, Value for fixed targets.
type RepTarget struct {
	Kind  RepTargetKind `json:"kind"`
	Min   int           `json:"min,omitempty"`
	Max   int           `json:"max,omitempty"`
	Value int           `json:"value,omitempty"`
}

// ParseRepTarget parses a free-text rep target. It returns nil for anything that is not a positive integer or a
// strictly increasing range of two positive integers.
func ParseRepTarget(s string) *RepTarget {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if lo, hi, isRange := strings.Cut(s, "-"); isRange {
		minReps, okMin := parsePositiveInt(lo)
		maxReps, okMax := parsePositiveInt(hi)
		if !okMin || !okMax || minReps >= maxReps {
			return nil
		}
		return &RepTarget{Kind: RepTargetRange, Min: minReps, Max: maxReps, Value: 0}
	}

	value, ok := parsePositiveInt(s)
	if !ok {
		return nil
	}
	return &RepTarget{Kind: RepTargetFixed, Min: 0, Max: 0, Value: value}
}

// parsePositiveInt accepts only ASCII digits, optionally surrounded by whitespace, with a value above zero.
func parsePositiveInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
