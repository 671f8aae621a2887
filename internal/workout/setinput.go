package workout

import (
	"maps"
	"strconv"
	"sync"
)

// DraftField names one of the two text inputs of a set slot.
type DraftField string

const (
	FieldWeight DraftField = "weight"
	FieldReps   DraftField = "reps"
)

// SetDraft holds the unvalidated text input of one set slot.
type SetDraft struct {
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
}

// SlotKey identifies the set slot setOrder of a session exercise.
func SlotKey(sessionExerciseID string, setOrder int) string {
	return sessionExerciseID + "_" + strconv.Itoa(setOrder)
}

// BuildInitialDrafts creates a draft for every slot 1..SetsTarget of every session exercise.
//
// Slots are seeded from lastSets, keyed by exercise ID and ordered by set order, falling back to the last available
// set when the previous run had fewer sets. Exercises without history are seeded from the planned weight target
// and the fixed reps or the bottom of the rep range.
func BuildInitialDrafts(sessionExercises []SessionExercise, lastSets map[string][]LoggedSet) map[string]SetDraft {
	drafts := make(map[string]SetDraft)
	for _, se := range sessionExercises {
		history := lastSets[se.ExerciseID]
		planned := plannedDraft(se)
		for setOrder := 1; setOrder <= se.SetsTarget; setOrder++ {
			draft := planned
			if len(history) > 0 {
				prior := history[min(setOrder, len(history))-1]
				draft = SetDraft{Weight: formatWeight(prior.Weight), Reps: strconv.Itoa(prior.Reps)}
			}
			drafts[SlotKey(se.ID, setOrder)] = draft
		}
	}
	return drafts
}

// EmptyDrafts creates blank drafts for every slot. It is the fallback when history cannot be loaded.
func EmptyDrafts(sessionExercises []SessionExercise) map[string]SetDraft {
	drafts := make(map[string]SetDraft)
	for _, se := range sessionExercises {
		for setOrder := 1; setOrder <= se.SetsTarget; setOrder++ {
			drafts[SlotKey(se.ID, setOrder)] = SetDraft{Weight: "", Reps: ""}
		}
	}
	return drafts
}

func plannedDraft(se SessionExercise) SetDraft {
	var draft SetDraft
	if se.WeightTarget != nil {
		draft.Weight = formatWeight(*se.WeightTarget)
	}
	if se.RepsTarget != nil {
		if target := ParseRepTarget(*se.RepsTarget); target != nil {
			switch target.Kind {
			case RepTargetFixed:
				draft.Reps = strconv.Itoa(target.Value)
			case RepTargetRange:
				draft.Reps = strconv.Itoa(target.Min)
			}
		}
	}
	return draft
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// SetInputStore holds the draft inputs of a live session.
type SetInputStore struct {
	mu     sync.Mutex
	drafts map[string]SetDraft
	seeded bool
}

func NewSetInputStore() *SetInputStore {
	return &SetInputStore{
		mu:     sync.Mutex{},
		drafts: make(map[string]SetDraft),
		seeded: false,
	}
}

// Seed installs initial drafts. Only the first call has an effect and slots already edited by the user are kept.
func (s *SetInputStore) Seed(drafts map[string]SetDraft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded {
		return false
	}
	s.seeded = true
	for key, draft := range drafts {
		if _, edited := s.drafts[key]; !edited {
			s.drafts[key] = draft
		}
	}
	return true
}

// Update replaces a single field of a single slot. Unknown fields are ignored.
func (s *SetInputStore) Update(key string, field DraftField, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.drafts[key]
	switch field {
	case FieldWeight:
		draft.Weight = value
	case FieldReps:
		draft.Reps = value
	default:
		return
	}
	s.drafts[key] = draft
}

// Draft returns the draft of key.
func (s *SetInputStore) Draft(key string) (SetDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[key]
	return draft, ok
}

// Snapshot returns a copy of all drafts.
func (s *SetInputStore) Snapshot() map[string]SetDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.drafts)
}
