package workout

import (
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrRunCompleted is returned when writing sets to a run that has already ended.
	ErrRunCompleted = errors.NewSentinel("run completed")
)

// Exercise represents a single exercise type, e.g. Squat, Bench Press, etc.
type Exercise struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Muscles   []string `json:"muscles"`
	Equipment string   `json:"equipment"`
}

// Program groups the sessions of a training plan, e.g. Push/Pull/Legs.
type Program struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Session is a workout template inside a program.
type Session struct {
	ID        string `json:"id"`
	ProgramID string `json:"program_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
}

// SessionExercise is a planned exercise within a session together with its target scheme.
type SessionExercise struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	ExerciseID string `json:"exercise_id"`
	// SetsTarget is the number of set slots the live session offers for this exercise.
	SetsTarget int `json:"sets_target"`
	// RepsTarget is a free-text scheme such as "6-8" or "5", see ParseRepTarget.
	RepsTarget   *string  `json:"reps_target"`
	WeightTarget *float64 `json:"weight_target"`
	Position     int      `json:"position"`
}

// Run is one executed instance of a session. EndTime is nil while the run is active.
type Run struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Note      *string    `json:"note"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// IsActive reports whether the run has been started but not completed.
func (r Run) IsActive() bool {
	return r.EndTime == nil && r.DeletedAt == nil
}

// LoggedSet is one persisted completed set. IsPR is frozen at creation time.
type LoggedSet struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	ExerciseID string    `json:"exercise_id"`
	Weight     float64   `json:"weight"`
	Reps       int       `json:"reps"`
	SetOrder   int       `json:"set_order"`
	IsPR       bool      `json:"is_pr"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewLoggedSet holds the fields needed to persist a LoggedSet.
type NewLoggedSet struct {
	RunID      string
	ExerciseID string
	Weight     float64
	Reps       int
	SetOrder   int
	IsPR       bool
}

// LastPerformance aggregates the sets of an exercise in the most recent run that logged it.
type LastPerformance struct {
	MaxWeight float64   `json:"max_weight"`
	AvgReps   int       `json:"avg_reps"`
	SetsCount int       `json:"sets_count"`
	Date      time.Time `json:"date"`
}

// RunSummary aggregates the persisted sets of a run.
type RunSummary struct {
	Run         Run     `json:"run"`
	TotalVolume float64 `json:"total_volume"`
	SetsCount   int     `json:"sets_count"`
	PRCount     int     `json:"pr_count"`
}
