package workout

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// volumeScale stores volume in thousandths of a kilogram so that validating and un-validating a set cancel out
// exactly.
const volumeScale = 1000

var errRunNotReady = errors.NewSentinel("run not ready")

// ValidatedSet is the in-memory view of a set slot that has been persisted.
type ValidatedSet struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
	IsPR   bool    `json:"is_pr"`
}

// EngineSnapshot is a consistent copy of the state of a SessionEngine.
type EngineSnapshot struct {
	RunID       string                  `json:"run_id"`
	Drafts      map[string]SetDraft     `json:"drafts"`
	Validated   map[string]ValidatedSet `json:"validated"`
	TotalVolume float64                 `json:"total_volume"`
}

// SessionEngine runs a live workout session: it holds the draft inputs, validates and persists sets, detects
// personal records and keeps the running volume.
//
// Operations report failure with a false return and log the cause. The mutex guarding the in-memory state is never
// held during I/O, so aggregates are applied in the order operations complete.
type SessionEngine struct {
	history   HistoryRepository
	exercises ExerciseResolver
	logger    *slog.Logger
	metrics   *metrics.Manager
	inputs    *SetInputStore
	inflight  singleflight.Group

	runReady chan struct{}
	runOnce  sync.Once

	mu          sync.Mutex
	runID       string
	runErr      error
	validated   map[string]ValidatedSet
	volumeMilli int64
	closed      bool
}

func NewSessionEngine(
	history HistoryRepository,
	exercises ExerciseResolver,
	logger *slog.Logger,
	m *metrics.Manager,
) *SessionEngine {
	return &SessionEngine{ //nolint:exhaustruct // zero values are ready to use.
		history:   history,
		exercises: exercises,
		logger:    logger,
		metrics:   m,
		inputs:    NewSetInputStore(),
		runReady:  make(chan struct{}),
		validated: make(map[string]ValidatedSet),
	}
}

// AttachRun makes runID the active run. Only the first attached run or failure counts.
func (e *SessionEngine) AttachRun(runID string) {
	e.runOnce.Do(func() {
		e.mu.Lock()
		e.runID = runID
		e.mu.Unlock()
		close(e.runReady)
	})
}

// failRun records that the run could not be created. Validation keeps failing for the lifetime of the engine.
func (e *SessionEngine) failRun(err error) {
	e.runOnce.Do(func() {
		e.mu.Lock()
		e.runErr = err
		e.mu.Unlock()
		close(e.runReady)
	})
}

// WaitRun blocks until the run is attached, its creation failed, or ctx is done.
func (e *SessionEngine) WaitRun(ctx context.Context) (string, error) {
	select {
	case <-e.runReady:
	case <-ctx.Done():
		return "", ctx.Err() //nolint:wrapcheck // context errors are returned as is.
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runErr != nil {
		return "", e.runErr
	}
	return e.runID, nil
}

// RunID returns the active run ID and whether it is available yet.
func (e *SessionEngine) RunID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID, e.runID != ""
}

// SeedDrafts initialises the drafts of all slots from the most recent history of each exercise. It only has an
// effect the first time it is called. A failed history lookup leaves every draft empty.
func (e *SessionEngine) SeedDrafts(ctx context.Context, sessionExercises []SessionExercise) {
	runID, _ := e.RunID()

	lastSets := make(map[string][]LoggedSet)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	seen := make(map[string]bool)
	for _, se := range sessionExercises {
		if se.SetsTarget <= 0 || seen[se.ExerciseID] {
			continue
		}
		seen[se.ExerciseID] = true
		g.Go(func() error {
			sets, err := e.history.LastSetsForExercise(gctx, se.ExerciseID, runID)
			if err != nil {
				return errors.Wrap(err, "last sets for exercise", slog.String("exercise_id", se.ExerciseID))
			}
			mu.Lock()
			lastSets[se.ExerciseID] = sets
			mu.Unlock()
			return nil
		})
	}

	drafts := EmptyDrafts(sessionExercises)
	if err := g.Wait(); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "seeding drafts from history failed, using empty drafts",
			errors.SlogError(err))
	} else {
		drafts = BuildInitialDrafts(sessionExercises, lastSets)
	}
	e.inputs.Seed(drafts)
}

// UpdateSetInput replaces one field of the draft of key. It never fails.
func (e *SessionEngine) UpdateSetInput(key string, field DraftField, value string) {
	e.inputs.Update(key, field, value)
}

// ValidateSet parses the draft of the slot, persists it as a logged set flagged as personal record when it beats
// the history of other runs, and adds it to the running volume.
//
// Concurrent calls for the same slot share one execution, which is not cancelled along with the context of the
// caller that started it. A slot that is already validated is rejected.
func (e *SessionEngine) ValidateSet(ctx context.Context, se SessionExercise, setOrder int) bool {
	key := SlotKey(se.ID, setOrder)
	ok, _, _ := e.inflight.Do("validate/"+key, func() (any, error) {
		return e.validateSet(context.WithoutCancel(ctx), se, setOrder, key), nil
	})
	return ok.(bool) //nolint:forcetypeassert // validateSet always returns bool.
}

func (e *SessionEngine) validateSet(ctx context.Context, se SessionExercise, setOrder int, key string) bool {
	ctx = logging.WithAttrs(ctx, slog.String("slot", key))

	e.mu.Lock()
	runID, closed := e.runID, e.closed
	_, alreadyValidated := e.validated[key]
	e.mu.Unlock()

	switch {
	case closed:
		return e.rejectValidation(ctx, "engine closed")
	case runID == "":
		return e.rejectValidation(ctx, errRunNotReady.Error())
	case alreadyValidated:
		return e.rejectValidation(ctx, "slot already validated")
	}
	ctx = logging.WithAttrs(ctx, slog.String("run_id", runID))

	draft, ok := e.inputs.Draft(key)
	if !ok {
		return e.rejectValidation(ctx, "no draft for slot")
	}
	weight, reps, err := parseDraft(draft)
	if err != nil {
		return e.rejectValidation(ctx, err.Error())
	}

	exercise, err := e.exercises.Get(ctx, se.ExerciseID)
	if err != nil {
		return e.failValidation(ctx, errors.Wrap(err, "resolve exercise",
			slog.String("exercise_id", se.ExerciseID)))
	}
	priorMax, err := e.history.MaxWeightForExercise(ctx, exercise.ID, runID)
	if err != nil {
		return e.failValidation(ctx, errors.Wrap(err, "max weight for exercise"))
	}
	isPR := IsPersonalRecord(weight, priorMax)

	if _, err = e.history.CreateLoggedSet(ctx, NewLoggedSet{
		RunID:      runID,
		ExerciseID: exercise.ID,
		Weight:     weight,
		Reps:       reps,
		SetOrder:   setOrder,
		IsPR:       isPR,
	}); err != nil {
		return e.failValidation(ctx, errors.Wrap(err, "create logged set"))
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.LogAttrs(ctx, slog.LevelInfo, "set persisted after engine closed")
		return false
	}
	e.validated[key] = ValidatedSet{Weight: weight, Reps: reps, IsPR: isPR}
	e.volumeMilli += volumeOf(weight, reps)
	e.mu.Unlock()

	e.metrics.CounterSetValidations.WithLabelValues(metrics.ResultOK).Inc()
	if isPR {
		e.metrics.CounterPersonalRecords.Inc()
	}
	e.logger.LogAttrs(ctx, slog.LevelDebug, "validated set",
		slog.Float64("weight", weight), slog.Int("reps", reps), slog.Bool("is_pr", isPR))
	return true
}

func (e *SessionEngine) rejectValidation(ctx context.Context, reason string) bool {
	e.metrics.CounterSetValidations.WithLabelValues(metrics.ResultRejected).Inc()
	e.logger.LogAttrs(ctx, slog.LevelDebug, "set validation rejected", slog.String("reason", reason))
	return false
}

func (e *SessionEngine) failValidation(ctx context.Context, err error) bool {
	e.metrics.CounterSetValidations.WithLabelValues(metrics.ResultFailed).Inc()
	e.logger.LogAttrs(ctx, slog.LevelWarn, "set validation failed", errors.SlogError(err))
	return false
}

// UnvalidateSet deletes the logged set of a validated slot and subtracts it from the running volume.
func (e *SessionEngine) UnvalidateSet(ctx context.Context, se SessionExercise, setOrder int) bool {
	key := SlotKey(se.ID, setOrder)
	ok, _, _ := e.inflight.Do("unvalidate/"+key, func() (any, error) {
		return e.unvalidateSet(context.WithoutCancel(ctx), se, setOrder, key), nil
	})
	return ok.(bool) //nolint:forcetypeassert // unvalidateSet always returns bool.
}

func (e *SessionEngine) unvalidateSet(ctx context.Context, se SessionExercise, setOrder int, key string) bool {
	ctx = logging.WithAttrs(ctx, slog.String("slot", key))

	e.mu.Lock()
	runID, closed := e.runID, e.closed
	_, validated := e.validated[key]
	e.mu.Unlock()

	if closed || runID == "" || !validated {
		e.metrics.CounterSetUnvalidations.WithLabelValues(metrics.ResultRejected).Inc()
		e.logger.LogAttrs(ctx, slog.LevelDebug, "set un-validation rejected",
			slog.Bool("closed", closed), slog.Bool("run_ready", runID != ""), slog.Bool("validated", validated))
		return false
	}
	ctx = logging.WithAttrs(ctx, slog.String("run_id", runID))

	err := e.deleteLoggedSet(ctx, se, setOrder, runID)
	if err != nil {
		e.metrics.CounterSetUnvalidations.WithLabelValues(metrics.ResultFailed).Inc()
		e.logger.LogAttrs(ctx, slog.LevelWarn, "set un-validation failed", errors.SlogError(err))
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	// The entry is read again since the slot may have changed while the set was being deleted.
	if v, ok := e.validated[key]; ok {
		e.volumeMilli -= volumeOf(v.Weight, v.Reps)
		delete(e.validated, key)
	}
	e.metrics.CounterSetUnvalidations.WithLabelValues(metrics.ResultOK).Inc()
	return true
}

func (e *SessionEngine) deleteLoggedSet(ctx context.Context, se SessionExercise, setOrder int, runID string) error {
	exercise, err := e.exercises.Get(ctx, se.ExerciseID)
	if err != nil {
		return errors.Wrap(err, "resolve exercise", slog.String("exercise_id", se.ExerciseID))
	}
	if err = e.history.DeleteLoggedSet(ctx, runID, exercise.ID, setOrder); err != nil {
		return errors.Wrap(err, "delete logged set")
	}
	return nil
}

// TotalVolume returns the sum of weight × reps over the validated slots.
func (e *SessionEngine) TotalVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.volumeMilli) / volumeScale
}

// ValidatedSet returns the validated view of key.
func (e *SessionEngine) ValidatedSet(key string) (ValidatedSet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.validated[key]
	return v, ok
}

// Draft returns the draft of key.
func (e *SessionEngine) Draft(key string) (SetDraft, bool) {
	return e.inputs.Draft(key)
}

// Snapshot returns a copy of the engine state.
func (e *SessionEngine) Snapshot() EngineSnapshot {
	drafts := e.inputs.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineSnapshot{
		RunID:       e.runID,
		Drafts:      drafts,
		Validated:   maps.Clone(e.validated),
		TotalVolume: float64(e.volumeMilli) / volumeScale,
	}
}

// Close discards the in-memory state. In-flight operations are not awaited; their writes persist but no longer
// affect the engine.
func (e *SessionEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	clear(e.validated)
	e.volumeMilli = 0
}

func volumeOf(weight float64, reps int) int64 {
	return int64(math.Round(weight*volumeScale)) * int64(reps)
}

// maxSetVolumeMilli bounds the volume of one set so that the running total of a session stays far below
// math.MaxInt64.
const maxSetVolumeMilli = math.MaxInt64 >> 20

var (
	errWeightRequired  = errors.NewSentinel("weight is required")
	errWeightInvalid   = errors.NewSentinel("weight must be a number of at least 0")
	errWeightPrecision = errors.NewSentinel("weight must have at most three decimals")
	errRepsRequired    = errors.NewSentinel("reps are required")
	errRepsInvalid     = errors.NewSentinel("reps must be a positive whole number")
	errVolumeTooLarge  = errors.NewSentinel("weight × reps is too large")
)

// parseDraft validates the text inputs of a draft. Weight may be 0 for bodyweight work, reps must be at least 1.
// Weights must be representable in thousandths of a kilogram.
func parseDraft(draft SetDraft) (float64, int, error) {
	weightText := strings.TrimSpace(draft.Weight)
	if weightText == "" {
		return 0, 0, errWeightRequired
	}
	weight, err := strconv.ParseFloat(weightText, 64)
	if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return 0, 0, errWeightInvalid
	}
	scaled := weight * volumeScale
	if scaled > maxSetVolumeMilli {
		return 0, 0, errVolumeTooLarge
	}
	weightMilli := math.Round(scaled)
	if weightMilli/volumeScale != weight {
		return 0, 0, errWeightPrecision
	}

	repsText := strings.TrimSpace(draft.Reps)
	if repsText == "" {
		return 0, 0, errRepsRequired
	}
	reps, err := strconv.Atoi(repsText)
	if err != nil || reps <= 0 {
		return 0, 0, errRepsInvalid
	}
	if int64(weightMilli) > maxSetVolumeMilli/int64(reps) {
		return 0, 0, errVolumeTooLarge
	}
	return weight, reps, nil
}
