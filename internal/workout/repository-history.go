package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
	"github.com/google/uuid"
)

// HistoryRepository persists runs and their logged sets and answers the historical queries of a live session.
// Every method is a single storage transaction.
type HistoryRepository interface {
	CreateRun(ctx context.Context, sessionID string, startTime time.Time) (Run, error)
	CompleteRun(ctx context.Context, runID string, endTime time.Time) error
	// MaxWeightForExercise returns 0 when the exercise has no sets outside excludeRunID.
	MaxWeightForExercise(ctx context.Context, exerciseID, excludeRunID string) (float64, error)
	// LastPerformanceForExercise returns nil when the exercise has no sets outside excludeRunID.
	LastPerformanceForExercise(ctx context.Context, exerciseID, excludeRunID string) (*LastPerformance, error)
	// LastSetsForExercise returns the sets of the most recent run that logged the exercise, ordered by set order.
	LastSetsForExercise(ctx context.Context, exerciseID, excludeRunID string) ([]LoggedSet, error)
	CreateLoggedSet(ctx context.Context, set NewLoggedSet) (LoggedSet, error)
	DeleteLoggedSet(ctx context.Context, runID, exerciseID string, setOrder int) error
}

// ExerciseResolver looks up exercises referenced by session exercises.
type ExerciseResolver interface {
	Get(ctx context.Context, id string) (Exercise, error)
}

// sqliteHistoryRepository implements HistoryRepository on top of the histories and set_logs tables.
type sqliteHistoryRepository struct {
	db       *sqlite.Database
	logger   *slog.Logger
	metrics  *metrics.Manager
	notifier *setNotifier
}

func newSQLiteHistoryRepository(
	db *sqlite.Database,
	logger *slog.Logger,
	m *metrics.Manager,
) *sqliteHistoryRepository {
	return &sqliteHistoryRepository{
		db:       db,
		logger:   logger,
		metrics:  m,
		notifier: newSetNotifier(),
	}
}

// CreateRun starts a run of the session.
func (r *sqliteHistoryRepository) CreateRun(ctx context.Context, sessionID string, startTime time.Time) (Run, error) {
	defer r.metrics.ObserveStorage("create_run", time.Now())

	run := Run{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		StartTime: startTime.UTC().Truncate(time.Millisecond),
		EndTime:   nil,
		Note:      nil,
		DeletedAt: nil,
	}
	if _, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO histories (id, session_id, start_time)
		VALUES (?, ?, ?)`, run.ID, run.SessionID, formatTimestamp(run.StartTime)); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run, including soft-deleted ones.
func (r *sqliteHistoryRepository) GetRun(ctx context.Context, runID string) (Run, error) {
	var (
		run                          Run
		sessionID                    sql.NullString
		startTime                    string
		endTime, note, deletedAtNull sql.NullString
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, session_id, start_time, end_time, note, deleted_at
		FROM histories
		WHERE id = ?`, runID).Scan(&run.ID, &sessionID, &startTime, &endTime, &note, &deletedAtNull)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	run.SessionID = sessionID.String
	if note.Valid {
		run.Note = &note.String
	}
	if run.StartTime, err = parseTimestamp(startTime); err != nil {
		return Run{}, err
	}
	if run.EndTime, err = parseNullTimestamp(endTime); err != nil {
		return Run{}, err
	}
	if run.DeletedAt, err = parseNullTimestamp(deletedAtNull); err != nil {
		return Run{}, err
	}
	return run, nil
}

// CompleteRun sets the end time of an active run.
func (r *sqliteHistoryRepository) CompleteRun(ctx context.Context, runID string, endTime time.Time) error {
	defer r.metrics.ObserveStorage("complete_run", time.Now())

	res, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE histories
		SET end_time = ?
		WHERE id = ? AND deleted_at IS NULL`, formatTimestamp(endTime), runID)
	if err != nil {
		return fmt.Errorf("update run end time: %w", err)
	}
	return requireAffected(res)
}

// UpdateRunNote replaces the note of a run. A nil note clears it.
func (r *sqliteHistoryRepository) UpdateRunNote(ctx context.Context, runID string, note *string) error {
	res, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE histories
		SET note = ?
		WHERE id = ? AND deleted_at IS NULL`, note, runID)
	if err != nil {
		return fmt.Errorf("update run note: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteRun hides a run from history queries while keeping its sets.
func (r *sqliteHistoryRepository) SoftDeleteRun(ctx context.Context, runID string, at time.Time) error {
	res, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE histories
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`, formatTimestamp(at), runID)
	if err != nil {
		return fmt.Errorf("soft delete run: %w", err)
	}
	return requireAffected(res)
}

// MaxWeightForExercise returns the heaviest weight logged for the exercise in any other visible run.
func (r *sqliteHistoryRepository) MaxWeightForExercise(
	ctx context.Context,
	exerciseID, excludeRunID string,
) (float64, error) {
	defer r.metrics.ObserveStorage("max_weight_for_exercise", time.Now())

	var maxWeight float64
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sl.weight), 0)
		FROM set_logs sl
		JOIN histories h ON h.id = sl.history_id
		WHERE sl.exercise_id = ?
		  AND sl.history_id <> ?
		  AND h.deleted_at IS NULL`, exerciseID, excludeRunID).Scan(&maxWeight)
	if err != nil {
		return 0, fmt.Errorf("query max weight: %w", err)
	}
	return maxWeight, nil
}

// lastRunCTE selects the most recent visible run, other than the excluded one, that logged the exercise.
// Parameters are the excluded run ID and the exercise ID.
const lastRunCTE = `
	WITH last_run AS (
		SELECT h.id, h.start_time
		FROM histories h
		WHERE h.id <> ?
		  AND h.deleted_at IS NULL
		  AND EXISTS (SELECT 1 FROM set_logs x WHERE x.history_id = h.id AND x.exercise_id = ?)
		ORDER BY h.start_time DESC, h.id DESC
		LIMIT 1
	)`

// LastPerformanceForExercise aggregates the sets of the exercise in its most recent run.
func (r *sqliteHistoryRepository) LastPerformanceForExercise(
	ctx context.Context,
	exerciseID, excludeRunID string,
) (*LastPerformance, error) {
	defer r.metrics.ObserveStorage("last_performance_for_exercise", time.Now())

	var (
		perf      LastPerformance
		avgReps   float64
		startTime string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, lastRunCTE+`
		SELECT MAX(sl.weight), AVG(sl.reps), COUNT(*), lr.start_time
		FROM set_logs sl
		JOIN last_run lr ON lr.id = sl.history_id
		WHERE sl.exercise_id = ?
		GROUP BY lr.id`, excludeRunID, exerciseID, exerciseID).Scan(
		&perf.MaxWeight, &avgReps, &perf.SetsCount, &startTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no history is not an error.
	}
	if err != nil {
		return nil, fmt.Errorf("query last performance: %w", err)
	}
	perf.AvgReps = int(math.Round(avgReps))
	if perf.Date, err = parseTimestamp(startTime); err != nil {
		return nil, err
	}
	return &perf, nil
}

// LastSetsForExercise returns the sets of the exercise in its most recent run.
func (r *sqliteHistoryRepository) LastSetsForExercise(
	ctx context.Context,
	exerciseID, excludeRunID string,
) ([]LoggedSet, error) {
	defer r.metrics.ObserveStorage("last_sets_for_exercise", time.Now())

	sets, err := r.querySets(ctx, lastRunCTE+`
		SELECT sl.id, sl.history_id, sl.exercise_id, sl.weight, sl.reps, sl.set_order, sl.is_pr, sl.created_at
		FROM set_logs sl
		JOIN last_run lr ON lr.id = sl.history_id
		WHERE sl.exercise_id = ?
		ORDER BY sl.set_order`, excludeRunID, exerciseID, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("query last sets: %w", err)
	}
	return sets, nil
}

// ListLoggedSets returns all sets of a run ordered by exercise and set order.
func (r *sqliteHistoryRepository) ListLoggedSets(ctx context.Context, runID string) ([]LoggedSet, error) {
	sets, err := r.querySets(ctx, `
		SELECT id, history_id, exercise_id, weight, reps, set_order, is_pr, created_at
		FROM set_logs
		WHERE history_id = ?
		ORDER BY exercise_id, set_order`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run sets: %w", err)
	}
	return sets, nil
}

func (r *sqliteHistoryRepository) querySets(ctx context.Context, query string, args ...any) (_ []LoggedSet, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer closeRows(rows, &err)

	var sets []LoggedSet
	for rows.Next() {
		var (
			set       LoggedSet
			createdAt string
		)
		if err = rows.Scan(&set.ID, &set.RunID, &set.ExerciseID, &set.Weight, &set.Reps, &set.SetOrder, &set.IsPR,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scan logged set: %w", err)
		}
		if set.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sets, nil
}

// CreateLoggedSet persists a set against an active run.
func (r *sqliteHistoryRepository) CreateLoggedSet(ctx context.Context, newSet NewLoggedSet) (_ LoggedSet, err error) {
	defer r.metrics.ObserveStorage("create_logged_set", time.Now())

	set := LoggedSet{
		ID:         uuid.NewString(),
		RunID:      newSet.RunID,
		ExerciseID: newSet.ExerciseID,
		Weight:     newSet.Weight,
		Reps:       newSet.Reps,
		SetOrder:   newSet.SetOrder,
		IsPR:       newSet.IsPR,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return LoggedSet{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx, &err)()

	var active bool
	err = tx.QueryRowContext(ctx, `
		SELECT end_time IS NULL
		FROM histories
		WHERE id = ? AND deleted_at IS NULL`, set.RunID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return LoggedSet{}, fmt.Errorf("run %s: %w", set.RunID, ErrNotFound)
	}
	if err != nil {
		return LoggedSet{}, fmt.Errorf("query run: %w", err)
	}
	if !active {
		return LoggedSet{}, fmt.Errorf("run %s: %w", set.RunID, ErrRunCompleted)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO set_logs (id, history_id, exercise_id, weight, reps, set_order, is_pr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		set.ID, set.RunID, set.ExerciseID, set.Weight, set.Reps, set.SetOrder, set.IsPR,
		formatTimestamp(set.CreatedAt)); err != nil {
		return LoggedSet{}, fmt.Errorf("insert logged set: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return LoggedSet{}, fmt.Errorf("commit transaction: %w", err)
	}
	r.notifier.notify(set.RunID)
	return set, nil
}

// DeleteLoggedSet removes the set identified by run, exercise and set order.
func (r *sqliteHistoryRepository) DeleteLoggedSet(
	ctx context.Context,
	runID, exerciseID string,
	setOrder int,
) (err error) {
	defer r.metrics.ObserveStorage("delete_logged_set", time.Now())

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx, &err)()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM set_logs
		WHERE history_id = ? AND exercise_id = ? AND set_order = ?`, runID, exerciseID, setOrder)
	if err != nil {
		return fmt.Errorf("delete logged set: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	r.notifier.notify(runID)
	return nil
}

// ObserveRunSets streams snapshots of the sets of a run: one on subscription and one after every write to the
// run. The channel is closed once ctx is done. Snapshots are coalesced when the reader falls behind.
func (r *sqliteHistoryRepository) ObserveRunSets(ctx context.Context, runID string) <-chan []LoggedSet {
	out := make(chan []LoggedSet)
	changed, unsubscribe := r.notifier.subscribe(runID)
	r.logger.LogAttrs(ctx, slog.LevelDebug, "observing run sets",
		slog.String("run_id", runID), slog.Int("observers", r.notifier.subscribers(runID)))
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			sets, err := r.ListLoggedSets(ctx, runID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load run sets for observer",
					slog.String("run_id", runID), slog.Any("error", err))
			} else {
				select {
				case out <- sets:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
