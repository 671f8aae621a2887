package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
	"github.com/google/uuid"
)

// sqliteExerciseRepository stores the exercise catalog.
type sqliteExerciseRepository struct {
	db *sqlite.Database
}

func newSQLiteExerciseRepository(db *sqlite.Database) *sqliteExerciseRepository {
	return &sqliteExerciseRepository{db: db}
}

// Get retrieves a single exercise by ID.
func (r *sqliteExerciseRepository) Get(ctx context.Context, id string) (Exercise, error) {
	var exercise Exercise
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, name, equipment
		FROM exercises
		WHERE id = ?`, id).Scan(&exercise.ID, &exercise.Name, &exercise.Equipment)
	if errors.Is(err, sql.ErrNoRows) {
		return Exercise{}, ErrNotFound
	}
	if err != nil {
		return Exercise{}, fmt.Errorf("query exercise: %w", err)
	}

	if exercise.Muscles, err = r.fetchMuscles(ctx, exercise.ID); err != nil {
		return Exercise{}, fmt.Errorf("fetch muscles for exercise %s: %w", exercise.ID, err)
	}
	return exercise, nil
}

// List returns all exercises ordered by name.
func (r *sqliteExerciseRepository) List(ctx context.Context) (_ []Exercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT e.id, e.name, e.equipment, COALESCE(group_concat(em.muscle, ','), '')
		FROM exercises e
		LEFT JOIN exercise_muscles em ON em.exercise_id = e.id
		GROUP BY e.id
		ORDER BY e.name`)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer closeRows(rows, &err)

	var exercises []Exercise
	for rows.Next() {
		var (
			exercise Exercise
			muscles  string
		)
		if err = rows.Scan(&exercise.ID, &exercise.Name, &exercise.Equipment, &muscles); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		if muscles != "" {
			exercise.Muscles = strings.Split(muscles, ",")
			slices.Sort(exercise.Muscles)
		}
		exercises = append(exercises, exercise)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

func (r *sqliteExerciseRepository) fetchMuscles(ctx context.Context, exerciseID string) (_ []string, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT muscle
		FROM exercise_muscles
		WHERE exercise_id = ?
		ORDER BY muscle`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("query muscles: %w", err)
	}
	defer closeRows(rows, &err)

	var muscles []string
	for rows.Next() {
		var muscle string
		if err = rows.Scan(&muscle); err != nil {
			return nil, fmt.Errorf("scan muscle: %w", err)
		}
		muscles = append(muscles, muscle)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate muscle rows: %w", err)
	}
	return muscles, nil
}

// Create adds a new exercise with its muscles. A new ID is generated when ex.ID is empty.
func (r *sqliteExerciseRepository) Create(ctx context.Context, ex Exercise) (_ Exercise, err error) {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return Exercise{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx, &err)()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO exercises (id, name, equipment)
		VALUES (?, ?, ?)`, ex.ID, ex.Name, ex.Equipment); err != nil {
		return Exercise{}, fmt.Errorf("insert exercise: %w", err)
	}

	// Muscles form a set.
	slices.Sort(ex.Muscles)
	ex.Muscles = slices.Compact(ex.Muscles)
	for _, muscle := range ex.Muscles {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO exercise_muscles (exercise_id, muscle)
			VALUES (?, ?)`, ex.ID, muscle); err != nil {
			return Exercise{}, fmt.Errorf("insert muscle %s: %w", muscle, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Exercise{}, fmt.Errorf("commit transaction: %w", err)
	}
	return ex, nil
}
