package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
	"github.com/google/uuid"
)

// sqlitePlanRepository stores programs, their sessions and the planned exercises of each session.
type sqlitePlanRepository struct {
	db *sqlite.Database
}

func newSQLitePlanRepository(db *sqlite.Database) *sqlitePlanRepository {
	return &sqlitePlanRepository{db: db}
}

// CreateProgram adds a program placed after the existing ones.
func (r *sqlitePlanRepository) CreateProgram(ctx context.Context, name string) (Program, error) {
	p := Program{ID: uuid.NewString(), Name: name, Position: 0}
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO programs (id, name, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM programs))
		RETURNING position`, p.ID, p.Name).Scan(&p.Position)
	if err != nil {
		return Program{}, fmt.Errorf("insert program: %w", err)
	}
	return p, nil
}

// CreateSession adds a session at the end of the program.
func (r *sqlitePlanRepository) CreateSession(ctx context.Context, programID, name string) (Session, error) {
	s := Session{ID: uuid.NewString(), ProgramID: programID, Name: name, Position: 0}
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO sessions (id, program_id, name, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM sessions WHERE program_id = ?))
		RETURNING position`, s.ID, s.ProgramID, s.Name, s.ProgramID).Scan(&s.Position)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// GetSession retrieves a session by ID.
func (r *sqlitePlanRepository) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, program_id, name, position
		FROM sessions
		WHERE id = ?`, id).Scan(&s.ID, &s.ProgramID, &s.Name, &s.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// AddSessionExercise plans an exercise at the end of the session.
func (r *sqlitePlanRepository) AddSessionExercise(ctx context.Context, se SessionExercise) (SessionExercise, error) {
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO session_exercises (id, session_id, exercise_id, sets_target, reps_target, weight_target, position)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM session_exercises WHERE session_id = ?))
		RETURNING position`,
		se.ID, se.SessionID, se.ExerciseID, se.SetsTarget, se.RepsTarget, se.WeightTarget, se.SessionID,
	).Scan(&se.Position)
	if err != nil {
		return SessionExercise{}, fmt.Errorf("insert session exercise: %w", err)
	}
	return se, nil
}

// ListSessionExercises returns the planned exercises of a session ordered by position.
func (r *sqlitePlanRepository) ListSessionExercises(
	ctx context.Context,
	sessionID string,
) (_ []SessionExercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, session_id, exercise_id, sets_target, reps_target, weight_target, position
		FROM session_exercises
		WHERE session_id = ?
		ORDER BY position, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session exercises: %w", err)
	}
	defer closeRows(rows, &err)

	var sessionExercises []SessionExercise
	for rows.Next() {
		var (
			se           SessionExercise
			repsTarget   sql.NullString
			weightTarget sql.NullFloat64
		)
		if err = rows.Scan(&se.ID, &se.SessionID, &se.ExerciseID, &se.SetsTarget, &repsTarget, &weightTarget,
			&se.Position); err != nil {
			return nil, fmt.Errorf("scan session exercise: %w", err)
		}
		if repsTarget.Valid {
			se.RepsTarget = &repsTarget.String
		}
		if weightTarget.Valid {
			se.WeightTarget = &weightTarget.Float64
		}
		sessionExercises = append(sessionExercises, se)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sessionExercises, nil
}
