package workout

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// repository bundles the SQLite repositories used by Service.
type repository struct {
	exercises *sqliteExerciseRepository
	plans     *sqlitePlanRepository
	history   *sqliteHistoryRepository
}

func newRepository(db *sqlite.Database, logger *slog.Logger, m *metrics.Manager) *repository {
	return &repository{
		exercises: newSQLiteExerciseRepository(db),
		plans:     newSQLitePlanRepository(db),
		history:   newSQLiteHistoryRepository(db, logger, m),
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil //nolint:nilnil // NULL timestamp.
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// rollback returns a function for defer that rolls back tx unless it was committed, joining failures into errp.
func rollback(tx *sql.Tx, errp *error) func() {
	return func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			*errp = errors.Join(*errp, fmt.Errorf("rollback transaction: %w", err))
		}
	}
}

// closeRows closes rows and joins a close failure into errp.
func closeRows(rows *sql.Rows, errp *error) {
	if err := rows.Close(); err != nil {
		*errp = errors.Join(*errp, fmt.Errorf("close rows: %w", err))
	}
}

// requireAffected maps a write that touched no rows to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
