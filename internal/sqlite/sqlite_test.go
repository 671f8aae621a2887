package sqlite_test

import (
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
)

func TestNewDatabase(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))

	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	if err = db.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	for _, table := range []string{
		"exercises", "exercise_muscles", "programs", "sessions", "session_exercises", "histories", "set_logs",
	} {
		var count int
		if err = db.ReadOnly.QueryRowContext(ctx,
			"SELECT count(*) FROM sqlite_schema WHERE type = 'table' AND name = ?", table).Scan(&count); err != nil {
			t.Fatalf("query schema: %v", err)
		}
		if count != 1 {
			t.Errorf("table %s missing from schema", table)
		}
	}

	if _, err = db.ReadOnly.ExecContext(ctx,
		"INSERT INTO programs (id, name) VALUES ('00000000-0000-0000-0000-000000000000', 'PPL')"); err == nil {
		t.Error("expected read-only pool to reject writes")
	}
	if _, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO programs (id, name) VALUES ('00000000-0000-0000-0000-000000000000', 'PPL')"); err != nil {
		t.Fatalf("insert through read-write pool: %v", err)
	}
	var name string
	if err = db.ReadOnly.QueryRowContext(ctx, "SELECT name FROM programs").Scan(&name); err != nil {
		t.Fatalf("read back through read-only pool: %v", err)
	}
	if name != "PPL" {
		t.Errorf("name = %q, want %q", name, "PPL")
	}
}

func TestNewDatabase_setLogConstraints(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	const (
		exerciseID = "11111111-1111-1111-1111-111111111111"
		historyID  = "22222222-2222-2222-2222-222222222222"
	)
	for _, q := range []string{
		"INSERT INTO exercises (id, name) VALUES ('" + exerciseID + "', 'Squat')",
		"INSERT INTO histories (id, start_time) VALUES ('" + historyID + "', '2024-01-01T10:00:00.000Z')",
	} {
		if _, err = db.ReadWrite.ExecContext(ctx, q); err != nil {
			t.Fatalf("setup %q: %v", q, err)
		}
	}

	insert := `INSERT INTO set_logs (id, history_id, exercise_id, weight, reps, set_order, is_pr)
		VALUES (?, ?, ?, ?, ?, ?, 0)`
	tests := []struct {
		name    string
		id      string
		weight  float64
		reps    int
		order   int
		wantErr bool
	}{
		{name: "valid", id: "33333333-3333-3333-3333-333333333331", weight: 60, reps: 10, order: 1},
		{name: "duplicate set order", id: "33333333-3333-3333-3333-333333333332", weight: 60, reps: 10, order: 1,
			wantErr: true},
		{name: "zero reps", id: "33333333-3333-3333-3333-333333333333", weight: 60, reps: 0, order: 2,
			wantErr: true},
		{name: "negative weight", id: "33333333-3333-3333-3333-333333333334", weight: -1, reps: 5, order: 3,
			wantErr: true},
		{name: "zero set order", id: "33333333-3333-3333-3333-333333333335", weight: 60, reps: 5, order: 0,
			wantErr: true},
		{name: "bodyweight", id: "33333333-3333-3333-3333-333333333336", weight: 0, reps: 12, order: 4},
	}
	for _, tt := range tests {
		_, err = db.ReadWrite.ExecContext(ctx, insert, tt.id, historyID, exerciseID, tt.weight, tt.reps, tt.order)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
