package sqlite

import (
	"log/slog"
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
)

func TestDatabase_migrateTo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		schemas []string
		queries []string
		wantErr bool
	}{
		{
			name:    "empty schema",
			schemas: []string{""},
			queries: []string{"SELECT * FROM sqlite_schema"},
		},
		{
			name:    "create table",
			schemas: []string{"CREATE TABLE set_logs (id TEXT PRIMARY KEY, reps INTEGER)"},
			queries: []string{"INSERT INTO set_logs (id, reps) VALUES ('a', 8)", "SELECT * FROM set_logs"},
		},
		{
			name: "drop table",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, reps INTEGER)",
				"",
			},
			queries: []string{"INSERT INTO set_logs (id, reps) VALUES ('a', 8)"},
			wantErr: true,
		},
		{
			name: "add column keeps rows",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY)",
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, is_pr INTEGER NOT NULL DEFAULT 0)",
			},
			queries: []string{"INSERT INTO set_logs (id, is_pr) VALUES ('a', 1)"},
		},
		{
			name: "remove column",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, note TEXT)",
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY)",
			},
			queries: []string{"INSERT INTO set_logs (id, note) VALUES ('a', 'x')"},
			wantErr: true,
		},
		{
			name: "add check constraint",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, reps INTEGER)",
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, reps INTEGER CHECK (reps >= 1))",
			},
			queries: []string{"INSERT INTO set_logs (id, reps) VALUES ('a', 0)"},
			wantErr: true,
		},
		{
			name: "create index",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, exercise_id TEXT); " +
					"CREATE INDEX set_logs_exercise_idx ON set_logs (exercise_id)",
			},
			queries: []string{"DROP INDEX set_logs_exercise_idx"},
		},
		{
			name: "drop index",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, exercise_id TEXT); " +
					"CREATE INDEX set_logs_exercise_idx ON set_logs (exercise_id)",
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, exercise_id TEXT)",
			},
			queries: []string{"DROP INDEX set_logs_exercise_idx"},
			wantErr: true,
		},
		{
			name: "change unique index",
			schemas: []string{
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, history_id TEXT, set_order INTEGER); " +
					"CREATE UNIQUE INDEX set_logs_order_idx ON set_logs (history_id)",
				"CREATE TABLE set_logs (id TEXT PRIMARY KEY, history_id TEXT, set_order INTEGER); " +
					"CREATE UNIQUE INDEX set_logs_order_idx ON set_logs (history_id, set_order)",
			},
			queries: []string{
				"INSERT INTO set_logs (id, history_id, set_order) VALUES ('a', 'h', 1)",
				"INSERT INTO set_logs (id, history_id, set_order) VALUES ('b', 'h', 2)",
			},
		},
		{
			name: "create trigger",
			schemas: []string{
				`CREATE TABLE histories (id TEXT PRIMARY KEY);
                 CREATE TRIGGER histories_immutable AFTER INSERT ON histories BEGIN SELECT RAISE(FAIL, 'no'); END;`,
			},
			queries: []string{"INSERT INTO histories (id) VALUES ('h')"},
			wantErr: true,
		},
		{
			name: "delete trigger",
			schemas: []string{
				`CREATE TABLE histories (id TEXT PRIMARY KEY);
                 CREATE TRIGGER histories_immutable AFTER INSERT ON histories BEGIN SELECT RAISE(FAIL, 'no'); END;`,
				"CREATE TABLE histories (id TEXT PRIMARY KEY)",
			},
			queries: []string{"INSERT INTO histories (id) VALUES ('h')"},
		},
		{
			name: "full schema twice is idempotent",
			schemas: []string{schemaDefinition, schemaDefinition},
			queries: []string{"SELECT count(*) FROM set_logs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
			db, err := connect(ctx, ":memory:", logger)
			if err != nil {
				t.Fatalf("connect: %v", err)
			}
			t.Cleanup(func() {
				if err = db.Close(); err != nil {
					t.Errorf("close database: %v", err)
				}
			})

			for _, schema := range tt.schemas {
				logger.LogAttrs(ctx, slog.LevelDebug, "migrating", slog.String("schema", schema))
				if err = db.migrateTo(ctx, schema); err != nil {
					t.Fatalf("migrateTo: %v", err)
				}
			}

			for _, query := range tt.queries {
				_, err = db.ReadWrite.ExecContext(ctx, query)
				if tt.wantErr && err == nil {
					t.Errorf("expected error for query %q", query)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("unexpected error for query %q: %v", query, err)
				}
			}
		})
	}
}
