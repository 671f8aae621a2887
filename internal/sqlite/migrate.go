package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migrateTo makes the live schema match schemaDefinition with a declarative migration.
//
// The target schema is created in an attached in-memory database and diffed against the live one. Removed tables
// are dropped, new tables created and changed tables rebuilt using the 12-step procedure from
// https://www.sqlite.org/lang_altertable.html#otheralter. Triggers and indexes are synchronised afterwards.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach schema target: %w", err)
	}
	defer detach()

	// Foreign keys stay off while tables are rebuilt. The pragma is a no-op inside a transaction.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, fmt.Errorf("re-enable foreign keys: %w", fkErr))
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	m := migration{tx: tx, logger: db.logger}
	if err = m.tables(ctx); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	for _, typ := range []string{"trigger", "index"} {
		if err = m.entities(ctx, typ); err != nil {
			return fmt.Errorf("migrate %ss: %w", typ, err)
		}
	}
	if err = m.checkForeignKeys(ctx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachSchemaTarget attaches an in-memory database named schemaTarget holding the wanted schema. The returned
// function detaches it again.
func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// The shared cache database lives as long as one connection is open, so target is closed only after attaching.
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target",
				slog.Any("error", closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", name); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target",
				slog.Any("error", detachErr))
		}
	}, nil
}

// migration runs the steps of one schema migration inside tx.
type migration struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// schemaEntry is a row of sqlite_schema present in both the live and the target database.
type schemaEntry struct {
	name    string
	liveSQL string
	newSQL  string
}

// Internal SQLite objects and Litestream bookkeeping tables are never touched.
const ignoredNames = `AND %[1]s.name NOT LIKE 'sqlite_%%' AND %[1]s.name NOT LIKE '_litestream_%%'`

func (m migration) exec(ctx context.Context, msg string, query string) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := m.tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

// removed lists the names of entities of typ that only exist in the live schema.
func (m migration) removed(ctx context.Context, typ string) ([]string, error) {
	return queryAll(ctx, m.tx, scanString, `SELECT live.name
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND target.type IS NULL `+fmt.Sprintf(ignoredNames, "live"), typ)
}

// added lists the SQL creating entities of typ that only exist in the target schema.
func (m migration) added(ctx context.Context, typ string) ([]string, error) {
	return queryAll(ctx, m.tx, scanString, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = ?
  AND live.type IS NULL `+fmt.Sprintf(ignoredNames, "target"), typ)
}

// changed lists the entities of typ whose definition differs. A table rename quotes the table name in the stored
// SQL, so quotes are ignored when comparing.
func (m migration) changed(ctx context.Context, typ string) ([]schemaEntry, error) {
	return queryAll(ctx, m.tx, func(rows *sql.Rows) (schemaEntry, error) {
		var e schemaEntry
		err := rows.Scan(&e.name, &e.liveSQL, &e.newSQL)
		return e, err //nolint:wrapcheck // wrapped by queryAll.
	}, `SELECT live.name, live.sql, target.sql
FROM sqlite_schema AS live
         JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '') `+fmt.Sprintf(ignoredNames, "live"), typ)
}

func (m migration) tables(ctx context.Context) error {
	removed, err := m.removed(ctx, "table")
	if err != nil {
		return fmt.Errorf("query removed tables: %w", err)
	}
	for _, table := range removed {
		if err = m.exec(ctx, "drop table", fmt.Sprintf("DROP TABLE %s", table)); err != nil {
			return err
		}
	}

	added, err := m.added(ctx, "table")
	if err != nil {
		return fmt.Errorf("query added tables: %w", err)
	}
	for _, createSQL := range added {
		if err = m.exec(ctx, "create table", createSQL); err != nil {
			return err
		}
	}

	changed, err := m.changed(ctx, "table")
	if err != nil {
		return fmt.Errorf("query changed tables: %w", err)
	}
	for _, table := range changed {
		if err = m.rebuildTable(ctx, table); err != nil {
			return fmt.Errorf("rebuild table %s: %w", table.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the common columns over, drops the old
// table and renames the new one into place.
func (m migration) rebuildTable(ctx context.Context, table schemaEntry) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", table.name),
		slog.String("live_sql", table.liveSQL),
		slog.String("new_sql", table.newSQL))

	tempName := table.name + "_migration_temp"
	if err := m.exec(ctx, "create temporary table",
		strings.Replace(table.newSQL, table.name, tempName, 1)); err != nil {
		return err
	}

	// Column names are quoted in case they are SQLite keywords.
	columns, err := queryAll(ctx, m.tx, scanString, `SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS live
         JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table_name", table.name))
	if err != nil {
		return fmt.Errorf("query common columns: %w", err)
	}
	common := strings.Join(columns, ", ")

	steps := []struct{ msg, query string }{
		{"copy data", fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, common, common, table.name)},
		{"drop old table", fmt.Sprintf("DROP TABLE %s", table.name)},
		{"rename new table", fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, table.name)},
	}
	for _, step := range steps {
		if err = m.exec(ctx, step.msg, step.query); err != nil {
			return err
		}
	}
	return nil
}

// entities synchronises triggers or indexes.
func (m migration) entities(ctx context.Context, typ string) error {
	upper := strings.ToUpper(typ)

	removed, err := m.removed(ctx, typ)
	if err != nil {
		return fmt.Errorf("query removed: %w", err)
	}
	for _, name := range removed {
		if err = m.exec(ctx, "drop "+typ, fmt.Sprintf("DROP %s %s", upper, name)); err != nil {
			return err
		}
	}

	added, err := m.added(ctx, typ)
	if err != nil {
		return fmt.Errorf("query added: %w", err)
	}
	for _, createSQL := range added {
		if err = m.exec(ctx, "create "+typ, createSQL); err != nil {
			return err
		}
	}

	changed, err := m.changed(ctx, typ)
	if err != nil {
		return fmt.Errorf("query changed: %w", err)
	}
	for _, entity := range changed {
		if err = m.exec(ctx, "drop changed "+typ, fmt.Sprintf("DROP %s %s", upper, entity.name)); err != nil {
			return err
		}
		if err = m.exec(ctx, "recreate changed "+typ, entity.newSQL); err != nil {
			return err
		}
	}
	return nil
}

// checkForeignKeys fails when the rebuilt tables contain dangling references.
func (m migration) checkForeignKeys(ctx context.Context) error {
	violations, err := queryAll(ctx, m.tx, scanString, `SELECT "table" FROM pragma_foreign_key_check`)
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign key check: violations in tables %s", strings.Join(violations, ", "))
	}
	return nil
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err //nolint:wrapcheck // wrapped by queryAll.
}

// queryAll runs query in tx and collects each row with scan.
func queryAll[T any](
	ctx context.Context,
	tx *sql.Tx,
	scan func(*sql.Rows) (T, error),
	query string,
	args ...any,
) (_ []T, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	var results []T
	for rows.Next() {
		var v T
		if v, err = scan(rows); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}
