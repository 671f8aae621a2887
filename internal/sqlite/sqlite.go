package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	_ "embed"
)

//go:embed schema.sql
var schemaDefinition string

// Database holds a single-connection writer pool and a multi-connection reader pool to the same SQLite file.
type Database struct {
	ReadWrite *sql.DB
	ReadOnly  *sql.DB
	logger    *slog.Logger

	stopOptimizer context.CancelFunc
	optimizerDone chan struct{}
}

// NewDatabase connects to the database at url and migrates it to the embedded schema.
//
// Writes are funnelled through one connection so that SQLite never reports SQLITE_BUSY between our own writers, see
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995. Use ":memory:" for a private in-memory
// database, which is what the tests do.
//
// A background optimizer runs until ctx is cancelled or the database is closed.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(ctx, url, logger)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		return nil, errors.Join(fmt.Errorf("migrate to schema: %w", err), db.Close())
	}

	var optimizerCtx context.Context
	optimizerCtx, db.stopOptimizer = context.WithCancel(ctx)
	db.optimizerDone = make(chan struct{})
	go func() {
		defer close(db.optimizerDone)
		db.startDatabaseOptimizer(optimizerCtx)
	}()

	return db, nil
}

//nolint:gochecknoglobals // the driver may only be registered once per process.
var registerDriver sync.Once

const optimizedDriver = "sqlite3optimized"

// registerOptimizedDriver registers a driver that runs performance pragmas on every new connection.
func registerOptimizedDriver() {
	sql.Register(optimizedDriver,
		&sqlite3.SQLiteDriver{
			Extensions: nil,
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if _, err := conn.Exec(
					// Temporary tables and indices live in memory.
					"PRAGMA temp_store = memory;"+
						// Memory-mapped I/O avoids a read syscall per page.
						"PRAGMA mmap_size = 30000000000;", nil); err != nil {
					return fmt.Errorf("exec optimization pragmas: %w", err)
				}
				return nil
			},
		})
}

// dsn builds the data source names for the writer and reader pools.
//
// Options without a leading underscore are SQLite URI parameters, see https://www.sqlite.org/uri.html. The
// underscored ones are documented at https://pkg.go.dev/github.com/mattn/go-sqlite3#SQLiteDriver.Open.
func dsn(url string) (string, string) {
	readWriteMode, readOnlyMode := "mode=rwc", "mode=ro"
	if strings.Contains(url, ":memory:") {
		// Shared cache lets both pools see the same data while a random name isolates parallel tests.
		// Read-only access is then enforced by _query_only alone.
		url = rand.Text()
		readWriteMode, readOnlyMode = "mode=memory&cache=shared", "mode=memory&cache=shared"
	}
	common := strings.Join([]string{
		"_loc=auto",
		"_defer_foreign_keys=1",
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
	}, "&")

	readWrite := fmt.Sprintf("file:%s?%s&_txlock=immediate&%s", url, readWriteMode, common)
	readOnly := fmt.Sprintf("file:%s?%s&_txlock=deferred&_query_only=true&%s", url, readOnlyMode, common)
	return readWrite, readOnly
}

func openPool(ctx context.Context, dataSourceName string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open(optimizedDriver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pool.SetMaxOpenConns(maxConns)
	pool.SetMaxIdleConns(maxConns)
	pool.SetConnMaxLifetime(time.Hour)
	pool.SetConnMaxIdleTime(time.Hour)

	// sql.DB is lazy so ping to establish and configure a connection.
	if err = pool.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping: %w", err), pool.Close())
	}
	return pool, nil
}

func connect(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	registerDriver.Do(registerOptimizedDriver)

	readWriteDSN, readOnlyDSN := dsn(url)

	readWriteDB, err := openPool(ctx, readWriteDSN, 1)
	if err != nil {
		return nil, fmt.Errorf("open read-write database: %w", err)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "opened database", slog.String("sqlDsn", readWriteDSN))

	const maxReadConns = 10
	readDB, err := openPool(ctx, readOnlyDSN, maxReadConns)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open read database: %w", err), readWriteDB.Close())
	}

	return &Database{
		ReadWrite:     readWriteDB,
		ReadOnly:      readDB,
		logger:        logger,
		stopOptimizer: nil,
		optimizerDone: nil,
	}, nil
}

// Ping verifies that both pools can reach the database.
func (db *Database) Ping(ctx context.Context) error {
	if err := db.ReadWrite.PingContext(ctx); err != nil {
		return fmt.Errorf("ping read-write: %w", err)
	}
	if err := db.ReadOnly.PingContext(ctx); err != nil {
		return fmt.Errorf("ping read-only: %w", err)
	}
	return nil
}

// Close stops the optimizer and closes the database connections.
func (db *Database) Close() error {
	if db.stopOptimizer != nil {
		db.stopOptimizer()
		<-db.optimizerDone
	}
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}
