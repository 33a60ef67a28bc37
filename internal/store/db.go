// Package store is the SQLite engine for the path store.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/frecency-dev/frecency/internal/store/storedefs"
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a frecency SQLite database.
type DB struct {
	*sql.DB
	Path string

	// Clock is the time source used to score entries at fetch time.
	Clock func() time.Time
}

var _ storedefs.Store = (*DB)(nil)

// pragmas are applied by the driver to every new connection, so a connection
// replaced by the pool is configured like the first one.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Open opens (or creates) the SQLite database at the given path and configures
// pragmas. The parent directory must already exist. Schema is not created;
// see EnsureSchema.
func Open(path string) (*DB, error) {
	if err := storedefs.ProbeLocation(path); err != nil {
		return nil, err
	}

	// _txlock=immediate makes every transaction take the write lock up front,
	// so AddVisit's read-then-write is serialized across processes.
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?_txlock=immediate&" + pragmas
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", storedefs.ErrStorageUnavailable, err)
	}
	return newDB(sqlDB, path)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newDB(sqlDB, ":memory:")
}

func newDB(sqlDB *sql.DB, path string) (*DB, error) {
	// One connection keeps in-memory databases consistent.
	sqlDB.SetMaxOpenConns(1)

	// sql.Open is lazy; connect now so bad locations and pragmas fail here.
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: connect sqlite: %v", storedefs.ErrStorageUnavailable, err)
	}
	return &DB{DB: sqlDB, Path: path, Clock: time.Now}, nil
}
