// Package storedefs contains definitions of the path store API.
//
// It is a separate package so that the command layer and the engine-neutral
// test suite can depend on the API without depending on a concrete engine.
package storedefs

import (
	"errors"
	"fmt"
	"math"
	"os"
)

// Store is implemented by every storage engine.
type Store interface {
	// EnsureSchema creates the tables or buckets if absent. Safe to repeat.
	EnsureSchema() error
	// SchemaVersion returns the applied schema version, 0 when uninitialized.
	SchemaVersion() (int, error)

	AddVisit(path string, nowMillis uint64) error
	Entry(path string) (*Entry, error)
	FetchScores(limit int) ([]Scored, error)
	FetchLastVisit(limit int) ([]Scored, error)
	RemovePaths(paths []string) error

	Close() error
}

// Entry is the persisted record for one tracked path.
type Entry struct {
	Path       string
	VisitCount uint64
	LastVisit  uint64 // milliseconds since the Unix epoch
}

// Scored is an Entry with its frecency score at fetch time.
type Scored struct {
	Entry
	Score float64
}

var (
	// ErrStorageUnavailable is returned when the backing location cannot be
	// opened or created.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSchemaMissing signals a write against an uninitialized store. Engines
	// catch it internally and never return it from AddVisit.
	ErrSchemaMissing = errors.New("schema missing")
	// ErrInvalidInput is returned for malformed arguments such as an empty path.
	ErrInvalidInput = errors.New("invalid input")
)

// MaxMillis is the latest visit time an engine accepts. Timestamps are
// stored as signed 64-bit integers by SQLite.
const MaxMillis = math.MaxInt64

// CheckVisit validates the arguments of AddVisit.
func CheckVisit(path string, nowMillis uint64) error {
	if path == "" {
		return fmt.Errorf("add visit: %w: empty path", ErrInvalidInput)
	}
	if nowMillis > MaxMillis {
		return fmt.Errorf("add visit: %w: timestamp %d out of range", ErrInvalidInput, nowMillis)
	}
	return nil
}

// StorageError wraps any other failure of the underlying engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, err itself if it is already a StorageError or
// one of the sentinel kinds, and a StorageError for op otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) ||
		errors.Is(err, ErrSchemaMissing) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ProbeLocation checks that path can be opened for writing, creating the file
// if needed. It does not create parent directories.
func ProbeLocation(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return f.Close()
}
