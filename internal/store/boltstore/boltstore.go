// Package boltstore is the bbolt engine for the path store.
//
// Each path is a key in the paths bucket. Its value holds the visit count and
// the last visit time as two big-endian uint64s. bbolt holds an exclusive
// file lock for the lifetime of a handle, so writers in different processes
// are serialized.
package boltstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/frecency-dev/frecency/internal/frecency"
	"github.com/frecency-dev/frecency/internal/store/storedefs"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketPaths = "paths"
	bucketMeta  = "meta"

	keySchemaVersion = "schema_version"

	// SchemaVersion is the version written by EnsureSchema.
	SchemaVersion = 1
)

// DefaultLockTimeout is how long Open waits for another process to release
// the database file.
const DefaultLockTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// LockTimeout bounds the wait for the file lock. Zero means
	// DefaultLockTimeout.
	LockTimeout time.Duration
	// Clock is the time source used to score entries at fetch time. Nil means
	// time.Now.
	Clock func() time.Time
}

// DB is a path store backed by a bbolt file.
type DB struct {
	db    *bolt.DB
	Path  string
	clock func() time.Time
}

var _ storedefs.Store = (*DB)(nil)

// Open opens (or creates) the bbolt file at path. The parent directory must
// already exist. Buckets are not created; see EnsureSchema.
func Open(path string, opts Options) (*DB, error) {
	if err := storedefs.ProbeLocation(path); err != nil {
		return nil, err
	}
	timeout := opts.LockTimeout
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt: %v", storedefs.ErrStorageUnavailable, err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DB{db: bdb, Path: path, clock: clock}, nil
}

// Close releases the file lock.
func (s *DB) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the buckets if absent and records the schema version.
func (s *DB) EnsureSchema() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketPaths)); err != nil {
			return fmt.Errorf("create %s bucket: %w", bucketPaths, err)
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return fmt.Errorf("create %s bucket: %w", bucketMeta, err)
		}
		if meta.Get([]byte(keySchemaVersion)) != nil {
			return nil
		}
		return meta.Put([]byte(keySchemaVersion), marshalUint64(SchemaVersion))
	})
	return storedefs.Wrap("ensure schema", err)
}

// SchemaVersion returns the recorded schema version, or 0 if the store has
// not been initialized.
func (s *DB) SchemaVersion() (int, error) {
	var v int
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil {
			return nil
		}
		if data := meta.Get([]byte(keySchemaVersion)); len(data) == 8 {
			v = int(binary.BigEndian.Uint64(data))
		}
		return nil
	})
	return v, storedefs.Wrap("schema version", err)
}

// AddVisit records a visit to path at nowMillis. If the buckets do not exist
// yet, they are created and the write retried once.
func (s *DB) AddVisit(path string, nowMillis uint64) error {
	if err := storedefs.CheckVisit(path, nowMillis); err != nil {
		return err
	}

	err := s.addVisit(path, nowMillis)
	if errors.Is(err, storedefs.ErrSchemaMissing) {
		if err := s.EnsureSchema(); err != nil {
			return err
		}
		err = s.addVisit(path, nowMillis)
		if errors.Is(err, storedefs.ErrSchemaMissing) {
			return &storedefs.StorageError{Op: "add visit", Err: err}
		}
	}
	return storedefs.Wrap("add visit", err)
}

func (s *DB) addVisit(path string, nowMillis uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPaths))
		if b == nil {
			return storedefs.ErrSchemaMissing
		}
		k := []byte(path)
		var existing *storedefs.Entry
		if v := b.Get(k); v != nil {
			e, err := unmarshalEntry(k, v)
			if err != nil {
				return err
			}
			existing = &e
		}
		e := frecency.RecordVisit(existing, path, nowMillis)
		return b.Put(k, marshalEntry(e))
	})
}

// Entry returns the stored statistics for path, or nil if it is not tracked.
func (s *DB) Entry(path string) (*storedefs.Entry, error) {
	var entry *storedefs.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPaths))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}
		e, err := unmarshalEntry([]byte(path), v)
		if err != nil {
			return err
		}
		entry = &e
		return nil
	})
	return entry, storedefs.Wrap("get entry", err)
}

// FetchScores returns entries ordered by frecency score at the current time,
// highest first. A positive limit truncates the result.
func (s *DB) FetchScores(limit int) ([]storedefs.Scored, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, storedefs.Wrap("fetch scores", err)
	}
	scored := frecency.Rate(entries, frecency.NowMillis(s.clock()))
	slices.SortFunc(scored, frecency.ByScore)
	return frecency.Truncate(scored, limit), nil
}

// FetchLastVisit returns entries ordered by last visit, most recent first.
func (s *DB) FetchLastVisit(limit int) ([]storedefs.Scored, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, storedefs.Wrap("fetch last visit", err)
	}
	scored := frecency.Rate(entries, frecency.NowMillis(s.clock()))
	slices.SortFunc(scored, frecency.ByLastVisit)
	return frecency.Truncate(scored, limit), nil
}

func (s *DB) entries() ([]storedefs.Entry, error) {
	var entries []storedefs.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPaths))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			e, err := unmarshalEntry(k, v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// RemovePaths deletes every listed path in a single transaction.
func (s *DB) RemovePaths(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPaths))
		if b == nil {
			return nil
		}
		for _, p := range paths {
			if err := b.Delete([]byte(p)); err != nil {
				return fmt.Errorf("delete %s: %w", p, err)
			}
		}
		return nil
	})
	return storedefs.Wrap("remove paths", err)
}

func marshalUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func marshalEntry(e storedefs.Entry) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], e.VisitCount)
	binary.BigEndian.PutUint64(b[8:], e.LastVisit)
	return b
}

func unmarshalEntry(key, value []byte) (storedefs.Entry, error) {
	if len(value) != 16 {
		return storedefs.Entry{}, fmt.Errorf("corrupt record for %q: %d bytes", key, len(value))
	}
	return storedefs.Entry{
		Path:       string(key),
		VisitCount: binary.BigEndian.Uint64(value[:8]),
		LastVisit:  binary.BigEndian.Uint64(value[8:]),
	}, nil
}
