package store

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/frecency-dev/frecency/internal/frecency"
	"github.com/frecency-dev/frecency/internal/store/storedefs"
)

// removeBatch bounds the number of placeholders in one DELETE statement.
const removeBatch = 500

// AddVisit records a visit to path at nowMillis. The lookup and the upsert run
// in one immediate transaction. If the store has no schema yet, it is created
// and the write retried once.
func (db *DB) AddVisit(path string, nowMillis uint64) error {
	if err := storedefs.CheckVisit(path, nowMillis); err != nil {
		return err
	}

	err := db.addVisit(path, nowMillis)
	if errors.Is(err, storedefs.ErrSchemaMissing) {
		if err := db.EnsureSchema(); err != nil {
			return err
		}
		err = db.addVisit(path, nowMillis)
		if errors.Is(err, storedefs.ErrSchemaMissing) {
			return &storedefs.StorageError{Op: "add visit", Err: err}
		}
	}
	return storedefs.Wrap("add visit", err)
}

func (db *DB) addVisit(path string, nowMillis uint64) error {
	return transaction(db.DB, func(tx *sql.Tx) error {
		if err := checkSchema(tx); err != nil {
			return err
		}
		existing, err := getEntry(tx, path)
		if err != nil {
			return err
		}
		e := frecency.RecordVisit(existing, path, nowMillis)
		_, err = tx.Exec(`
			INSERT INTO paths (path, visit_count, last_visit_millis) VALUES (?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				visit_count = excluded.visit_count,
				last_visit_millis = excluded.last_visit_millis
		`, e.Path, int64(e.VisitCount), int64(e.LastVisit))
		if err != nil {
			return fmt.Errorf("upsert path: %w", err)
		}
		return nil
	})
}

// Entry returns the stored statistics for path, or nil if it is not tracked.
func (db *DB) Entry(path string) (*storedefs.Entry, error) {
	if err := checkSchema(db.DB); err != nil {
		if errors.Is(err, storedefs.ErrSchemaMissing) {
			return nil, nil
		}
		return nil, storedefs.Wrap("get entry", err)
	}
	e, err := getEntry(db.DB, path)
	return e, storedefs.Wrap("get entry", err)
}

func getEntry(q queryer, path string) (*storedefs.Entry, error) {
	var e storedefs.Entry
	err := q.QueryRow(
		"SELECT path, visit_count, last_visit_millis FROM paths WHERE path = ?", path,
	).Scan(&e.Path, &e.VisitCount, &e.LastVisit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get path: %w", err)
	}
	return &e, nil
}

// FetchScores returns entries ordered by frecency score at the current time,
// highest first. Ties go to the more recent visit, then to the smaller path.
// A positive limit truncates the result.
func (db *DB) FetchScores(limit int) ([]storedefs.Scored, error) {
	entries, err := db.listEntries("SELECT path, visit_count, last_visit_millis FROM paths")
	if err != nil {
		return nil, storedefs.Wrap("fetch scores", err)
	}
	scored := frecency.Rate(entries, frecency.NowMillis(db.Clock()))
	slices.SortFunc(scored, frecency.ByScore)
	return frecency.Truncate(scored, limit), nil
}

// FetchLastVisit returns entries ordered by last visit, most recent first. The
// Score of each entry is still its frecency score.
func (db *DB) FetchLastVisit(limit int) ([]storedefs.Scored, error) {
	query := "SELECT path, visit_count, last_visit_millis FROM paths ORDER BY last_visit_millis DESC, path ASC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	entries, err := db.listEntries(query, args...)
	if err != nil {
		return nil, storedefs.Wrap("fetch last visit", err)
	}
	return frecency.Rate(entries, frecency.NowMillis(db.Clock())), nil
}

// listEntries runs query against the paths table. An uninitialized store
// yields no entries.
func (db *DB) listEntries(query string, args ...any) ([]storedefs.Entry, error) {
	if err := checkSchema(db.DB); err != nil {
		if errors.Is(err, storedefs.ErrSchemaMissing) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	defer rows.Close()

	var entries []storedefs.Entry
	for rows.Next() {
		var e storedefs.Entry
		if err := rows.Scan(&e.Path, &e.VisitCount, &e.LastVisit); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RemovePaths deletes every listed path in a single transaction. Paths that
// are not tracked are ignored.
func (db *DB) RemovePaths(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	err := transaction(db.DB, func(tx *sql.Tx) error {
		if err := checkSchema(tx); err != nil {
			return err
		}
		for batch := range slices.Chunk(paths, removeBatch) {
			args := make([]any, len(batch))
			for i, p := range batch {
				args[i] = p
			}
			query := fmt.Sprintf("DELETE FROM paths WHERE path IN (%s)", placeholders(len(batch)))
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("delete paths: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, storedefs.ErrSchemaMissing) {
		return nil
	}
	return storedefs.Wrap("remove paths", err)
}
