// Package frecency implements the scoring model: how a visit updates the
// statistics of a path, and how those statistics turn into a rank.
//
// Scores are never stored. They are recomputed at read time from the visit
// count and the age of the last visit, so changing the bands below re-ranks
// existing data without a migration.
package frecency

import (
	"cmp"
	"math"
	"time"

	"github.com/frecency-dev/frecency/internal/store/storedefs"
)

// Band is a recency bucket. An entry whose last visit is at most MaxAge old
// gets Multiplier applied to its visit count.
type Band struct {
	Name       string
	MaxAge     time.Duration
	Multiplier float64
}

// Bands are ordered from most to least recent. Multipliers must not increase
// down the list.
var Bands = []Band{
	{"hour", time.Hour, 4},
	{"day", 24 * time.Hour, 2},
	{"week", 7 * 24 * time.Hour, 1},
	{"month", 30 * 24 * time.Hour, 0.5},
}

// Older applies to entries older than the last band in Bands.
var Older = Band{Name: "older", MaxAge: -1, Multiplier: 0.25}

// BandFor returns the band an entry of the given age falls in. Negative ages
// (a last visit in the future) are treated as zero.
func BandFor(age time.Duration) Band {
	if age < 0 {
		age = 0
	}
	for _, b := range Bands {
		if age <= b.MaxAge {
			return b
		}
	}
	return Older
}

// maxAgeMillis is the largest age in milliseconds a time.Duration can hold.
const maxAgeMillis = uint64(math.MaxInt64 / int64(time.Millisecond))

// Age returns how long before nowMillis the last visit happened. Ages too
// large for a time.Duration saturate at math.MaxInt64.
func Age(lastVisit, nowMillis uint64) time.Duration {
	if lastVisit >= nowMillis {
		return 0
	}
	ms := nowMillis - lastVisit
	if ms > maxAgeMillis {
		return math.MaxInt64
	}
	return time.Duration(ms) * time.Millisecond
}

// Score ranks an entry at the instant nowMillis.
func Score(visitCount, lastVisit, nowMillis uint64) float64 {
	return float64(visitCount) * BandFor(Age(lastVisit, nowMillis)).Multiplier
}

// RecordVisit returns the statistics of path after one more visit at
// nowMillis. A nil existing entry starts a new record.
func RecordVisit(existing *storedefs.Entry, path string, nowMillis uint64) storedefs.Entry {
	if existing == nil {
		return storedefs.Entry{Path: path, VisitCount: 1, LastVisit: nowMillis}
	}
	return storedefs.Entry{
		Path:       existing.Path,
		VisitCount: existing.VisitCount + 1,
		LastVisit:  nowMillis,
	}
}

// Rate scores every entry at nowMillis.
func Rate(entries []storedefs.Entry, nowMillis uint64) []storedefs.Scored {
	scored := make([]storedefs.Scored, len(entries))
	for i, e := range entries {
		scored[i] = storedefs.Scored{Entry: e, Score: Score(e.VisitCount, e.LastVisit, nowMillis)}
	}
	return scored
}

// ByScore orders by score descending, then more recent last visit, then path.
// It is meant for slices.SortFunc.
func ByScore(a, b storedefs.Scored) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return ByLastVisit(a, b)
}

// ByLastVisit orders by last visit descending, then path.
func ByLastVisit(a, b storedefs.Scored) int {
	if c := cmp.Compare(b.LastVisit, a.LastVisit); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}

// Truncate returns at most limit leading elements of s. A limit of zero or less
// means no limit.
func Truncate(s []storedefs.Scored, limit int) []storedefs.Scored {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// NowMillis converts t to milliseconds since the Unix epoch.
func NowMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
