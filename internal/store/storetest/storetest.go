// Package storetest keeps test suites against storedefs.Store.
package storetest

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/frecency-dev/frecency/internal/store/storedefs"
	"github.com/google/go-cmp/cmp"
)

// Opener opens an engine at path, scoring entries with clock.
type Opener func(path string, clock func() time.Time) (storedefs.Store, error)

// Now is the instant the suite's fixed clock reports.
var Now = time.UnixMilli(1_700_000_000_000)

func fixedClock() time.Time { return Now }

func nowMs() uint64 { return uint64(Now.UnixMilli()) }

const day = uint64(24 * time.Hour / time.Millisecond)

// TestStore runs every test in the suite against the engine opened by open.
func TestStore(t *testing.T, open Opener) {
	t.Run("OpenMissingParent", func(t *testing.T) { testOpenMissingParent(t, open) })
	t.Run("EnsureSchemaIdempotent", func(t *testing.T) { testEnsureSchemaIdempotent(t, open) })
	t.Run("Reopen", func(t *testing.T) { testReopen(t, open) })
	t.Run("Uninitialized", func(t *testing.T) { testUninitialized(t, open) })
	t.Run("SelfHealingAdd", func(t *testing.T) { testSelfHealingAdd(t, open) })
	t.Run("VisitAccumulation", func(t *testing.T) { testVisitAccumulation(t, open) })
	t.Run("InvalidInput", func(t *testing.T) { testInvalidInput(t, open) })
	t.Run("PathsAreByteExact", func(t *testing.T) { testByteExact(t, open) })
	t.Run("Example", func(t *testing.T) { testExample(t, open) })
	t.Run("OrderingStability", func(t *testing.T) { testOrdering(t, open) })
	t.Run("LimitTruncation", func(t *testing.T) { testLimit(t, open) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, open) })
	t.Run("RemoveMany", func(t *testing.T) { testRemoveMany(t, open) })
	t.Run("ConcurrentVisits", func(t *testing.T) { testConcurrentVisits(t, open) })
}

func mustOpen(t *testing.T, open Opener, path string) storedefs.Store {
	t.Helper()
	s, err := open(path, fixedClock)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func tempStore(t *testing.T, open Opener) storedefs.Store {
	t.Helper()
	return mustOpen(t, open, filepath.Join(t.TempDir(), "frecency.db"))
}

func mustAdd(t *testing.T, s storedefs.Store, path string, at uint64) {
	t.Helper()
	if err := s.AddVisit(path, at); err != nil {
		t.Fatalf("AddVisit(%q, %d): %v", path, at, err)
	}
}

func paths(s []storedefs.Scored) []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Path
	}
	return out
}

func fetchScores(t *testing.T, s storedefs.Store, limit int) []storedefs.Scored {
	t.Helper()
	got, err := s.FetchScores(limit)
	if err != nil {
		t.Fatalf("FetchScores(%d): %v", limit, err)
	}
	return got
}

func fetchLastVisit(t *testing.T, s storedefs.Store, limit int) []storedefs.Scored {
	t.Helper()
	got, err := s.FetchLastVisit(limit)
	if err != nil {
		t.Fatalf("FetchLastVisit(%d): %v", limit, err)
	}
	return got
}

func testOpenMissingParent(t *testing.T, open Opener) {
	path := filepath.Join(t.TempDir(), "missing", "frecency.db")
	s, err := open(path, fixedClock)
	if err == nil {
		s.Close()
		t.Fatal("expected error opening under a missing directory")
	}
	if !errors.Is(err, storedefs.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func testEnsureSchemaIdempotent(t *testing.T, open Opener) {
	s := tempStore(t, open)
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	mustAdd(t, s, "/a", nowMs())
	before := fetchScores(t, s, 0)

	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	after := fetchScores(t, s, 0)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("rows changed after EnsureSchema (-before +after):\n%s", diff)
	}

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v < 1 {
		t.Errorf("SchemaVersion = %d, want >= 1", v)
	}
}

func testReopen(t *testing.T, open Opener) {
	path := filepath.Join(t.TempDir(), "frecency.db")
	s, err := open(path, fixedClock)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustAdd(t, s, "/a", nowMs())
	mustAdd(t, s, "/a", nowMs())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s = mustOpen(t, open, path)
	e, err := s.Entry("/a")
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e == nil || e.VisitCount != 2 {
		t.Errorf("Entry after reopen = %+v, want visit count 2", e)
	}
}

func testUninitialized(t *testing.T, open Opener) {
	s := tempStore(t, open)

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 0 {
		t.Errorf("SchemaVersion = %d, want 0", v)
	}
	if got := fetchScores(t, s, 0); len(got) != 0 {
		t.Errorf("FetchScores on empty store = %v", got)
	}
	if got := fetchLastVisit(t, s, 0); len(got) != 0 {
		t.Errorf("FetchLastVisit on empty store = %v", got)
	}
	if e, err := s.Entry("/a"); err != nil || e != nil {
		t.Errorf("Entry = %v, %v; want nil, nil", e, err)
	}
	if err := s.RemovePaths([]string{"/a"}); err != nil {
		t.Errorf("RemovePaths on empty store: %v", err)
	}
	// Reads and deletes never initialize the schema.
	if v, _ := s.SchemaVersion(); v != 0 {
		t.Errorf("SchemaVersion after reads = %d, want 0", v)
	}
}

func testSelfHealingAdd(t *testing.T, open Opener) {
	s := tempStore(t, open)
	mustAdd(t, s, "/a", nowMs())

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v < 1 {
		t.Errorf("SchemaVersion after first AddVisit = %d, want >= 1", v)
	}
	if got := paths(fetchScores(t, s, 0)); !slices.Equal(got, []string{"/a"}) {
		t.Errorf("FetchScores = %v, want [/a]", got)
	}
}

func testVisitAccumulation(t *testing.T, open Opener) {
	s := tempStore(t, open)
	const n = 7
	var last uint64
	for i := uint64(1); i <= n; i++ {
		last = nowMs() - (n-i)*1000
		mustAdd(t, s, "/a", last)
	}
	e, err := s.Entry("/a")
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	want := &storedefs.Entry{Path: "/a", VisitCount: n, LastVisit: last}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("Entry mismatch (-want +got):\n%s", diff)
	}
	if got := fetchScores(t, s, 0); len(got) != 1 {
		t.Errorf("FetchScores returned %d rows, want 1", len(got))
	}
}

func testInvalidInput(t *testing.T, open Opener) {
	s := tempStore(t, open)
	err := s.AddVisit("", nowMs())
	if !errors.Is(err, storedefs.ErrInvalidInput) {
		t.Errorf("AddVisit(\"\") err = %v, want ErrInvalidInput", err)
	}

	mustAdd(t, s, "/ok", nowMs())
	for _, at := range []uint64{storedefs.MaxMillis + 1, math.MaxUint64} {
		if err := s.AddVisit("/huge", at); !errors.Is(err, storedefs.ErrInvalidInput) {
			t.Errorf("AddVisit(/huge, %d) err = %v, want ErrInvalidInput", at, err)
		}
	}
	if got := paths(fetchScores(t, s, 0)); !slices.Equal(got, []string{"/ok"}) {
		t.Errorf("FetchScores = %v, want [/ok]", got)
	}
	if got := paths(fetchLastVisit(t, s, 0)); !slices.Equal(got, []string{"/ok"}) {
		t.Errorf("FetchLastVisit = %v, want [/ok]", got)
	}

	// The largest accepted timestamp round-trips.
	mustAdd(t, s, "/edge", storedefs.MaxMillis)
	e, err := s.Entry("/edge")
	if err != nil || e == nil || e.LastVisit != storedefs.MaxMillis {
		t.Errorf("Entry(/edge) = %+v, %v, want LastVisit %d", e, err, uint64(storedefs.MaxMillis))
	}
}

func testByteExact(t *testing.T, open Opener) {
	s := tempStore(t, open)
	for _, p := range []string{"/Tmp", "/tmp", "/tmp/", "/tmp/\u00fc", "/tmp/u\u0308"} {
		mustAdd(t, s, p, nowMs())
	}
	if got := fetchScores(t, s, 0); len(got) != 5 {
		t.Errorf("FetchScores = %v, want 5 distinct paths", paths(got))
	}
}

func testExample(t *testing.T, open Opener) {
	s := tempStore(t, open)
	base := nowMs() - 10_000
	mustAdd(t, s, "/a", base+1000)
	mustAdd(t, s, "/b", base+1000)
	mustAdd(t, s, "/b", base+2000)
	mustAdd(t, s, "/b", base+3000)

	if got := paths(fetchScores(t, s, 0)); !slices.Equal(got, []string{"/b", "/a"}) {
		t.Errorf("FetchScores = %v, want [/b /a]", got)
	}
	if got := paths(fetchLastVisit(t, s, 0)); !slices.Equal(got, []string{"/b", "/a"}) {
		t.Errorf("FetchLastVisit = %v, want [/b /a]", got)
	}

	if err := s.RemovePaths([]string{"/a"}); err != nil {
		t.Fatalf("RemovePaths: %v", err)
	}
	if got := paths(fetchScores(t, s, 0)); !slices.Equal(got, []string{"/b"}) {
		t.Errorf("FetchScores after remove = %v, want [/b]", got)
	}
}

// seed inserts a mix of entries whose score order differs from their
// last-visit order.
func seed(t *testing.T, s storedefs.Store) {
	t.Helper()
	now := nowMs()
	visits := []struct {
		path  string
		count int
		at    uint64
	}{
		{"/recent-once", 1, now - 60_000},
		{"/old-often", 40, now - 90*day},
		{"/week-some", 5, now - 3*day},
		{"/today-some", 3, now - 2*60*60*1000},
		{"/tie-b", 2, now - 5*day},
		{"/tie-a", 2, now - 5*day},
		{"/tie-c", 2, now - 6*day},
		{"/month", 9, now - 20*day},
	}
	for _, v := range visits {
		for i := 0; i < v.count; i++ {
			mustAdd(t, s, v.path, v.at)
		}
	}
}

func testOrdering(t *testing.T, open Opener) {
	s := tempStore(t, open)
	seed(t, s)

	byScore := fetchScores(t, s, 0)
	if len(byScore) != 8 {
		t.Fatalf("FetchScores returned %d rows, want 8", len(byScore))
	}
	for i := 1; i < len(byScore); i++ {
		if byScore[i].Score > byScore[i-1].Score {
			t.Errorf("score rises at %d: %v after %v", i, byScore[i], byScore[i-1])
		}
	}
	// Scores: old-often 40*0.25, today-some 3*2, week-some 5*1, month 9*0.5,
	// recent-once 1*4, ties 2*1 broken by last visit then path.
	want := []string{"/old-often", "/today-some", "/week-some", "/month", "/recent-once", "/tie-a", "/tie-b", "/tie-c"}
	if diff := cmp.Diff(want, paths(byScore)); diff != "" {
		t.Errorf("FetchScores order (-want +got):\n%s", diff)
	}

	byVisit := fetchLastVisit(t, s, 0)
	for i := 1; i < len(byVisit); i++ {
		if byVisit[i].LastVisit > byVisit[i-1].LastVisit {
			t.Errorf("last visit rises at %d: %v after %v", i, byVisit[i], byVisit[i-1])
		}
	}
	wantVisit := []string{"/recent-once", "/today-some", "/week-some", "/tie-a", "/tie-b", "/tie-c", "/month", "/old-often"}
	if diff := cmp.Diff(wantVisit, paths(byVisit)); diff != "" {
		t.Errorf("FetchLastVisit order (-want +got):\n%s", diff)
	}

	// The score returned by FetchLastVisit is the frecency score.
	scores := make(map[string]float64)
	for _, e := range byScore {
		scores[e.Path] = e.Score
	}
	for _, e := range byVisit {
		if e.Score != scores[e.Path] {
			t.Errorf("%s: FetchLastVisit score %v, FetchScores score %v", e.Path, e.Score, scores[e.Path])
		}
	}
}

func testLimit(t *testing.T, open Opener) {
	s := tempStore(t, open)
	seed(t, s)
	full := fetchScores(t, s, 0)
	fullVisit := fetchLastVisit(t, s, 0)

	for _, k := range []int{1, 3, 8, 20} {
		got := fetchScores(t, s, k)
		n := min(k, len(full))
		if diff := cmp.Diff(full[:n], got); diff != "" {
			t.Errorf("FetchScores(%d) is not the top-%d (-want +got):\n%s", k, k, diff)
		}
		gotVisit := fetchLastVisit(t, s, k)
		if diff := cmp.Diff(fullVisit[:n], gotVisit); diff != "" {
			t.Errorf("FetchLastVisit(%d) is not the top-%d (-want +got):\n%s", k, k, diff)
		}
	}
}

func testRemove(t *testing.T, open Opener) {
	s := tempStore(t, open)
	mustAdd(t, s, "/a", nowMs())
	mustAdd(t, s, "/b", nowMs())
	mustAdd(t, s, "/c", nowMs())

	if err := s.RemovePaths([]string{"/a", "/nonexistent", "/c"}); err != nil {
		t.Fatalf("RemovePaths: %v", err)
	}
	if got := paths(fetchScores(t, s, 0)); !slices.Equal(got, []string{"/b"}) {
		t.Errorf("FetchScores = %v, want [/b]", got)
	}
	if err := s.RemovePaths([]string{"/a"}); err != nil {
		t.Errorf("removing an absent path: %v", err)
	}
	if err := s.RemovePaths(nil); err != nil {
		t.Errorf("RemovePaths(nil): %v", err)
	}

	// A removed path starts over when visited again.
	mustAdd(t, s, "/a", nowMs())
	e, err := s.Entry("/a")
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e == nil || e.VisitCount != 1 {
		t.Errorf("Entry after re-add = %+v, want visit count 1", e)
	}
}

func testRemoveMany(t *testing.T, open Opener) {
	s := tempStore(t, open)
	var all []string
	for i := 0; i < 1200; i++ {
		p := fmt.Sprintf("/dir/%04d", i)
		all = append(all, p)
		mustAdd(t, s, p, nowMs())
	}
	if err := s.RemovePaths(all[:1100]); err != nil {
		t.Fatalf("RemovePaths: %v", err)
	}
	got := fetchScores(t, s, 0)
	if len(got) != 100 {
		t.Fatalf("FetchScores returned %d rows, want 100", len(got))
	}
	if diff := cmp.Diff(all[1100:], paths(got)); diff != "" {
		t.Errorf("remaining paths (-want +got):\n%s", diff)
	}
}

func testConcurrentVisits(t *testing.T, open Opener) {
	path := filepath.Join(t.TempDir(), "frecency.db")
	first, err := open(path, fixedClock)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	first.Close()

	const workers, visits = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			s, err := open(path, fixedClock)
			if err != nil {
				errs <- err
				return
			}
			defer s.Close()
			for i := 0; i < visits; i++ {
				if err := s.AddVisit("/shared", nowMs()); err != nil {
					errs <- err
					return
				}
				if err := s.AddVisit(fmt.Sprintf("/own/%d", w), nowMs()); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker: %v", err)
	}

	s := mustOpen(t, open, path)
	e, err := s.Entry("/shared")
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e == nil || e.VisitCount != workers*visits {
		t.Errorf("/shared = %+v, want visit count %d", e, workers*visits)
	}
	if got := fetchScores(t, s, 0); len(got) != workers+1 {
		t.Errorf("FetchScores returned %d rows, want %d", len(got), workers+1)
	}
}
