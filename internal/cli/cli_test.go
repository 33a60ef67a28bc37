package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness runs commands against a temporary database with a controllable
// clock.
type harness struct {
	t      *testing.T
	dbFile string
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("FRECENCY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("FRECENCY_DB", "")
	return &harness{
		t:      t,
		dbFile: filepath.Join(t.TempDir(), "frecency.db"),
		now:    time.UnixMilli(1_700_000_000_000),
	}
}

func (h *harness) run(args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	opts := &options{now: func() time.Time { return h.now }}
	var out, errOut bytes.Buffer
	full := append([]string{"--db-file", h.dbFile}, args...)
	code = run(newRootCmd(opts), full, &out, &errOut)
	return out.String(), errOut.String(), code
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run(args...)
	require.Equal(h.t, 0, code, "frecency %v failed: %s", args, errOut)
	return out
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestAddAndFetch(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "/a")
	for i := 0; i < 3; i++ {
		h.now = h.now.Add(time.Second)
		h.mustRun("add", "/b")
	}

	assert.Equal(t, []string{"/b", "/a"}, lines(h.mustRun("fetch")))
	assert.Equal(t, []string{"/b", "/a"}, lines(h.mustRun("fetch", "--sort-by-last-visit")))
	assert.Equal(t, []string{"/a", "/b"}, lines(h.mustRun("fetch", "--asc")))
	assert.Equal(t, []string{"/b"}, lines(h.mustRun("fetch", "--limit", "1")))
	assert.Equal(t, []string{"12    /b", "4    /a"}, lines(h.mustRun("fetch", "--with-score")))
}

func TestFetchSortByLastVisitDiffersFromScore(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.mustRun("add", "/often")
	}
	h.now = h.now.Add(time.Minute)
	h.mustRun("add", "/recent")

	assert.Equal(t, []string{"/often", "/recent"}, lines(h.mustRun("fetch")))
	assert.Equal(t, []string{"/recent", "/often"}, lines(h.mustRun("fetch", "--sort-by-last-visit")))
	assert.Equal(t, []string{"4    /recent", "20    /often"},
		lines(h.mustRun("fetch", "--sort-by-last-visit", "--with-score")))
}

func TestFetchWithLastVisit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "/a")
	h.now = h.now.Add(3 * time.Hour)

	out := lines(h.mustRun("fetch", "--with-last-visit"))
	require.Len(t, out, 1)
	assert.Equal(t, "/a    (3 hours ago)", out[0])
}

func TestFetchEmptyStore(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.mustRun("fetch"))
}

func TestFetchLimitFromConfig(t *testing.T) {
	h := newHarness(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("fetch:\n  limit: 2\n"), 0o600))

	for _, p := range []string{"/a", "/b", "/c"} {
		h.mustRun("add", p)
	}
	assert.Len(t, lines(h.mustRun("--config", cfg, "fetch")), 2)
	assert.Len(t, lines(h.mustRun("--config", cfg, "fetch", "--limit", "0")), 3)
}

func TestFetchNegativeLimit(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("fetch", "--limit", "-1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error: invalid --limit -1")
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "/a")
	h.mustRun("add", "/b")
	h.mustRun("remove", "/a", "/never-added")
	assert.Equal(t, []string{"/b"}, lines(h.mustRun("fetch")))
}

func TestRemoveNotExists(t *testing.T) {
	h := newHarness(t)
	live := t.TempDir()
	file := filepath.Join(live, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	h.mustRun("add", live)
	h.mustRun("add", filepath.Join(live, "deleted"))
	h.mustRun("add", filepath.Join(file, "child"))
	h.mustRun("add", "relative-but-missing")

	_, errOut, code := h.run("-v", "remove-not-exists")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "removed=3")
	assert.Equal(t, []string{live}, lines(h.mustRun("fetch")))
}

func TestShow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "/a")
	h.mustRun("add", "/a")
	h.now = h.now.Add(2 * 24 * time.Hour)

	out := h.mustRun("show", "/a")
	assert.Contains(t, out, "path:        /a\n")
	assert.Contains(t, out, "visits:      2\n")
	assert.Contains(t, out, "(2 days ago)")
	assert.Contains(t, out, "band:        week (x1)\n")
	assert.Contains(t, out, "score:       2\n")

	_, errOut, code := h.run("show", "/missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not tracked")
}

func TestAddEmptyPath(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("add", "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid input")
}

func TestBoltEngine(t *testing.T) {
	h := newHarness(t)
	h.dbFile = filepath.Join(t.TempDir(), "frecency.bolt")

	h.mustRun("--engine", "bolt", "add", "/a")
	h.mustRun("--engine", "bolt", "add", "/b")
	h.mustRun("--engine", "bolt", "add", "/b")
	assert.Equal(t, []string{"/b", "/a"}, lines(h.mustRun("--engine", "bolt", "fetch")))
}

func TestUnknownEngine(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("--engine", "postgres", "fetch")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown database engine")
}

func TestMissingParentDirectory(t *testing.T) {
	h := newHarness(t)
	h.dbFile = filepath.Join(t.TempDir(), "missing", "frecency.db")

	_, errOut, code := h.run("add", "/a")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "storage unavailable")
}

func TestDefaultLocationIsCreated(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("FRECENCY_CONFIG", "")
	t.Setenv("FRECENCY_DB", "")

	opts := &options{now: time.Now}
	var out, errOut bytes.Buffer
	code := run(newRootCmd(opts), []string{"add", "/a"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	_, err := os.Stat(filepath.Join(home, ".frecency", "frecency.db"))
	assert.NoError(t, err)
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("init", "zsh")
	assert.Contains(t, out, "add-zsh-hook chpwd __frecency_add")
	assert.Contains(t, out, "--db-file '"+h.dbFile+"'")

	cfg := filepath.Join(t.TempDir(), "fc.yaml")
	out = h.mustRun("--engine", "bolt", "--config", cfg, "init", "bash")
	assert.Contains(t, out, "--config '"+cfg+"' --engine 'bolt' --db-file '"+h.dbFile+"' add \"$PWD\"")

	out = h.mustRun("init", "fish")
	assert.NotContains(t, out, "--engine")
	assert.NotContains(t, out, "--config")

	_, errOut, code := h.run("init", "tcsh")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unsupported shell")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	assert.True(t, strings.HasPrefix(h.mustRun("version"), "frecency dev"))
}
