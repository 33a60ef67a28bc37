package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/frecency-dev/frecency/internal/frecency"
	"github.com/frecency-dev/frecency/internal/store/storedefs"
	"github.com/spf13/cobra"
)

// --- add command ---

func newAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Record a visit to a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			path := args[0]
			if err := s.AddVisit(path, frecency.NowMillis(opts.now())); err != nil {
				return fmt.Errorf("add %s: %w", path, err)
			}
			opts.logger.Debug("visit recorded", "path", path)
			return nil
		},
	}
}

// --- remove command ---

func newRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>...",
		Short: "Forget paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.RemovePaths(args); err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			opts.logger.Debug("paths removed", "count", len(args))
			return nil
		},
	}
}

// --- remove-not-exists command ---

func newRemoveNotExistsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-not-exists",
		Short: "Remove paths that do not exist anymore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			scored, err := s.FetchScores(0)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			var stale []string
			for _, e := range scored {
				if gone(e.Path) {
					stale = append(stale, e.Path)
				}
			}
			if err := s.RemovePaths(stale); err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			opts.logger.Debug("stale paths removed", "checked", len(scored), "removed", len(stale))
			return nil
		},
	}
}

// gone reports whether path is not a usable filesystem path anymore: empty,
// containing a NUL byte, or missing on disk. Paths that exist but cannot be
// inspected (e.g. permission denied) are kept.
func gone(path string) bool {
	if path == "" || strings.ContainsRune(path, 0) {
		return true
	}
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// --- show command ---

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Show the statistics recorded for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.Entry(args[0])
			if err != nil {
				return fmt.Errorf("show: %w", err)
			}
			if e == nil {
				return fmt.Errorf("show: %s is not tracked", args[0])
			}
			printEntry(cmd, e, opts.now())
			return nil
		},
	}
}

func printEntry(cmd *cobra.Command, e *storedefs.Entry, now time.Time) {
	nowMs := frecency.NowMillis(now)
	last := time.UnixMilli(int64(e.LastVisit))
	band := frecency.BandFor(frecency.Age(e.LastVisit, nowMs))

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "path:        %s\n", e.Path)
	fmt.Fprintf(w, "visits:      %s\n", humanize.Comma(int64(e.VisitCount)))
	fmt.Fprintf(w, "last visit:  %s (%s)\n", last.Format(time.RFC3339), humanize.RelTime(last, now, "ago", "from now"))
	fmt.Fprintf(w, "band:        %s (x%s)\n", band.Name, formatScore(band.Multiplier))
	fmt.Fprintf(w, "score:       %s\n", formatScore(frecency.Score(e.VisitCount, e.LastVisit, nowMs)))
}
