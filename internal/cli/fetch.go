package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/frecency-dev/frecency/internal/store/storedefs"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	limit         int
	sortLastVisit bool
	withScore     bool
	withLastVisit bool
	asc           bool
}

func newFetchCmd(opts *options) *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Show paths ordered by frecency",
		Long: "Print tracked paths, highest frecency first. With --sort-by-last-visit the most " +
			"recently visited path comes first instead; the score shown is still the frecency score.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			limit := f.limit
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Fetch.Limit
			}
			if limit < 0 {
				return fmt.Errorf("invalid --limit %d", limit)
			}

			var scored []storedefs.Scored
			if f.sortLastVisit {
				scored, err = s.FetchLastVisit(limit)
			} else {
				scored, err = s.FetchScores(limit)
			}
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}
			opts.logger.Debug("fetched paths", "count", len(scored), "limit", limit)

			if f.asc {
				slices.Reverse(scored)
			}
			return printScored(cmd.OutOrStdout(), scored, f, opts.now())
		},
	}

	cmd.Flags().IntVarP(&f.limit, "limit", "l", 0, "Maximum number of paths (0 for all)")
	cmd.Flags().BoolVar(&f.sortLastVisit, "sort-by-last-visit", false, "Order by last visit instead of frecency")
	cmd.Flags().BoolVarP(&f.withScore, "with-score", "s", false, "Print the score before each path")
	cmd.Flags().BoolVar(&f.withLastVisit, "with-last-visit", false, "Print how long ago each path was visited")
	cmd.Flags().BoolVar(&f.asc, "asc", false, "Print in ascending order")
	return cmd
}

func printScored(w io.Writer, scored []storedefs.Scored, f fetchFlags, now time.Time) error {
	for _, e := range scored {
		line := e.Path
		if f.withScore {
			line = formatScore(e.Score) + "    " + line
		}
		if f.withLastVisit {
			line += "    (" + humanize.RelTime(time.UnixMilli(int64(e.LastVisit)), now, "ago", "from now") + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
