package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/dst-accident-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/dst-accident-etl/internal/analysis"
	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/spf13/cobra"
)

type summaryOptions struct {
	ks         bool
	hours      bool
	fromSQLite string
	out        string
}

func summaryCommand(a *app) *cobra.Command {
	var opts summaryOptions
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print row counts per DST flag and offset bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if opts.out != "" {
				f, err := os.Create(opts.out)
				if err != nil {
					return fmt.Errorf("create summary output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return a.summary(cmd.Context(), out, opts)
		},
	}
	cmd.Flags().IntVar(&a.cfg.SettleDays, "settle-days", a.cfg.SettleDays, "drop rows this many days or fewer after a switch")
	cmd.Flags().IntVar(&a.cfg.MinGroupSize, "min-group-size", a.cfg.MinGroupSize, "drop groups smaller than this")
	cmd.Flags().BoolVar(&opts.ks, "ks", false, "also print log10 KS p-values between offset buckets")
	cmd.Flags().BoolVar(&opts.hours, "hours", false, "also print the hour-of-day distribution of every group")
	cmd.Flags().StringVar(&opts.fromSQLite, "from-sqlite", "", "count groups in a database written by run --sqlite instead of rebuilding")
	cmd.Flags().StringVar(&opts.out, "out", "", "write tables to this file instead of stdout, away from the log stream")
	cmd.MarkFlagsMutuallyExclusive("from-sqlite", "ks")
	cmd.MarkFlagsMutuallyExclusive("from-sqlite", "hours")
	return cmd
}

func (a *app) summary(ctx context.Context, out io.Writer, opts summaryOptions) error {
	if opts.fromSQLite != "" {
		groups, err := a.sqliteGroupCounts(ctx, opts.fromSQLite)
		if err != nil {
			return err
		}
		return writeGroupCounts(out, groups)
	}

	res, err := a.newPipeline(nil).Build(ctx)
	if err != nil {
		return err
	}

	rows := analysis.RemoveSettlingPeriod(res.Rows, a.cfg.SettleDays)
	rows = analysis.RemoveSmallGroups(rows, a.cfg.MinGroupSize)
	groups := analysis.GroupCounts(rows)

	if err := writeGroupCounts(out, groups); err != nil {
		return err
	}
	if opts.hours {
		if err := writeHourDistribution(out, groups, analysis.HourDistribution(rows)); err != nil {
			return err
		}
	}
	if !opts.ks {
		return nil
	}
	for _, flag := range []string{domain.DSTActive, domain.DSTInactive} {
		var keys []analysis.Group
		for _, g := range groups {
			if g.ActiveDST == flag {
				keys = append(keys, g.Group)
			}
		}
		if err := printComparisons(out, flag, analysis.CompareGroups(rows, keys, analysis.QuarterHourDelays)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) sqliteGroupCounts(ctx context.Context, path string) ([]analysis.GroupCount, error) {
	db, err := sqlite.Open(ctx, path, a.logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	counts, err := db.GroupCounts(ctx, a.cfg.SettleDays, a.cfg.MinGroupSize)
	if err != nil {
		return nil, err
	}
	groups := make([]analysis.GroupCount, len(counts))
	for i, c := range counts {
		groups[i] = analysis.GroupCount{
			Group: analysis.Group{ActiveDST: c.ActiveDST, OffsetMinutes: c.OffsetMinutes},
			Count: c.Count,
		}
	}
	return groups, nil
}

func writeGroupCounts(out io.Writer, groups []analysis.GroupCount) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DST\tOFFSET_MINUTES\tACCIDENTS")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%g\t%d\n", g.ActiveDST, g.OffsetMinutes, g.Count)
	}
	return tw.Flush()
}

// writeHourDistribution prints one row per group with the percentage of its
// accidents in each hour of the day.
func writeHourDistribution(out io.Writer, groups []analysis.GroupCount, dist map[analysis.Group][24]float64) error {
	fmt.Fprintln(out, "\nHOUR OF DAY (%)")
	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "DST\tOFFSET\t")
	for h := range 24 {
		fmt.Fprintf(tw, "%02d\t", h)
	}
	fmt.Fprintln(tw)
	for _, g := range groups {
		d := dist[g.Group]
		fmt.Fprintf(tw, "%s\t%g\t", g.ActiveDST, g.OffsetMinutes)
		for _, share := range d {
			fmt.Fprintf(tw, "%.1f\t", 100*share)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// printComparisons writes one line per group pair with the log10 p-value at
// each delay.
func printComparisons(out io.Writer, flag string, comps []analysis.Comparison) error {
	fmt.Fprintf(out, "\nDST %s\n", flag)
	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "A\tB\t")
	for _, d := range analysis.QuarterHourDelays {
		fmt.Fprintf(tw, "%d\t", d)
	}
	fmt.Fprintln(tw)

	per := len(analysis.QuarterHourDelays)
	for i := 0; i+per <= len(comps); i += per {
		fmt.Fprintf(tw, "%g\t%g\t", comps[i].A.OffsetMinutes, comps[i].B.OffsetMinutes)
		for _, c := range comps[i : i+per] {
			fmt.Fprintf(tw, "%.1f\t", math.Log10(1e-200+c.P))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
