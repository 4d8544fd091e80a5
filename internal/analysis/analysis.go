// Package analysis holds the filters and aggregates applied to the fused
// table before hour-of-day distributions are compared across solar offsets.
package analysis

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
)

// Group identifies rows sharing a DST flag and an offset bucket.
type Group struct {
	ActiveDST     string
	OffsetMinutes float64
}

// GroupCount pairs a group with its row count.
type GroupCount struct {
	Group
	Count int
}

func groupOf(f domain.FusedAccident) Group {
	return Group{ActiveDST: f.ActiveDST, OffsetMinutes: f.OffsetMinutes}
}

// RemoveSettlingPeriod keeps rows more than days whole days after the
// preceding DST switch. The first days after a switch behave unlike the rest
// of the period.
func RemoveSettlingPeriod(rows []domain.FusedAccident, days int) []domain.FusedAccident {
	out := make([]domain.FusedAccident, 0, len(rows))
	for _, r := range rows {
		if r.DaysSinceSwitch > days {
			out = append(out, r)
		}
	}
	return out
}

// RemoveSmallGroups keeps rows whose group has at least threshold rows.
func RemoveSmallGroups(rows []domain.FusedAccident, threshold int) []domain.FusedAccident {
	counts := make(map[Group]int)
	for _, r := range rows {
		counts[groupOf(r)]++
	}
	out := make([]domain.FusedAccident, 0, len(rows))
	for _, r := range rows {
		if counts[groupOf(r)] >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// GroupCounts returns the row count of every group, ordered by DST flag and
// then offset.
func GroupCounts(rows []domain.FusedAccident) []GroupCount {
	counts := make(map[Group]int)
	for _, r := range rows {
		counts[groupOf(r)]++
	}
	out := make([]GroupCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GroupCount{Group: g, Count: n})
	}
	slices.SortFunc(out, func(a, b GroupCount) int {
		return compareGroups(a.Group, b.Group)
	})
	return out
}

// HourDistribution returns, per group, the share of rows in each hour of the
// day. Each distribution sums to 1.
func HourDistribution(rows []domain.FusedAccident) map[Group][24]float64 {
	counts := make(map[Group]*[24]int)
	totals := make(map[Group]int)
	for _, r := range rows {
		g := groupOf(r)
		c, ok := counts[g]
		if !ok {
			c = new([24]int)
			counts[g] = c
		}
		c[r.Hour]++
		totals[g]++
	}

	out := make(map[Group][24]float64, len(counts))
	for g, c := range counts {
		var dist [24]float64
		for h, n := range c {
			dist[h] = float64(n) / float64(totals[g])
		}
		out[g] = dist
	}
	return out
}

// DayMinutes returns the minute of the day of every row in the group.
func DayMinutes(rows []domain.FusedAccident, g Group) []int {
	var out []int
	for _, r := range rows {
		if groupOf(r) == g {
			out = append(out, r.DayMinute())
		}
	}
	return out
}

func compareGroups(a, b Group) int {
	if c := cmp.Compare(a.ActiveDST, b.ActiveDST); c != 0 {
		return c
	}
	return cmp.Compare(a.OffsetMinutes, b.OffsetMinutes)
}
