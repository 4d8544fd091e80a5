package analysis

import (
	"math"
	"slices"

	"github.com/couchcryptid/dst-accident-etl/internal/domain"
)

const (
	minutesPerDay = 24 * 60
	// dayStartMinute is where the comparison window opens, so the quiet early
	// morning hours sit at both ends instead of splitting the night.
	dayStartMinute = 5 * 60
)

// QuarterHourDelays are the shifts, in minutes, applied to the second sample
// when comparing two groups.
var QuarterHourDelays = []int{-60, -45, -30, -15, 0, 15, 30, 45, 60}

// Comparison is the outcome of one two-sample test between groups.
type Comparison struct {
	A, B  Group
	Delay int
	D     float64
	P     float64
}

// rotate maps a minute of the day into the comparison window after shifting
// it by delay minutes.
func rotate(minute, delay int) int {
	m := (minute - dayStartMinute + delay) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m
}

// KSTest runs a two-sample Kolmogorov-Smirnov test on minutes of the day,
// shifting b by delay minutes. It returns the statistic and the asymptotic
// p-value. Empty samples yield (0, 1).
func KSTest(a, b []int, delay int) (d, p float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 1
	}
	x := make([]int, len(a))
	for i, m := range a {
		x[i] = rotate(m, 0)
	}
	y := make([]int, len(b))
	for i, m := range b {
		y[i] = rotate(m, delay)
	}
	slices.Sort(x)
	slices.Sort(y)

	n, m := float64(len(x)), float64(len(y))
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		v := min(x[i], y[j])
		for i < len(x) && x[i] == v {
			i++
		}
		for j < len(y) && y[j] == v {
			j++
		}
		d = max(d, math.Abs(float64(i)/n-float64(j)/m))
	}

	en := math.Sqrt(n * m / (n + m))
	return d, kolmogorovQ((en + 0.12 + 0.11/en) * d)
}

// kolmogorovQ is the complementary Kolmogorov distribution function.
func kolmogorovQ(lambda float64) float64 {
	const (
		eps1 = 1e-6
		eps2 = 1e-16
	)
	a2 := -2 * lambda * lambda
	sign := 2.0
	sum, prev := 0.0, 0.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(a2*float64(j*j))
		sum += term
		if math.Abs(term) <= eps1*prev || math.Abs(term) <= eps2*sum {
			return min(max(sum, 0), 1)
		}
		sign = -sign
		prev = math.Abs(term)
	}
	// No convergence means lambda is tiny: the samples are indistinguishable.
	return 1
}

// CompareGroups tests every ordered pair of groups at every delay.
func CompareGroups(rows []domain.FusedAccident, groups []Group, delays []int) []Comparison {
	samples := make(map[Group][]int, len(groups))
	for _, g := range groups {
		samples[g] = DayMinutes(rows, g)
	}
	var out []Comparison
	for _, a := range groups {
		for _, b := range groups {
			for _, delay := range delays {
				d, p := KSTest(samples[a], samples[b], delay)
				out = append(out, Comparison{A: a, B: b, Delay: delay, D: d, P: p})
			}
		}
	}
	return out
}
