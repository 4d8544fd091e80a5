// Command validate re-reads an exported fused table and checks the invariants
// every row must satisfy: cleaned time and location, DST consistency, solar
// offset arithmetic, ordering and key uniqueness. With -dst it also checks
// each row against the transition list, and with -sun it checks the bucketed
// offset against the sun's position computed independently.
//
// Usage:
//
//	go run ./cmd/validate -data _data.csv -dst raw/dst.csv -bucket 60 -sun
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/dst-accident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/dst-accident-etl/internal/analysis"
	"github.com/couchcryptid/dst-accident-etl/internal/config"
	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/fusion"
	"github.com/couchcryptid/dst-accident-etl/internal/reference"
)

const tolerance = 1e-9

// maxErrorsPerPhase caps how many failures are listed per phase.
const maxErrorsPerPhase = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	total  int
}

func (p *phase) errorf(format string, args ...any) {
	p.total++
	if len(p.errors) < maxErrorsPerPhase {
		p.errors = append(p.errors, fmt.Sprintf(format, args...))
	}
}

func (p *phase) passed() bool { return p.total == 0 }

func main() {
	dataPath := flag.String("data", "_data.csv", "path to the exported fused table")
	dstPath := flag.String("dst", "", "optional path to the DST transition list")
	bucket := flag.Float64("bucket", 60, "offset bucket width the table was built with")
	excluded := flag.String("excluded", joinInts(config.DefaultExcludedStates), "comma-separated excluded state codes")
	sun := flag.Bool("sun", false, "cross-check offsets against computed solar noon")
	flag.Parse()

	if *bucket <= 0 {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*dataPath, *dstPath, *bucket, *excluded, *sun))
}

func run(dataPath, dstPath string, bucket float64, excluded string, sun bool) int {
	fmt.Println("=== Fused Accident Table Validation ===")
	fmt.Println()

	rows, err := csvfile.Read(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fused table: %v\n", err)
		return 1
	}

	excludedSet, err := parseInts(excluded)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -excluded: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCleaning(rows, excludedSet),
		validateDST(rows),
		validateSolarOffset(rows, bucket),
		validateOrdering(rows),
	}

	if dstPath != "" {
		transitions, err := reference.LoadTransitions(dstPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load transitions: %v\n", err)
			return 1
		}
		phases = append(phases, validateTransitions(rows, transitions))
	}
	if sun {
		phases = append(phases, validateSun(rows, bucket))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", p.total)
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d\n", len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.total > len(p.errors) {
			fmt.Printf("  ... and %d more\n", p.total-len(p.errors))
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateCleaning(rows []domain.FusedAccident, excluded map[int]bool) *phase {
	p := &phase{name: "Phase 1: cleaned time and location"}
	for _, r := range rows {
		if r.Hour < 0 || r.Hour > 23 {
			p.errorf("%s: hour %d", r.ID(), r.Hour)
		}
		if r.Minute < 0 || r.Minute > 59 {
			p.errorf("%s: minute %d", r.ID(), r.Minute)
		}
		if excluded[r.State] {
			p.errorf("%s: excluded state %d", r.ID(), r.State)
		}
		if !domain.ContinentalBounds.Contains(r.Lat, r.Lng) {
			p.errorf("%s: location (%g, %g) outside bounds", r.ID(), r.Lat, r.Lng)
		}
		t, err := domain.ReconstructTime(r.Year, r.Month, r.Day, r.Hour, r.Minute)
		if err != nil {
			p.errorf("%s: %v", r.ID(), err)
		} else if !t.Equal(r.Time) {
			p.errorf("%s: TIME %s does not match components", r.ID(), r.Time)
		}
	}
	return p
}

func validateDST(rows []domain.FusedAccident) *phase {
	p := &phase{name: "Phase 2: DST flag and switch distance"}
	for _, r := range rows {
		if r.Delta != 1 && r.Delta != -1 {
			p.errorf("%s: DST_DELTA %d", r.ID(), r.Delta)
		}
		if (r.ActiveDST == domain.DSTActive) != (r.Delta == 1) {
			p.errorf("%s: DST %q with DST_DELTA %d", r.ID(), r.ActiveDST, r.Delta)
		}
		if r.ActiveDST != domain.DSTActive && r.ActiveDST != domain.DSTInactive {
			p.errorf("%s: DST %q", r.ID(), r.ActiveDST)
		}
		if r.Switch.After(r.Time) {
			p.errorf("%s: switch %s after accident %s", r.ID(), r.Switch, r.Time)
		}
		if r.DaysSinceSwitch < 0 {
			p.errorf("%s: negative DAYS_FROM_DST_SWITCH %d", r.ID(), r.DaysSinceSwitch)
		}
		if want := domain.WholeDaysBetween(r.Switch, r.Time); r.DaysSinceSwitch != want {
			p.errorf("%s: DAYS_FROM_DST_SWITCH %d, want %d", r.ID(), r.DaysSinceSwitch, want)
		}
	}
	return p
}

func validateSolarOffset(rows []domain.FusedAccident, width float64) *phase {
	p := &phase{name: "Phase 3: solar offset arithmetic"}
	for _, r := range rows {
		want := domain.DeriveSolarOffset(r, width)
		if math.Abs(r.LongitudeOffset-want.LongitudeOffset) > tolerance {
			p.errorf("%s: OFFSET_LNG %g, want %g", r.ID(), r.LongitudeOffset, want.LongitudeOffset)
		}
		if r.OffsetMinutes != want.OffsetMinutes {
			p.errorf("%s: OFFSET_MINUTES %g, want %g", r.ID(), r.OffsetMinutes, want.OffsetMinutes)
		}
		if math.Mod(r.OffsetMinutes, width) != 0 {
			p.errorf("%s: OFFSET_MINUTES %g not a multiple of %g", r.ID(), r.OffsetMinutes, width)
		}
	}
	return p
}

func validateOrdering(rows []domain.FusedAccident) *phase {
	p := &phase{name: "Phase 4: ordering and unique keys"}
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		if i > 0 && r.Time.Before(rows[i-1].Time) {
			p.errorf("row %d: %s precedes previous row %s", i+1, r.Time, rows[i-1].Time)
		}
		if seen[r.ID()] {
			p.errorf("duplicate key %s", r.ID())
		}
		seen[r.ID()] = true
	}
	return p
}

func validateTransitions(rows []domain.FusedAccident, transitions []domain.Transition) *phase {
	p := &phase{name: "Phase 5: switch is the latest transition"}
	for _, r := range rows {
		tr, ok := fusion.LatestAtOrBefore(transitions, r.Time)
		if !ok {
			p.errorf("%s: no transition at or before %s", r.ID(), r.Time)
			continue
		}
		if !tr.Time.Equal(r.Switch) || tr.Delta != r.Delta {
			p.errorf("%s: switch %s (%+d), want %s (%+d)", r.ID(), r.Switch, r.Delta, tr.Time, tr.Delta)
		}
	}
	return p
}

func validateSun(rows []domain.FusedAccident, width float64) *phase {
	p := &phase{name: "Phase 6: offset agrees with solar noon"}
	skipped := 0
	for _, r := range rows {
		ok, noon, err := analysis.SunAgreement(r, width)
		if err != nil {
			// No sunrise or sunset at high latitude.
			skipped++
			continue
		}
		if !ok {
			p.errorf("%s: OFFSET_MINUTES %g, solar noon offset %.1f", r.ID(), r.OffsetMinutes, noon)
		}
	}
	if skipped > 0 {
		fmt.Printf("  solar noon unavailable for %d rows, skipped\n", skipped)
	}
	return p
}

func parseInts(s string) (map[int]bool, error) {
	out := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
