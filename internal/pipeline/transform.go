package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/dst-accident-etl/internal/fusion"
	"github.com/couchcryptid/dst-accident-etl/internal/reference"
)

// loadReference loads the lookup tables fusion joins against. They are small and
// read on every run. Overrides are only read when they will be applied.
func (p *Pipeline) loadReference() (fusion.Reference, error) {
	var ref fusion.Reference

	zones, err := reference.LoadTimezones(filepath.Join(p.opts.RawDir, TimezonesFile))
	if err != nil {
		return ref, fmt.Errorf("load timezones: %w", err)
	}
	ref.Timezones = zones

	if p.opts.ApplyOverrides {
		overrides, err := reference.LoadTimezoneOverrides(filepath.Join(p.opts.RawDir, OverridesFile))
		if err != nil {
			return ref, fmt.Errorf("load timezone overrides: %w", err)
		}
		ref.Overrides = overrides
	}

	transitions, err := reference.LoadTransitions(filepath.Join(p.opts.RawDir, TransitionsFile))
	if err != nil {
		return ref, fmt.Errorf("load dst transitions: %w", err)
	}
	ref.Transitions = transitions

	p.logger.Info("reference tables loaded",
		"timezones", len(ref.Timezones),
		"overrides", len(ref.Overrides),
		"transitions", len(ref.Transitions),
	)
	return ref, nil
}
