package tax

import (
	"sort"

	taxerrors "income-tax/pkg/errors"
)

type scheduleKey struct {
	regime    Regime
	alternate bool
}

// Registry maps (regime, revision flag) to a schedule. It is immutable once built.
type Registry struct {
	schedules map[scheduleKey]Schedule
}

// NewRegistry validates the schedules and indexes them.
// Every regime needs a default (non-alternate) revision; an alternate one is optional.
func NewRegistry(schedules ...Schedule) (*Registry, error) {
	r := &Registry{schedules: make(map[scheduleKey]Schedule, len(schedules))}

	for _, s := range schedules {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		key := scheduleKey{regime: s.Regime, alternate: s.Alternate}
		if _, exists := r.schedules[key]; exists {
			return nil, taxerrors.NewDuplicateScheduleError(string(s.Regime), s.Alternate)
		}
		r.schedules[key] = s
	}

	for key := range r.schedules {
		if _, ok := r.schedules[scheduleKey{regime: key.regime}]; !ok {
			return nil, taxerrors.NewMalformedScheduleError("regime %q has an alternate revision but no default revision", key.regime)
		}
	}

	return r, nil
}

// Lookup returns the schedule for a regime. Asking for the alternate revision of a
// regime that has none yields its default revision.
func (r *Registry) Lookup(regime Regime, alternate bool) (Schedule, error) {
	if alternate {
		if s, ok := r.schedules[scheduleKey{regime: regime, alternate: true}]; ok {
			return s, nil
		}
	}
	s, ok := r.schedules[scheduleKey{regime: regime}]
	if !ok {
		return Schedule{}, taxerrors.NewUnknownRegimeError(string(regime))
	}
	return s, nil
}

// HasAlternate reports whether the regime offers an alternate slab revision
func (r *Registry) HasAlternate(regime Regime) bool {
	_, ok := r.schedules[scheduleKey{regime: regime, alternate: true}]
	return ok
}

// Schedules returns every schedule ordered by regime, default revision first
func (r *Registry) Schedules() []Schedule {
	out := make([]Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Regime != out[j].Regime {
			return out[i].Regime < out[j].Regime
		}
		return !out[i].Alternate && out[j].Alternate
	})
	return out
}

// Regimes returns the configured regimes in sorted order
func (r *Registry) Regimes() []Regime {
	var out []Regime
	for _, s := range r.Schedules() {
		if !s.Alternate {
			out = append(out, s.Regime)
		}
	}
	return out
}
