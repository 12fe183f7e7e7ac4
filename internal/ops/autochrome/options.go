// Copyright (C) 2024 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package autochrome

import (
	"fmt"
	"math"
)

// Grain intensity when the film grain option is absent or zero
type GrainPolicy string

const (
	GrainUnsetDefault GrainPolicy = "default" // apply DefaultGrainIntensity
	GrainUnsetOff     GrainPolicy = "off"     // apply no grain
)

const (
	DefaultGrainIntensity = 15 // grain intensity when filmGrain is unset and the policy is GrainUnsetDefault
	MaxGrainIntensity     = 30 // grain intensity at filmGrain=100
)

// Parses a grain policy. The empty string selects GrainUnsetDefault
func ParseGrainPolicy(s string) (GrainPolicy, error) {
	switch GrainPolicy(s) {
	case "", GrainUnsetDefault:
		return GrainUnsetDefault, nil
	case GrainUnsetOff:
		return GrainUnsetOff, nil
	}
	return "", fmt.Errorf("unknown grain policy '%s', expecting off or default", s)
}

// Processing options. Nil pointers are absent values. Tints and grain are percentages in [0,100]
type Options struct {
	YellowTint     *float64    `json:"yellowTint,omitempty"`
	GreenTint      *float64    `json:"greenTint,omitempty"`
	MagentaTint    *float64    `json:"magentaTint,omitempty"`
	FilmGrain      *float64    `json:"filmGrain,omitempty"`
	GrainWhenUnset GrainPolicy `json:"grainWhenUnset,omitempty"`
	Seed           uint32      `json:"seed,omitempty"` // grain seed, 0=random
}

// Returns a pointer to v, for filling in Options
func Percent(v float64) *float64 { return &v }

// An option outside [0,100] which has been clamped. Not fatal
type OptionRangeWarning struct {
	Option  string
	Value   float64
	Clamped float64
}

func (w *OptionRangeWarning) Error() string {
	return fmt.Sprintf("option %s=%g outside [0,100], using %g", w.Option, w.Value, w.Clamped)
}

// Returns a copy of the options with all present values clamped to [0,100],
// and a warning for each value that had to be clamped
func (o Options) Normalize() (res Options, warnings []*OptionRangeWarning) {
	res = o
	clamp := func(name string, v *float64) *float64 {
		if v == nil {
			return nil
		}
		c := clampPercent(*v)
		if c != *v {
			warnings = append(warnings, &OptionRangeWarning{Option: name, Value: *v, Clamped: c})
		}
		return &c
	}
	res.GreenTint = clamp("greenTint", o.GreenTint)
	res.MagentaTint = clamp("magentaTint", o.MagentaTint)
	res.YellowTint = clamp("yellowTint", o.YellowTint)
	res.FilmGrain = clamp("filmGrain", o.FilmGrain)
	if res.GrainWhenUnset == "" {
		res.GrainWhenUnset = GrainUnsetDefault
	}
	return res, warnings
}

// Returns the grain intensity: filmGrain/100*30 if filmGrain is present and non-zero,
// else the intensity the grain policy selects
func (o Options) GrainIntensity() float64 {
	if o.FilmGrain != nil {
		if g := clampPercent(*o.FilmGrain); g != 0 {
			return g / 100 * MaxGrainIntensity
		}
	}
	if o.GrainWhenUnset == GrainUnsetOff {
		return 0
	}
	return DefaultGrainIntensity
}

// Clamps a percentage to [0,100]. NaN maps to 0
func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
