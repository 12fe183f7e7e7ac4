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

package pixbuf

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Maximum number of pixels sampled for mean and standard deviation
const statsMaxSamples = 1 << 16

// Basic statistics of one color channel
type ChannelStats struct {
	Min    uint8
	Max    uint8
	Mean   float64
	StdDev float64
}

// Basic statistics of the R, G and B channels of a buffer
type Stats struct {
	Channels [3]ChannelStats
}

// Calculates per-channel statistics. Min and max are exact, mean and standard
// deviation are estimated from a regular sample of at most statsMaxSamples pixels
func NewStats(b *Buffer) *Stats {
	pixels := b.Width * b.Height
	step := (pixels + statsMaxSamples - 1) / statsMaxSamples
	samples := make([][]float64, 3)
	for c := range samples {
		samples[c] = make([]float64, 0, (pixels+step-1)/step)
	}

	s := &Stats{}
	for c := 0; c < 3; c++ {
		s.Channels[c].Min = 255
	}
	for p := 0; p < pixels; p++ {
		o := p * b.Channels
		for c := 0; c < 3; c++ {
			v := b.Pix[o+c]
			if v < s.Channels[c].Min {
				s.Channels[c].Min = v
			}
			if v > s.Channels[c].Max {
				s.Channels[c].Max = v
			}
			if p%step == 0 {
				samples[c] = append(samples[c], float64(v))
			}
		}
	}
	for c := 0; c < 3; c++ {
		if len(samples[c]) < 2 {
			s.Channels[c].Mean = stat.Mean(samples[c], nil)
			continue
		}
		s.Channels[c].Mean, s.Channels[c].StdDev = stat.MeanStdDev(samples[c], nil)
	}
	return s
}

func (s *Stats) String() string {
	names := "RGB"
	b := strings.Builder{}
	for c, cs := range s.Channels {
		if c > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%c[min %d max %d mean %.4g stddev %.4g]", names[c], cs.Min, cs.Max, cs.Mean, cs.StdDev)
	}
	return b.String()
}
