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
	"math"
)

//////////////////////////////////////////////////////////////////
// Per-pixel color operations. Parallelized across rows
//////////////////////////////////////////////////////////////////

// A row function. Operates in-place on the interleaved pixels of row y.
// Must not touch any other row
type RowFunction func(y int, row []uint8)

// Apply given row function to all rows of the buffer, using at most maxThreads
// goroutines. Operates in-place. Returns after all rows have been processed
func (b *Buffer) ApplyRowFunction(rf RowFunction, maxThreads int) {
	if maxThreads < 1 {
		maxThreads = 1
	}
	if maxThreads == 1 || b.Height == 1 {
		for y := 0; y < b.Height; y++ {
			rf(y, b.Row(y))
		}
		return
	}

	// split into 8*maxThreads work packages of adjacent rows, limit parallelism to maxThreads
	numBatches := 8 * maxThreads
	batchSize := (b.Height + numBatches - 1) / numBatches
	sem := make(chan bool, maxThreads)
	for lower := 0; lower < b.Height; lower += batchSize {
		upper := lower + batchSize
		if upper > b.Height {
			upper = b.Height
		}

		sem <- true
		go func(lower, upper int) {
			defer func() { <-sem }()
			for y := lower; y < upper; y++ {
				rf(y, b.Row(y))
			}
		}(lower, upper)
	}

	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// Blends a constant color into the buffer with the given strength in [0,1].
// Per channel, blended=base*tint/255 and result=base+strength*(blended-base)
func (b *Buffer) ApplyTint(tint [3]uint8, strength float64, maxThreads int) {
	if strength <= 0 {
		return
	}
	if strength > 1 {
		strength = 1
	}

	// the result depends only on the base value, so tabulate it per channel
	var lut [3][256]uint8
	for c := 0; c < 3; c++ {
		t := float64(tint[c])
		for v := 0; v < 256; v++ {
			base := float64(v)
			blended := base * t / 255
			lut[c][v] = clampToUint8(math.Floor(base + strength*(blended-base)))
		}
	}

	channels := b.Channels
	b.ApplyRowFunction(func(y int, row []uint8) {
		for i := 0; i < len(row); i += channels {
			row[i] = lut[0][row[i]]
			row[i+1] = lut[1][row[i+1]]
			row[i+2] = lut[2][row[i+2]]
		}
	}, maxThreads)
}

// Pulls each pixel 30% of the way toward its own luma floor((R+G+B)/3).
// Uses exact integer arithmetic, so gray pixels remain unchanged
func (b *Buffer) Desaturate(maxThreads int) {
	channels := b.Channels
	b.ApplyRowFunction(func(y int, row []uint8) {
		for i := 0; i < len(row); i += channels {
			r, g, bl := int(row[i]), int(row[i+1]), int(row[i+2])
			luma3 := 3 * ((r + g + bl) / 3)
			row[i] = uint8((7*r + luma3) / 10)
			row[i+1] = uint8((7*g + luma3) / 10)
			row[i+2] = uint8((7*bl + luma3) / 10)
		}
	}, maxThreads)
}

// Adds film grain. Draws one sample per pixel uniformly from [-intensity/2, intensity/2),
// truncates it toward zero and adds it to all three color channels, clamping to [0,255].
// Each row draws from its own generator provided by rf
func (b *Buffer) AddGrain(intensity float64, rf RandFactory, maxThreads int) {
	if intensity <= 0 {
		return
	}
	channels := b.Channels
	b.ApplyRowFunction(func(y int, row []uint8) {
		rng := rf(y)
		for i := 0; i < len(row); i += channels {
			delta := GrainDelta(Float64(rng), intensity)
			row[i] = clampIntToUint8(int(row[i]) + delta)
			row[i+1] = clampIntToUint8(int(row[i+1]) + delta)
			row[i+2] = clampIntToUint8(int(row[i+2]) + delta)
		}
	}, maxThreads)
}

// Returns the grain delta AddGrain applies to the pixel drawing the given uniform sample in [0,1)
func GrainDelta(sample, intensity float64) int {
	if intensity <= 0 {
		return 0
	}
	return int(sample*intensity - intensity/2)
}

// Darkens each pixel by factor 1-0.5*(d/maxDist)^2, where d is the distance to the
// center pixel (W/2, H/2) and maxDist the distance from the center to pixel (0,0)
func (b *Buffer) Vignette(maxThreads int) {
	channels := b.Channels
	width, height := b.Width, b.Height
	b.ApplyRowFunction(func(y int, row []uint8) {
		for x := 0; x < width; x++ {
			factor := VignetteFactor(x, y, width, height)
			if factor == 1 {
				continue
			}
			i := x * channels
			row[i] = uint8(math.Floor(float64(row[i]) * factor))
			row[i+1] = uint8(math.Floor(float64(row[i+1]) * factor))
			row[i+2] = uint8(math.Floor(float64(row[i+2]) * factor))
		}
	}, maxThreads)
}

// Returns the vignette factor for pixel (x,y) of a width x height image, in [0.5,1]
func VignetteFactor(x, y, width, height int) float64 {
	cx, cy := width/2, height/2
	maxDistSq := cx*cx + cy*cy
	if maxDistSq == 0 {
		return 1
	}
	dx, dy := x-cx, y-cy
	return 1 - 0.5*float64(dx*dx+dy*dy)/float64(maxDistSq)
}

func clampToUint8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampIntToUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
