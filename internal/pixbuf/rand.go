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
	"github.com/valyala/fastrand"
)

// A source of uniformly distributed 32-bit random numbers. Not safe for concurrent use
type Rand interface {
	Uint32() uint32
}

// Returns an independent random source for the given row of an image.
// Must return the same sequence for the same row on every call, so results
// do not depend on how rows are spread across goroutines
type RandFactory func(row int) Rand

// Returns a factory of fastrand generators, seeded per row from the given seed
func NewSeededRandFactory(seed uint32) RandFactory {
	return func(row int) Rand {
		rng := &fastrand.RNG{}
		rng.Seed(rowSeed(seed, row))
		return rng
	}
}

// Returns a factory seeded from a fresh random seed
func NewRandomRandFactory() RandFactory {
	return NewSeededRandFactory(fastrand.Uint32())
}

// Mixes seed and row into a non-zero generator state. fastrand treats a zero
// state as unseeded and would draw a random one
func rowSeed(seed uint32, row int) uint32 {
	x := seed ^ (uint32(row)+1)*0x9e3779b9
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	x *= 0xc2b2ae35
	x ^= x >> 16
	if x == 0 {
		x = 0x6d2b79f5
	}
	return x
}

// Returns a uniformly distributed float64 in [0,1)
func Float64(r Rand) float64 {
	return float64(r.Uint32()) / (1 << 32)
}
