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
	"encoding/json"
	"fmt"

	"github.com/mlnoga/autochrome/internal/ops"
	"github.com/mlnoga/autochrome/internal/pixbuf"
)

// Adds synthetic film grain: the same uniform brightness noise on all three channels of a pixel
type OpGrain struct {
	ops.OpUnaryBase
	Intensity float64 `json:"intensity"` // width of the noise interval, in 8-bit steps
	Seed      uint32  `json:"seed"`      // 0=random
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpGrainDefault() }) } // register the operator for JSON decoding

func NewOpGrainDefault() *OpGrain { return NewOpGrain(DefaultGrainIntensity, 0) }

func NewOpGrain(intensity float64, seed uint32) *OpGrain {
	op := &OpGrain{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "grain", Active: intensity > 0}},
		Intensity:   intensity,
		Seed:        seed,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpGrain) UnmarshalJSON(data []byte) error {
	type defaults OpGrain
	def := defaults(*NewOpGrainDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpGrain(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Returns the random source for this operator. The context source takes
// precedence, then the seed of the operator, then a fresh random seed
func (op *OpGrain) randFactory(c *ops.Context) pixbuf.RandFactory {
	if c.Rand != nil {
		return c.Rand
	}
	if op.Seed != 0 {
		return pixbuf.NewSeededRandFactory(op.Seed)
	}
	return pixbuf.NewRandomRandFactory()
}

func (op *OpGrain) Apply(b *pixbuf.Buffer, c *ops.Context) (bOut *pixbuf.Buffer, err error) {
	if !op.Active || op.Intensity <= 0 {
		return b, nil
	}
	fmt.Fprintf(c.Log, "%d: Adding film grain with intensity %.4g\n", b.ID, op.Intensity)
	b.AddGrain(op.Intensity, op.randFactory(c), c.MaxThreads)
	return b, nil
}
