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

// Creates the autochrome operator sequence tint, desaturate, grain, vignette
// for the given options. Options should be normalized
func NewOpAutochrome(opts Options) *ops.OpSequence {
	return ops.NewOpSequence(
		NewOpTint(opts.GreenTint, opts.MagentaTint, opts.YellowTint),
		NewOpDesaturate(true),
		NewOpGrain(opts.GrainIntensity(), opts.Seed),
		NewOpVignette(true),
	)
}

// Applies the autochrome look to the buffer in place and returns it.
// Fails only if the buffer is invalid, in which case no stage runs.
// Out of range options are clamped and logged
func Process(b *pixbuf.Buffer, opts Options, c *ops.Context) (*pixbuf.Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	opts, warnings := opts.Normalize()
	for _, w := range warnings {
		fmt.Fprintf(c.Log, "%d: Warning: %s\n", b.ID, w.Error())
	}

	b, err := NewOpAutochrome(opts).Apply(b, c)
	if err != nil {
		return nil, err
	}
	b.Stats = pixbuf.NewStats(b)
	fmt.Fprintf(c.Log, "%d: Processed %s image with %v\n", b.ID, b.DimensionsToString(), b.Stats)
	return b, nil
}

// Applies the autochrome look to each input promise. Takes n inputs, produces n outputs
type OpProcess struct {
	ops.OpUnaryBase
	Options Options `json:"options"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpProcessDefault() }) } // register the operator for JSON decoding

func NewOpProcessDefault() *OpProcess { return NewOpProcess(Options{}) }

func NewOpProcess(opts Options) *OpProcess {
	op := &OpProcess{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "autochrome", Active: true}},
		Options:     opts,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpProcess) UnmarshalJSON(data []byte) error {
	type defaults OpProcess
	def := defaults(*NewOpProcessDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpProcess(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpProcess) Apply(b *pixbuf.Buffer, c *ops.Context) (bOut *pixbuf.Buffer, err error) {
	if !op.Active {
		return b, nil
	}
	return Process(b, op.Options, c)
}
