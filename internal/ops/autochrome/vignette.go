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

// Darkens the image radially, down to half brightness in the corners
type OpVignette struct {
	ops.OpUnaryBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpVignetteDefault() }) } // register the operator for JSON decoding

func NewOpVignetteDefault() *OpVignette { return NewOpVignette(true) }

func NewOpVignette(active bool) *OpVignette {
	op := &OpVignette{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "vignette", Active: active}},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpVignette) UnmarshalJSON(data []byte) error {
	type defaults OpVignette
	def := defaults(*NewOpVignetteDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpVignette(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpVignette) Apply(b *pixbuf.Buffer, c *ops.Context) (bOut *pixbuf.Buffer, err error) {
	if !op.Active {
		return b, nil
	}
	fmt.Fprintf(c.Log, "%d: Applying vignette\n", b.ID)
	b.Vignette(c.MaxThreads)
	return b, nil
}
