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

// Mutes colors by pulling each pixel partway toward its luma
type OpDesaturate struct {
	ops.OpUnaryBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDesaturateDefault() }) } // register the operator for JSON decoding

func NewOpDesaturateDefault() *OpDesaturate { return NewOpDesaturate(true) }

func NewOpDesaturate(active bool) *OpDesaturate {
	op := &OpDesaturate{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "desaturate", Active: active}},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDesaturate) UnmarshalJSON(data []byte) error {
	type defaults OpDesaturate
	def := defaults(*NewOpDesaturateDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpDesaturate(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpDesaturate) Apply(b *pixbuf.Buffer, c *ops.Context) (bOut *pixbuf.Buffer, err error) {
	if !op.Active {
		return b, nil
	}
	fmt.Fprintf(c.Log, "%d: Desaturating toward luma\n", b.ID)
	b.Desaturate(c.MaxThreads)
	return b, nil
}
