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

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/autochrome/internal/ops"
	"github.com/mlnoga/autochrome/internal/pixbuf"
)

// A tint color, simulating one dye layer of the autochrome plate
type TintColor struct {
	Name string
	Hex  string
	RGB  [3]uint8
}

// The tint colors, in the order they are applied
var (
	Green   = newTintColor("green", "#00FF00")
	Magenta = newTintColor("magenta", "#FF00FF")
	Yellow  = newTintColor("yellow", "#FFFF00")
)

func newTintColor(name, hex string) TintColor {
	col, err := colorful.Hex(hex)
	if err != nil {
		panic(fmt.Sprintf("error parsing tint color %s: %s", hex, err.Error()))
	}
	r, g, b := col.RGB255()
	return TintColor{Name: name, Hex: hex, RGB: [3]uint8{r, g, b}}
}

// Multiplicatively blends the green, magenta and yellow tints into the image,
// in that order. Strengths are percentages, nil or <=0 disables a tint
type OpTint struct {
	ops.OpUnaryBase
	Green   *float64 `json:"green,omitempty"`
	Magenta *float64 `json:"magenta,omitempty"`
	Yellow  *float64 `json:"yellow,omitempty"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpTintDefault() }) } // register the operator for JSON decoding

func NewOpTintDefault() *OpTint { return NewOpTint(nil, nil, nil) }

func NewOpTint(green, magenta, yellow *float64) *OpTint {
	op := &OpTint{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "tint", Active: true}},
		Green:       green,
		Magenta:     magenta,
		Yellow:      yellow,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpTint) UnmarshalJSON(data []byte) error {
	type defaults OpTint
	def := defaults(*NewOpTintDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpTint(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpTint) Apply(b *pixbuf.Buffer, c *ops.Context) (bOut *pixbuf.Buffer, err error) {
	if !op.Active {
		return b, nil
	}
	tints := []struct {
		color    TintColor
		strength *float64
	}{
		{Green, op.Green},
		{Magenta, op.Magenta},
		{Yellow, op.Yellow},
	}
	for _, t := range tints {
		if t.strength == nil || !(*t.strength > 0) {
			continue
		}
		s := clampPercent(*t.strength)
		fmt.Fprintf(c.Log, "%d: Applying %s tint %s with strength %.4g%%\n", b.ID, t.color.Name, t.color.Hex, s)
		b.ApplyTint(t.color.RGB, s/100, c.MaxThreads)
	}
	return b, nil
}
