// Copyright (C) 2020 Markus L. Noga
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

package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/autochrome/internal/pixbuf"
)

func testBuffer(t *testing.T, id int, value uint8) *pixbuf.Buffer {
	b, err := pixbuf.NewBuffer(3, 2, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range b.Pix {
		b.Pix[i] = value
	}
	b.ID = id
	return b
}

func TestMaterializeAll(t *testing.T) {
	var ins []Promise
	for i := 0; i < 10; i++ {
		ins = append(ins, NewPromise(testBuffer(t, i, uint8(i))))
	}
	outs, err := MaterializeAll(ins, 3, false)
	if err != nil {
		t.Fatalf("MaterializeAll: %v", err)
	}
	if len(outs) != 10 {
		t.Fatalf("got %d outputs, want 10", len(outs))
	}
	for i, b := range outs {
		if b.ID != i {
			t.Errorf("output %d has id %d", i, b.ID)
		}
	}

	outs, err = MaterializeAll(ins, 3, true)
	if err != nil || len(outs) != 0 {
		t.Errorf("forget: got %d outputs, err %v", len(outs), err)
	}
}

func TestMaterializeAllErrors(t *testing.T) {
	ins := []Promise{
		NewPromise(testBuffer(t, 0, 1)),
		func() (*pixbuf.Buffer, error) { return nil, errors.New("first") },
		NewPromise(testBuffer(t, 2, 1)),
		func() (*pixbuf.Buffer, error) { return nil, errors.New("second") },
	}
	outs, err := MaterializeAll(ins, 2, false)
	if err == nil || !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "second") {
		t.Errorf("got error %v, want both failures", err)
	}
	if len(outs) != 2 {
		t.Errorf("got %d outputs, want 2", len(outs))
	}
}

func TestRemoveNils(t *testing.T) {
	a, b := testBuffer(t, 0, 0), testBuffer(t, 1, 0)
	got := RemoveNils([]*pixbuf.Buffer{nil, a, nil, nil, b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("got %v", got)
	}
}

func TestIsPathAllowed(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"image.png", true},
		{"sub/image.png", true},
		{"/etc/passwd", false},
		{"../image.png", false},
		{"sub/../../image.png", false},
	}
	for _, test := range tests {
		if got := IsPathAllowed(test.path); got != test.want {
			t.Errorf("%s: got %v, want %v", test.path, got, test.want)
		}
	}
}

func TestOpSaveFileName(t *testing.T) {
	tests := []struct {
		pattern string
		id      int
		want    string
	}{
		{"out.jpg", 3, "out.jpg"},
		{"out%d.png", 3, "out3.png"},
		{"out%04d.tif", 12, "out0012.tif"},
		{"out-%3d.bmp", 7, "out-  7.bmp"},
	}
	for _, test := range tests {
		op := NewOpSave(test.pattern)
		if got := op.FileName(test.id); got != test.want {
			t.Errorf("%s: got %s, want %s", test.pattern, got, test.want)
		}
		if op.IsPattern() != (test.pattern != test.want) {
			t.Errorf("%s: IsPattern %v", test.pattern, op.IsPattern())
		}
	}
}

func TestOpSaveUnknownSuffix(t *testing.T) {
	var log bytes.Buffer
	c := NewContext(&log)
	_, err := NewOpSave(filepath.Join(t.TempDir(), "out.xyz")).Apply(testBuffer(t, 0, 0), c)
	var se *pixbuf.SaveError
	if !errors.As(err, &se) {
		t.Errorf("got %v, want SaveError", err)
	}
}

func TestLoadManyForEachSave(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		b := testBuffer(t, 0, uint8(10*i))
		if err := b.WriteFile(filepath.Join(dir, fmt.Sprintf("in%d.png", i)), 95); err != nil {
			t.Fatal(err)
		}
	}

	var log bytes.Buffer
	c := NewContext(&log)
	c.MaxThreads = 2
	seq := NewOpSequence(
		NewOpLoadMany([]string{filepath.Join(dir, "in*.png")}),
		NewOpForEach(NewOpSave(filepath.Join(dir, "out%d.png"))),
	)
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		t.Fatalf("MakePromises: %v", err)
	}
	outs, err := MaterializeAll(promises, c.MaxThreads, false)
	if err != nil {
		t.Fatalf("MaterializeAll: %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("got %d outputs, want 3", len(outs))
	}
	for _, b := range outs {
		loaded, err := pixbuf.NewBufferFromFile(filepath.Join(dir, fmt.Sprintf("out%d.png", b.ID)), b.ID, pixbuf.Limits{}, nil)
		if err != nil {
			t.Fatalf("reading output %d: %v", b.ID, err)
		}
		if !bytes.Equal(loaded.Pix, b.Pix) {
			t.Errorf("output %d differs from input", b.ID)
		}
	}
	if !strings.Contains(log.String(), "Found 3 files.") {
		t.Errorf("missing file count in log %q", log.String())
	}
}

func TestLoadManyNoMatches(t *testing.T) {
	c := NewContext(&bytes.Buffer{})
	if _, err := NewOpLoadMany([]string{filepath.Join(t.TempDir(), "*.png")}).MakePromises(nil, c); err == nil {
		t.Errorf("expected error for empty glob")
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := NewContext(&bytes.Buffer{})
	promises, err := NewOpLoad(0, filepath.Join(t.TempDir(), "missing.png")).MakePromises(nil, c)
	if err != nil {
		t.Fatal(err)
	}
	_, err = promises[0]()
	var le *pixbuf.LoadError
	if !errors.As(err, &le) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want LoadError wrapping ErrNotExist", err)
	}
}

func TestSequenceJSON(t *testing.T) {
	data := []byte(`{"type":"seq","active":true,"steps":[
		{"type":"loadMany","active":true,"filePatterns":["*.jpg"]},
		{"type":"forEach","operation":{"type":"save","filePattern":"out%d.png"}}
	]}`)
	var seq OpSequence
	if err := json.Unmarshal(data, &seq); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(seq.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(seq.Steps))
	}
	forEach, ok := seq.Steps[1].(*OpForEach)
	if !ok {
		t.Fatalf("step 1 is %T", seq.Steps[1])
	}
	save, ok := forEach.Operation.(*OpSave)
	if !ok || save.FilePattern != "out%d.png" || !save.Active {
		t.Fatalf("operation decoded as %#v", forEach.Operation)
	}

	out, err := json.Marshal(&seq)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var again OpSequence
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("Unmarshal of %s: %v", out, err)
	}
	if len(again.Steps) != 2 || again.Steps[0].GetType() != "loadMany" {
		t.Errorf("round trip lost steps: %s", out)
	}
}

func TestUnknownOperatorType(t *testing.T) {
	if _, err := UnmarshalOperator([]byte(`{"type":"nope"}`)); err == nil {
		t.Errorf("expected error for unknown type")
	}
}

func TestReRegisteringPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	SetOperatorFactory(func() Operator { return NewOpSaveDefault() })
}
