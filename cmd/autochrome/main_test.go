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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlnoga/autochrome/internal/ops/autochrome"
	"github.com/mlnoga/autochrome/internal/pixbuf"
)

func writeTestImage(t *testing.T, fileName string, rgba [4]uint8) {
	b, err := pixbuf.NewBuffer(1, 1, 4, rgba[:])
	if err != nil {
		t.Fatal(err)
	}
	if err := b.WriteFile(fileName, 95); err != nil {
		t.Fatal(err)
	}
}

// Tests in this file share the global flags and run in order
func TestOptionsFromFlags(t *testing.T) {
	opts, err := optionsFromFlags()
	if err != nil {
		t.Fatal(err)
	}
	if opts.GreenTint != nil || opts.FilmGrain != nil || opts.GrainWhenUnset != autochrome.GrainUnsetDefault {
		t.Errorf("unset flags decoded as %+v", opts)
	}

	if err := flag.Set("greenTint", "0"); err != nil {
		t.Fatal(err)
	}
	if err := flag.Set("grainWhenUnset", "off"); err != nil {
		t.Fatal(err)
	}
	opts, err = optionsFromFlags()
	if err != nil {
		t.Fatal(err)
	}
	if opts.GreenTint == nil || *opts.GreenTint != 0 || opts.YellowTint != nil {
		t.Errorf("explicit flag not present in %+v", opts)
	}
	if opts.GrainWhenUnset != autochrome.GrainUnsetOff {
		t.Errorf("got policy %q", opts.GrainWhenUnset)
	}
}

func TestCmdProcess(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		writeTestImage(t, filepath.Join(dir, fmt.Sprintf("in%d.png", i)), [4]uint8{200, 100, 50, 255})
	}
	if err := flag.Set("greenTint", "100"); err != nil {
		t.Fatal(err)
	}
	if err := flag.Set("grainWhenUnset", "off"); err != nil {
		t.Fatal(err)
	}
	if err := flag.Set("out", filepath.Join(dir, "out%d.png")); err != nil {
		t.Fatal(err)
	}

	var log bytes.Buffer
	if err := cmdProcess([]string{filepath.Join(dir, "in*.png")}, &log); err != nil {
		t.Fatalf("cmdProcess: %v\n%s", err, log.String())
	}
	for i := 0; i < 2; i++ {
		b, err := pixbuf.NewBufferFromFile(filepath.Join(dir, fmt.Sprintf("out%d.png", i)), i, pixbuf.Limits{}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b.Pix, []uint8{9, 79, 9, 255}) {
			t.Errorf("output %d got %v", i, b.Pix)
		}
	}

	if err := flag.Set("out", filepath.Join(dir, "wide%03d.png")); err != nil {
		t.Fatal(err)
	}
	if err := cmdProcess([]string{filepath.Join(dir, "in*.png")}, &log); err != nil {
		t.Fatalf("cmdProcess: %v\n%s", err, log.String())
	}
	for i := 0; i < 2; i++ {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("wide%03d.png", i))); err != nil {
			t.Errorf("output %d: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "wide%03d.png")); err == nil {
		t.Errorf("pattern written as literal file name")
	}

	if err := flag.Set("out", filepath.Join(dir, "single.png")); err != nil {
		t.Fatal(err)
	}
	if err := cmdProcess([]string{filepath.Join(dir, "in*.png")}, &log); err == nil {
		t.Errorf("expected error for several inputs without %%d in output pattern")
	}
}

func TestCmdProcessOpsFile(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "in.png"), [4]uint8{100, 100, 100, 255})
	opsJSON := `{"type":"seq","active":true,"steps":[{"type":"vignette"},{"type":"desaturate"}]}`
	opsName := filepath.Join(dir, "ops.json")
	if err := os.WriteFile(opsName, []byte(opsJSON), 0644); err != nil {
		t.Fatal(err)
	}
	flag.Set("ops", opsName)
	flag.Set("out", filepath.Join(dir, "out.png"))
	defer flag.Set("ops", "")

	var log bytes.Buffer
	if err := cmdProcess([]string{filepath.Join(dir, "in.png")}, &log); err != nil {
		t.Fatalf("cmdProcess: %v\n%s", err, log.String())
	}
	b, err := pixbuf.NewBufferFromFile(filepath.Join(dir, "out.png"), 0, pixbuf.Limits{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// gray stays gray, single pixel is the vignette center
	if !bytes.Equal(b.Pix, []uint8{100, 100, 100, 255}) {
		t.Errorf("got %v", b.Pix)
	}
}
