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
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type validateTestCase struct {
	Width, Height, Channels, Len int
	Valid                        bool
}

func TestValidate(t *testing.T) {
	tcs := []validateTestCase{
		{2, 2, 4, 16, true},
		{2, 2, 3, 12, true},
		{0, 2, 4, 0, false},
		{2, -1, 4, 0, false},
		{2, 2, 2, 8, false},
		{2, 2, 4, 15, false},
		{2, 2, 3, 16, false},
	}
	for _, tc := range tcs {
		b := &Buffer{Width: tc.Width, Height: tc.Height, Channels: tc.Channels, Pix: make([]uint8, tc.Len)}
		err := b.Validate()
		if tc.Valid && err != nil {
			t.Errorf("%v: unexpected error %s", tc, err)
		}
		if !tc.Valid {
			var ibe *InvalidBufferError
			if !errors.As(err, &ibe) {
				t.Errorf("%v: got %v; want InvalidBufferError", tc, err)
			}
		}
	}
}

func TestValidateNil(t *testing.T) {
	var b *Buffer
	var ibe *InvalidBufferError
	if err := b.Validate(); !errors.As(err, &ibe) || ibe.Reason != "nil buffer" {
		t.Errorf("got %v; want InvalidBufferError for nil buffer", err)
	}
}

func TestNewBufferAllocates(t *testing.T) {
	b, err := NewBuffer(3, 2, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Pix) != 24 {
		t.Errorf("len(Pix) = %d; want 24", len(b.Pix))
	}
	if _, err := NewBuffer(0, 2, 4, nil); err == nil {
		t.Errorf("NewBuffer(0,2,4) succeeded; want error")
	}
}

func TestImageConversion(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 13, 22))
	src.Set(10, 20, color.RGBA{1, 2, 3, 255})
	src.Set(12, 21, color.RGBA{250, 128, 0, 255})

	b := NewBufferFromImage(src)
	if b.Width != 3 || b.Height != 2 || b.Channels != 4 {
		t.Fatalf("dimensions %s; want 3x2x4", b.DimensionsToString())
	}
	if got := b.Pix[b.PixOffset(0, 0) : b.PixOffset(0, 0)+4]; !bytes.Equal(got, []uint8{1, 2, 3, 255}) {
		t.Errorf("pixel (0,0) = %v", got)
	}
	if got := b.Pix[b.PixOffset(2, 1) : b.PixOffset(2, 1)+4]; !bytes.Equal(got, []uint8{250, 128, 0, 255}) {
		t.Errorf("pixel (2,1) = %v", got)
	}

	rgb, _ := NewBuffer(1, 1, 3, []uint8{9, 8, 7})
	img := rgb.Image()
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{9, 8, 7, 255}) {
		t.Errorf("RGB buffer image pixel = %v", got)
	}
}

func TestPNGRoundTripPreservesBytes(t *testing.T) {
	b := randomBuffer(t, 7, 5, 4)
	for i := 3; i < len(b.Pix); i += 4 {
		b.Pix[i] = 255
	}
	fileName := filepath.Join(t.TempDir(), "out.png")
	if err := b.WriteFile(fileName, 95); err != nil {
		t.Fatal(err)
	}
	c, err := NewBufferFromFile(fileName, 3, Limits{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 3 || c.FileName != fileName {
		t.Errorf("ID %d FileName %s", c.ID, c.FileName)
	}
	if !bytes.Equal(b.Pix, c.Pix) {
		t.Errorf("PNG round trip changed pixel data")
	}
}

func TestEncodeFormats(t *testing.T) {
	b := randomBuffer(t, 4, 4, 3)
	for _, format := range []string{"jpeg", "png", "tiff", "bmp"} {
		var buf bytes.Buffer
		if err := b.Encode(&buf, format, 90); err != nil {
			t.Errorf("encode %s: %s", format, err)
			continue
		}
		c, got, err := Decode(&buf, Limits{})
		if err != nil {
			t.Errorf("decode %s: %s", format, err)
			continue
		}
		if got != format {
			t.Errorf("decoded format %s; want %s", got, format)
		}
		if c.Width != 4 || c.Height != 4 {
			t.Errorf("%s: decoded %s", format, c.DimensionsToString())
		}
	}
}

func TestSaveErrors(t *testing.T) {
	b := randomBuffer(t, 2, 2, 3)
	err := b.WriteFile(filepath.Join(t.TempDir(), "out.xyz"), 90)
	var se *SaveError
	if !errors.As(err, &se) {
		t.Errorf("unknown suffix: got %v; want SaveError", err)
	}
	err = b.WriteFile(filepath.Join(t.TempDir(), "missing", "out.png"), 90)
	if !errors.As(err, &se) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing directory: got %v; want SaveError wrapping ErrNotExist", err)
	}
}

func TestLoadErrors(t *testing.T) {
	_, _, err := Decode(strings.NewReader("not an image"), Limits{})
	var le *LoadError
	if !errors.As(err, &le) {
		t.Errorf("garbage: got %v; want LoadError", err)
	}

	_, err = NewBufferFromFile(filepath.Join(t.TempDir(), "none.png"), 0, Limits{}, nil)
	if !errors.As(err, &le) || le.FileName == "" {
		t.Errorf("missing file: got %v; want LoadError with file name", err)
	}

	var buf bytes.Buffer
	png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 100, 100)))
	_, _, err = Decode(&buf, Limits{MaxBytes: 1000})
	if !errors.As(err, &le) {
		t.Errorf("oversized: got %v; want LoadError", err)
	}
}

func TestDecodeDownscales(t *testing.T) {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 400, 100)))
	b, _, err := Decode(&buf, Limits{MaxDim: 200})
	if err != nil {
		t.Fatal(err)
	}
	if b.Width != 200 || b.Height != 50 {
		t.Errorf("downscaled to %s; want 200x50x4", b.DimensionsToString())
	}
}

func TestStats(t *testing.T) {
	b, _ := NewBuffer(2, 1, 3, []uint8{10, 20, 30, 30, 20, 10})
	s := NewStats(b)
	if s.Channels[0].Min != 10 || s.Channels[0].Max != 30 || s.Channels[0].Mean != 20 {
		t.Errorf("red stats %+v", s.Channels[0])
	}
	if s.Channels[1].StdDev != 0 {
		t.Errorf("green stddev %g; want 0", s.Channels[1].StdDev)
	}
	if !strings.HasPrefix(s.String(), "R[min 10 max 30") {
		t.Errorf("String() = %s", s.String())
	}

	one, _ := NewBuffer(1, 1, 3, []uint8{1, 2, 3})
	if s := NewStats(one); s.Channels[2].Mean != 3 || s.Channels[2].StdDev != 0 {
		t.Errorf("1x1 stats %+v", s.Channels[2])
	}
}
