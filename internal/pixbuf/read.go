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
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Limits applied while decoding
type Limits struct {
	MaxDim   int    // Downscale so the longest side is at most this many pixels. 0=no limit
	MaxBytes uint64 // Refuse images whose decoded RGBA buffer exceeds this size. 0=no limit
}

// Failure to read or decode an image
type LoadError struct {
	FileName string
	Err      error
}

func (e *LoadError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("error loading image: %s", e.Err.Error())
	}
	return fmt.Sprintf("error loading image %s: %s", e.FileName, e.Err.Error())
}

func (e *LoadError) Unwrap() error { return e.Err }

// Reads and decodes the image file with the given name into an RGBA buffer
func NewBufferFromFile(fileName string, id int, limits Limits, logWriter io.Writer) (*Buffer, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, &LoadError{fileName, err}
	}
	defer f.Close()

	b, format, err := Decode(f, limits)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.FileName = fileName
		}
		return nil, err
	}
	b.ID = id
	b.FileName = fileName
	if logWriter != nil {
		fmt.Fprintf(logWriter, "%d: Decoded %s image %s\n", id, format, b.DimensionsToString())
	}
	return b, nil
}

// Decodes an image in any registered format into an RGBA buffer. Returns the format name
func Decode(r io.Reader, limits Limits) (b *Buffer, format string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", &LoadError{Err: err}
	}

	// check dimensions before allocating the full image
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &LoadError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, &LoadError{Err: fmt.Errorf("empty %s image %dx%d", format, cfg.Width, cfg.Height)}
	}
	size := uint64(cfg.Width) * uint64(cfg.Height) * 4
	if limits.MaxBytes > 0 && size > limits.MaxBytes {
		return nil, format, &LoadError{Err: fmt.Errorf("%s image %dx%d needs %d MiB, exceeding limit of %d MiB",
			format, cfg.Width, cfg.Height, size>>20, limits.MaxBytes>>20)}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, &LoadError{Err: err}
	}
	return NewBufferFromImage(downscale(img, limits.MaxDim)), format, nil
}

// Downscales the image so its longest side is at most maxDim, preserving the aspect ratio
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	var nw, nh int
	if w >= h {
		nw, nh = maxDim, (h*maxDim+w/2)/w
	} else {
		nw, nh = (w*maxDim+h/2)/h, maxDim
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
