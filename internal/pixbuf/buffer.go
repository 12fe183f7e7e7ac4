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
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// An 8-bit pixel buffer. Pixels are stored row-major, with interleaved
// channels in R, G, B[, A] order.
type Buffer struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Width    int // Pixels per row
	Height   int // Number of rows
	Channels int // 3 for RGB, 4 for RGBA

	Pix []uint8 // The pixel data, Width*Height*Channels bytes

	Stats *Stats // Per-channel statistics, if calculated
}

// Creates a buffer from the given dimensions and data. Data is not copied,
// and allocated if nil. Returns an InvalidBufferError for inconsistent input
func NewBuffer(width, height, channels int, pix []uint8) (*Buffer, error) {
	if pix == nil && width > 0 && height > 0 && (channels == 3 || channels == 4) {
		pix = make([]uint8, width*height*channels)
	}
	b := &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      pix,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Creates an RGBA buffer from a decoded Go image. Converts to non-premultiplied RGBA if necessary
func NewBufferFromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &Buffer{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Pix:      nrgba.Pix,
	}
}

// Returns a Go image sharing the pixel data of an RGBA buffer. RGB buffers
// are copied into a new image with opaque alpha
func (b *Buffer) Image() *image.NRGBA {
	rect := image.Rect(0, 0, b.Width, b.Height)
	if b.Channels == 4 {
		return &image.NRGBA{Pix: b.Pix, Stride: 4 * b.Width, Rect: rect}
	}
	img := image.NewNRGBA(rect)
	for i, o := 0, 0; i < len(b.Pix); i, o = i+3, o+4 {
		img.Pix[o] = b.Pix[i]
		img.Pix[o+1] = b.Pix[i+1]
		img.Pix[o+2] = b.Pix[i+2]
		img.Pix[o+3] = 255
	}
	return img
}

// Returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	c := *b
	c.Pix = append([]uint8(nil), b.Pix...)
	c.Stats = nil
	return &c
}

// Checks the buffer dimensions against its pixel data
func (b *Buffer) Validate() error {
	if b == nil {
		return &InvalidBufferError{Reason: "nil buffer"}
	}
	if b.Width <= 0 || b.Height <= 0 {
		return &InvalidBufferError{b.Width, b.Height, b.Channels, len(b.Pix), "width and height must be positive"}
	}
	if b.Channels != 3 && b.Channels != 4 {
		return &InvalidBufferError{b.Width, b.Height, b.Channels, len(b.Pix), "channels must be 3 or 4"}
	}
	if len(b.Pix) != b.Width*b.Height*b.Channels {
		return &InvalidBufferError{b.Width, b.Height, b.Channels, len(b.Pix), "pixel data length mismatch"}
	}
	return nil
}

// Returns the pixel data of row y
func (b *Buffer) Row(y int) []uint8 {
	stride := b.Width * b.Channels
	return b.Pix[y*stride : (y+1)*stride]
}

// Returns the offset of the first channel of pixel (x,y) in Pix
func (b *Buffer) PixOffset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

func (b *Buffer) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx%d", b.Width, b.Height, b.Channels)
}

// Invalid buffer dimensions or pixel data. Returned before any processing takes place
type InvalidBufferError struct {
	Width    int
	Height   int
	Channels int
	Len      int
	Reason   string
}

func (e *InvalidBufferError) Error() string {
	return fmt.Sprintf("invalid buffer %dx%dx%d with %d bytes: %s", e.Width, e.Height, e.Channels, e.Len, e.Reason)
}
