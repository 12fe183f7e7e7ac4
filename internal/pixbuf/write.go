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
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Failure to encode or write an image
type SaveError struct {
	FileName string
	Err      error
}

func (e *SaveError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("error saving image: %s", e.Err.Error())
	}
	return fmt.Sprintf("error saving image %s: %s", e.FileName, e.Err.Error())
}

func (e *SaveError) Unwrap() error { return e.Err }

// Returns the output format for the suffix of the given file name, or "" if unknown
func FormatFromFileName(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".tif", ".tiff":
		return "tiff"
	case ".bmp":
		return "bmp"
	}
	return ""
}

// Write the buffer to a file, choosing the format from the file name suffix.
// Quality applies to JPEG only
func (b *Buffer) WriteFile(fileName string, quality int) error {
	format := FormatFromFileName(fileName)
	if format == "" {
		return &SaveError{fileName, errors.New("unknown suffix")}
	}

	file, err := os.Create(fileName)
	if err != nil {
		return &SaveError{fileName, err}
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := b.Encode(writer, format, quality); err != nil {
		if se, ok := err.(*SaveError); ok {
			se.FileName = fileName
		}
		return err
	}
	if err := writer.Flush(); err != nil {
		return &SaveError{fileName, err}
	}
	return nil
}

// Encode the buffer in the given format, one of jpeg, png, tiff or bmp
func (b *Buffer) Encode(writer io.Writer, format string, quality int) error {
	if err := b.Validate(); err != nil {
		return &SaveError{Err: err}
	}
	var err error
	switch format {
	case "jpeg":
		// JPEG has no alpha channel
		err = jpeg.Encode(writer, b.opaqueImage(), &jpeg.Options{Quality: quality})
	case "png":
		err = png.Encode(writer, b.Image())
	case "tiff":
		err = tiff.Encode(writer, b.Image(), &tiff.Options{Compression: tiff.Deflate, Predictor: false})
	case "bmp":
		err = bmp.Encode(writer, b.Image())
	default:
		err = fmt.Errorf("unknown format '%s'", format)
	}
	if err != nil {
		return &SaveError{Err: err}
	}
	return nil
}

// Returns an image of the color channels with alpha ignored
func (b *Buffer) opaqueImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		row := b.Row(y)
		for x := 0; x < b.Width; x++ {
			i := x * b.Channels
			img.SetRGBA(x, y, color.RGBA{row[i], row[i+1], row[i+2], 255})
		}
	}
	return img
}
