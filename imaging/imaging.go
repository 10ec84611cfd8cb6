// imaging.go: Image probing and in-place decoding for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

// Package imaging decodes encoded images into reusable NRGBA memory.
//
// Formats are sniffed from content, not file names. JPEG orientation from EXIF
// is applied while copying into the destination.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG

	"github.com/h2non/filetype"
	"github.com/rwcarlsen/goexif/exif"
)

var (
	// ErrUnsupportedFormat is returned for content that is not PNG, JPEG or GIF.
	ErrUnsupportedFormat = errors.New("imaging: unsupported format")
	// ErrDecode wraps failures of the underlying image decoder.
	ErrDecode = errors.New("imaging: decode failed")
)

// supported maps filetype extensions to image package format names
var supported = map[string]string{
	"png": "png",
	"jpg": "jpeg",
	"gif": "gif",
}

// Info describes an encoded image without decoding its pixels
type Info struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	MIME        string `json:"mime"`
	Orientation int    `json:"orientation"`
}

// Pixels returns width * height
func (i Info) Pixels() int {
	return i.Width * i.Height
}

// Bytes returns the NRGBA memory needed for the image
func (i Info) Bytes() int {
	return 4 * i.Pixels()
}

// OrientedSize returns the size after orientation is applied
func (i Info) OrientedSize() (int, int) {
	if i.Orientation >= 5 && i.Orientation <= 8 {
		return i.Height, i.Width
	}
	return i.Width, i.Height
}

// Decoder is the default pixcache decoder
type Decoder struct{}

// NewDecoder creates a Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Probe reads format, dimensions and orientation
func (d *Decoder) Probe(data []byte) (Info, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return Info{}, ErrUnsupportedFormat
	}
	format, ok := supported[kind.Extension]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind.MIME.Value)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	info := Info{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		MIME:        kind.MIME.Value,
		Orientation: 1,
	}
	if format == "jpeg" {
		info.Orientation = orientation(data)
	}
	return info, nil
}

// Dimensions reads width and height from the image header only
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Decode decodes data into dst when dst has enough pixel memory, otherwise
// into a newly allocated image. The returned image is always the one holding
// the pixels.
func (d *Decoder) Decode(data []byte, dst *image.NRGBA) (*image.NRGBA, error) {
	info, err := d.Probe(data)
	if err != nil {
		return nil, err
	}
	return d.DecodeInfo(data, info, dst)
}

// DecodeInfo is Decode for callers that already probed data. Orientation is
// taken from info; the output size follows the decoded pixels.
//
// The codecs always allocate the source image, so only the NRGBA destination
// is reused.
func (d *Decoder) DecodeInfo(data []byte, info Info, dst *image.NRGBA) (*image.NRGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	oriented := Info{Width: b.Dx(), Height: b.Dy(), Orientation: info.Orientation}
	w, h := oriented.OrientedSize()
	out := Reuse(dst, w, h)
	if info.Orientation <= 1 || info.Orientation > 8 {
		draw.Draw(out, out.Rect, src, b.Min, draw.Src)
		return out, nil
	}
	orient(out, src, info.Orientation)
	return out, nil
}

// Reuse reshapes dst to w x h when its pixel memory is large enough and
// allocates a new image otherwise. Previous pixel content is not cleared.
func Reuse(dst *image.NRGBA, w, h int) *image.NRGBA {
	n := 4 * w * h
	if dst == nil || cap(dst.Pix) < n {
		return image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	dst.Pix = dst.Pix[:n]
	dst.Stride = 4 * w
	dst.Rect = image.Rect(0, 0, w, h)
	return dst
}

// orientation returns the EXIF orientation tag, or 1 when absent
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// orient copies src into dst applying EXIF orientation o (2..8)
func orient(dst *image.NRGBA, src image.Image, o int) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
}
