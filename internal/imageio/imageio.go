// Package imageio converts between PNG files, fixed-size RGBA buffers and the
// normalized tensors the generators consume and produce.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// Size is the side length of every sprite the generators work with.
const Size = 64

// Image is a Size×Size RGBA sprite with 8-bit channels.
type Image struct {
	Pix []uint8
}

// Blank returns a fully transparent sprite.
func Blank() *Image {
	return &Image{Pix: make([]uint8, Size*Size*4)}
}

// FromImage scales img to Size×Size with nearest-neighbor sampling, which
// keeps pixel-art edges sharp.
func FromImage(img image.Image) *Image {
	dst := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return &Image{Pix: dst.Pix}
}

// Decode reads a PNG.
func Decode(r io.Reader) (*Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return FromImage(img), nil
}

// Load reads the PNG at path.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// NRGBA returns the sprite as a standard library image.
func (im *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    im.Pix,
		Stride: Size * 4,
		Rect:   image.Rect(0, 0, Size, Size),
	}
}

// At returns the color of pixel (x, y).
func (im *Image) At(x, y int) color.NRGBA {
	i := (y*Size + x) * 4
	return color.NRGBA{R: im.Pix[i], G: im.Pix[i+1], B: im.Pix[i+2], A: im.Pix[i+3]}
}

// Encode writes the sprite as PNG.
func (im *Image) Encode(w io.Writer) error {
	return png.Encode(w, im.NRGBA())
}

// Save writes the sprite to path as PNG, creating directories as needed.
func (im *Image) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := im.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// Normalized maps every channel from [0,255] to [-1,1].
func (im *Image) Normalized() []float32 {
	out := make([]float32, len(im.Pix))
	for i, v := range im.Pix {
		out[i] = float32(v)/127.5 - 1
	}
	return out
}

// FromNormalized decodes a generator output in [-1,1] to a sprite: each value
// is mapped with v/2+0.5, scaled by 255, rounded and clamped.
func FromNormalized(data []float32) (*Image, error) {
	if len(data) != Size*Size*4 {
		return nil, fmt.Errorf("decode output: want %d values, got %d", Size*Size*4, len(data))
	}
	im := Blank()
	for i, v := range data {
		im.Pix[i] = toByte(float64(v)/2 + 0.5)
	}
	return im, nil
}

// Grayscale renders a single-channel map as an opaque gray sprite, stretching
// its range to [0,1]. It is used to inspect intermediate network outputs.
func Grayscale(data []float32) (*Image, error) {
	if len(data) != Size*Size {
		return nil, fmt.Errorf("decode grayscale: want %d values, got %d", Size*Size, len(data))
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		lo = math.Min(lo, float64(v))
		hi = math.Max(hi, float64(v))
	}
	span := hi - lo

	im := Blank()
	for i, v := range data {
		n := 0.0
		if span > 0 {
			n = (float64(v) - lo) / span
		}
		b := toByte(n)
		im.Pix[i*4], im.Pix[i*4+1], im.Pix[i*4+2], im.Pix[i*4+3] = b, b, b, 255
	}
	return im, nil
}

func toByte(unit float64) uint8 {
	v := math.Round(unit * 255)
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
