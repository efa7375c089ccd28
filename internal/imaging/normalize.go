// Package imaging turns encoded signature images into the fixed-shape
// grayscale tensors consumed by the similarity model.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/signet/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("unsupported or corrupt image")

// DecodeError reports bytes that are not a supported image encoding.
type DecodeError struct {
	Size  int // number of input bytes
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image (%d bytes): %v", e.Size, e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Cause}
}

// Tensor is a normalized image stored row-major as (height, width, 1).
type Tensor struct {
	Height int
	Width  int
	Data   []float32
}

// Shape returns the (height, width, channels) triple.
func (t Tensor) Shape() [3]int {
	return [3]int{t.Height, t.Width, constants.ImageChannels}
}

// At returns the value at row y, column x.
func (t Tensor) At(y, x int) float32 {
	return t.Data[y*t.Width+x]
}

// Equal reports whether two tensors have the same shape and bit-identical values.
func (t Tensor) Equal(o Tensor) bool {
	if t.Height != o.Height || t.Width != o.Width || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Normalizer resizes, grayscales and scales images to a fixed tensor shape.
type Normalizer struct {
	height int
	width  int
}

// NewNormalizer creates a normalizer producing (height, width, 1) tensors.
func NewNormalizer(height, width int) *Normalizer {
	return &Normalizer{height: height, width: width}
}

// Default returns the 155x220 normalizer used for every room.
func Default() *Normalizer {
	return NewNormalizer(constants.ImageHeight, constants.ImageWidth)
}

// Height returns the output tensor height.
func (n *Normalizer) Height() int { return n.height }

// Width returns the output tensor width.
func (n *Normalizer) Width() int { return n.width }

// Normalize decodes raw image bytes and returns the normalized tensor.
// The steps run in a fixed order: decode, resize, grayscale, scale to [0,1].
func (n *Normalizer) Normalize(data []byte) (Tensor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Tensor{}, &DecodeError{Size: len(data), Cause: err}
	}
	return n.NormalizeImage(img), nil
}

// NormalizeImage runs the resize, grayscale and scaling steps on a decoded image.
// Alpha is dropped, so a transparent background keeps its stored color.
func (n *Normalizer) NormalizeImage(img image.Image) Tensor {
	src := opaque(img)
	resized := image.NewNRGBA(image.Rect(0, 0, n.width, n.height))
	draw.CatmullRom.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := Tensor{
		Height: n.height,
		Width:  n.width,
		Data:   make([]float32, n.height*n.width),
	}
	for y := range n.height {
		row := resized.Pix[y*resized.Stride:]
		for x := range n.width {
			px := row[x*4 : x*4+3]
			out.Data[y*n.width+x] = float32(luma(px[0], px[1], px[2])) / 255
		}
	}
	return out
}

// opaque copies img with every alpha set to 0xff. Straight-alpha sources
// keep their RGB; premultiplied ones are un-premultiplied first.
func opaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	if src, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			copy(dst.Pix[dst.PixOffset(b.Min.X, y):dst.PixOffset(b.Max.X, y)],
				src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)])
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.SetNRGBA(x, y, straight(img.At(x, y)))
			}
		}
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func straight(c color.Color) color.NRGBA {
	switch c := c.(type) {
	case color.NRGBA:
		return c
	case color.NRGBA64:
		return color.NRGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: uint8(c.A >> 8)}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// luma converts RGB to 8-bit gray with the ITU-R 601-2 weights in 16-bit
// fixed point, rounding to nearest.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}
