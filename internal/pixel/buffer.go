package pixel

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// Luma is the channel count of a single-channel intensity buffer.
	Luma = 1
	// RGB is the channel count of a red, green, blue buffer.
	RGB = 3
)

// Buffer is a row-major grid of Width x Height pixels with Channels 8-bit
// samples per pixel.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

func New(width int, height int, channels int) *Buffer {
	if width < 0 || height < 0 || channels <= 0 {
		panic(fmt.Sprintf("pixel: invalid buffer shape %dx%dx%d", width, height, channels))
	}
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// PixOffset returns the index of the first sample of (x, y) in Pix.
func (b *Buffer) PixOffset(x int, y int) int {
	return (y*b.Width + x) * b.Channels
}

// At returns the samples of (x, y). The returned slice aliases Pix.
func (b *Buffer) At(x int, y int) []uint8 {
	offset := b.PixOffset(x, y)
	return b.Pix[offset : offset+b.Channels : offset+b.Channels]
}

func (b *Buffer) Set(x int, y int, samples ...uint8) {
	if len(samples) != b.Channels {
		panic(fmt.Sprintf("pixel: got %d samples for a %d channel buffer", len(samples), b.Channels))
	}
	copy(b.At(x, y), samples)
}

func (b *Buffer) PixelCount() int64 {
	return int64(b.Width) * int64(b.Height)
}

func (b *Buffer) Empty() bool {
	return b.Width == 0 || b.Height == 0
}

// SameShape reports whether o has the same dimensions and channel count as b.
func (b *Buffer) SameShape(o *Buffer) bool {
	return b.Width == o.Width && b.Height == o.Height && b.Channels == o.Channels
}

// FromImage coerces any decoded image into an RGB buffer. Alpha is dropped
// without compositing, so a translucent pixel keeps its straight color.
func FromImage(img image.Image) *Buffer {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	buf := New(bounds.Dx(), bounds.Dy(), RGB)

	for y := 0; y < buf.Height; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+buf.Width*4]
		dst := buf.Pix[buf.PixOffset(0, y) : buf.PixOffset(0, y)+buf.Width*RGB]
		for x := 0; x < buf.Width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}

	return buf
}
