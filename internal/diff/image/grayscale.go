package image

import (
	"fmt"
	"grayscale-detector/internal/pixel"
)

// GrayscaleDiff measures how far an image is from its own grayscale rendition.
type GrayscaleDiff struct{}

func NewGrayscaleDiff() *GrayscaleDiff {
	return &GrayscaleDiff{}
}

func (g *GrayscaleDiff) Calculate(original *pixel.Buffer) *DiffResult {
	sum, count := DiffSum(original, ToGrayscaleRGB(original))
	return &DiffResult{
		Sum:        sum,
		PixelCount: count,
	}
}

// DiffSum takes the per-channel absolute difference of a and b, collapses each
// pixel to its luma and sums the result over the whole buffer. It also returns
// the number of pixels compared.
//
// a and b must be RGB buffers of the same shape.
func DiffSum(a *pixel.Buffer, b *pixel.Buffer) (int64, int64) {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("image: DiffSum shape mismatch %dx%dx%d vs %dx%dx%d",
			a.Width, a.Height, a.Channels, b.Width, b.Height, b.Channels))
	}
	mustRGB(a)

	var sum int64
	for i := 0; i < len(a.Pix); i += pixel.RGB {
		sum += int64(Luma(
			absDiff(a.Pix[i], b.Pix[i]),
			absDiff(a.Pix[i+1], b.Pix[i+1]),
			absDiff(a.Pix[i+2], b.Pix[i+2]),
		))
	}

	return sum, a.PixelCount()
}

func absDiff(l uint8, r uint8) uint8 {
	if l > r {
		return l - r
	}
	return r - l
}
