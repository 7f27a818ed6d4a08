package image

import "grayscale-detector/internal/pixel"

// ITU-R 601-2 luma weights (0.299, 0.587, 0.114) in 16.16 fixed point. These
// are the weights image libraries use for RGB to L conversion and must not be
// tuned: classification thresholds are calibrated against them.
const (
	lumaRed   = 19595
	lumaGreen = 38470
	lumaBlue  = 7471
	lumaShift = 16
	lumaHalf  = 1 << (lumaShift - 1)
)

// Luma returns the rounded perceptual intensity of an RGB sample.
func Luma(r uint8, g uint8, b uint8) uint8 {
	return uint8((uint32(r)*lumaRed + uint32(g)*lumaGreen + uint32(b)*lumaBlue + lumaHalf) >> lumaShift)
}

// ToLuma reduces an RGB buffer to a single-channel luma buffer.
func ToLuma(buf *pixel.Buffer) *pixel.Buffer {
	mustRGB(buf)

	out := pixel.New(buf.Width, buf.Height, pixel.Luma)
	for i, j := 0, 0; i < len(buf.Pix); i, j = i+pixel.RGB, j+1 {
		out.Pix[j] = Luma(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
	}
	return out
}

// ExpandRGB copies every sample of a luma buffer into three RGB channels.
func ExpandRGB(buf *pixel.Buffer) *pixel.Buffer {
	if buf.Channels != pixel.Luma {
		panic("image: ExpandRGB needs a luma buffer")
	}

	out := pixel.New(buf.Width, buf.Height, pixel.RGB)
	for i, v := range buf.Pix {
		out.Pix[i*3] = v
		out.Pix[i*3+1] = v
		out.Pix[i*3+2] = v
	}
	return out
}

// ToGrayscaleRGB converts buf to luma and back to RGB, so every pixel of the
// result is a shade of gray with the dimensions of buf.
func ToGrayscaleRGB(buf *pixel.Buffer) *pixel.Buffer {
	return ExpandRGB(ToLuma(buf))
}

func mustRGB(buf *pixel.Buffer) {
	if buf.Channels != pixel.RGB {
		panic("image: expected an RGB buffer")
	}
}
