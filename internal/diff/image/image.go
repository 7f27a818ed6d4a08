package image

import "grayscale-detector/internal/pixel"

type DiffResult struct {
	Sum        int64
	PixelCount int64
}

type Differ interface {
	Calculate(original *pixel.Buffer) *DiffResult
}
