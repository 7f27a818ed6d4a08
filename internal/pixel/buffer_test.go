package pixel_test

import (
	"fmt"
	"grayscale-detector/internal/pixel"
	"image"
	"image/color"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromImage(t *testing.T) {
	type in struct {
		first image.Image
	}

	type want struct {
		first *pixel.Buffer
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				func() image.Image {
					img := image.NewRGBA(image.Rect(0, 0, 2, 1))
					img.Set(0, 0, color.RGBA{R: 255, A: 255})
					img.Set(1, 0, color.RGBA{G: 10, B: 20, A: 255})
					return img
				}(),
			},
			want{
				&pixel.Buffer{Width: 2, Height: 1, Channels: pixel.RGB, Pix: []uint8{255, 0, 0, 0, 10, 20}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				func() image.Image {
					img := image.NewGray(image.Rect(0, 0, 1, 2))
					img.SetGray(0, 0, color.Gray{Y: 7})
					img.SetGray(0, 1, color.Gray{Y: 200})
					return img
				}(),
			},
			want{
				&pixel.Buffer{Width: 1, Height: 2, Channels: pixel.RGB, Pix: []uint8{7, 7, 7, 200, 200, 200}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				func() image.Image {
					img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
					img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 150, B: 200, A: 0})
					return img
				}(),
			},
			want{
				&pixel.Buffer{Width: 1, Height: 1, Channels: pixel.RGB, Pix: []uint8{100, 150, 200}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				func() image.Image {
					palette := color.Palette{color.Black, color.RGBA{R: 1, G: 2, B: 3, A: 255}}
					img := image.NewPaletted(image.Rect(5, 5, 7, 6), palette)
					img.SetColorIndex(6, 5, 1)
					return img
				}(),
			},
			want{
				&pixel.Buffer{Width: 2, Height: 1, Channels: pixel.RGB, Pix: []uint8{0, 0, 0, 1, 2, 3}},
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := pixel.FromImage(in.first)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuffer(t *testing.T) {
	b := pixel.New(3, 2, pixel.RGB)

	if got := b.PixelCount(); got != 6 {
		t.Errorf("PixelCount() = %d, want 6", got)
	}
	if got := len(b.Pix); got != 18 {
		t.Errorf("len(Pix) = %d, want 18", got)
	}

	b.Set(2, 1, 9, 8, 7)
	if diff := cmp.Diff([]uint8{9, 8, 7}, b.At(2, 1)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if got := b.PixOffset(2, 1); got != 15 {
		t.Errorf("PixOffset(2, 1) = %d, want 15", got)
	}

	if !b.SameShape(pixel.New(3, 2, pixel.RGB)) {
		t.Error("expected equal shapes")
	}
	if b.SameShape(pixel.New(3, 2, pixel.Luma)) {
		t.Error("expected channel mismatch to differ")
	}
	if !pixel.New(0, 4, pixel.RGB).Empty() {
		t.Error("expected 0x4 buffer to be empty")
	}
}
