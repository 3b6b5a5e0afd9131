package turtlegfx

import (
	"testing"

	"github.com/nalgeon/be"

	"microturtle/pkg/motion"
)

func squareTrace() []motion.Segment {
	return []motion.Segment{
		{X1: 0, Y1: 0, X2: 0, Y2: 100, PenDown: true},
		{X1: 0, Y1: 100, X2: 100, Y2: 100, PenDown: true},
		{X1: 100, Y1: 100, X2: 100, Y2: 0, PenDown: true},
		{X1: 100, Y1: 0, X2: 0, Y2: 0, PenDown: true},
	}
}

func TestRenderSquare(t *testing.T) {
	img := Render(squareTrace(), Options{Width: 128, Height: 128})
	be.Equal(t, img.Bounds().Dx(), 128)
	be.Equal(t, img.Bounds().Dy(), 128)

	inked := 0
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && b < 0x8000 {
				inked++
			}
		}
	}
	be.True(t, inked > 100)

	// The square's interior stays empty.
	r, g, b, _ := img.At(64, 64).RGBA()
	be.True(t, r > 0x8000 && g > 0x8000 && b > 0x8000)
}

func TestRenderSkipsPenUpSegments(t *testing.T) {
	trace := []motion.Segment{
		{X1: 0, Y1: 0, X2: 100, Y2: 100, PenDown: false},
	}
	img := Render(trace, Options{Width: 64, Height: 64})
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0xffff || g < 0xffff || b < 0xffff {
				t.Fatalf("unexpected ink at %d,%d", x, y)
			}
		}
	}
}

func TestRenderEmptyTrace(t *testing.T) {
	img := Render(nil, Options{})
	be.Equal(t, img.Bounds().Dx(), 512)
}
