// Package turtlegfx renders a simulated pen trace to a PNG image, so a
// program's drawing can be inspected without a robot on the floor.
package turtlegfx

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/vector"

	"microturtle/pkg/motion"
)

// Options controls the rendered image. Coordinates are in millimetres, the
// turtle's own unit.
type Options struct {
	Width      int     // output pixels, default 512
	Height     int     // output pixels, default 512
	Margin     float32 // pixels kept clear around the trace, default 16
	LineWidth  float32 // stroke width in pixels, default 2
	Background color.Color
	Ink        color.Color
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 512
	}
	if o.Height <= 0 {
		o.Height = 512
	}
	if o.Margin <= 0 {
		o.Margin = 16
	}
	if o.LineWidth <= 0 {
		o.LineWidth = 2
	}
	if o.Background == nil {
		o.Background = color.White
	}
	if o.Ink == nil {
		o.Ink = color.Black
	}
	return o
}

// Render rasterizes the pen-down segments of a trace. The trace is scaled
// uniformly to fit the image and the Y axis is flipped so north is up.
func Render(trace []motion.Segment, opts Options) *image.RGBA {
	opts = opts.withDefaults()

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	inked := make([]motion.Segment, 0, len(trace))
	for _, seg := range trace {
		if seg.PenDown {
			inked = append(inked, seg)
		}
	}
	if len(inked) == 0 {
		return img
	}

	minX, minY, maxX, maxY := bounds(inked)
	spanX, spanY := maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	scale := math.Min(
		(float64(opts.Width)-2*float64(opts.Margin))/spanX,
		(float64(opts.Height)-2*float64(opts.Margin))/spanY,
	)
	// Center the trace; image Y grows downwards while the turtle's grows up.
	offX := (float64(opts.Width) - spanX*scale) / 2
	offY := (float64(opts.Height) - spanY*scale) / 2
	toPixel := func(x, y float64) (float32, float32) {
		px := (x-minX)*scale + offX
		py := float64(opts.Height) - ((y-minY)*scale + offY)
		return float32(px), float32(py)
	}

	r := vector.NewRasterizer(opts.Width, opts.Height)
	for _, seg := range inked {
		strokeSegment(r, seg, toPixel, opts.LineWidth)
	}
	r.Draw(img, img.Bounds(), image.NewUniform(opts.Ink), image.Point{})
	return img
}

// WritePNG renders the trace and writes it to a file.
func WritePNG(path string, trace []motion.Segment, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, Render(trace, opts)); err != nil {
		return err
	}
	return f.Close()
}

// strokeSegment adds one line as a filled quad perpendicular to its
// direction. The rasterizer only fills paths, so strokes are built by hand.
func strokeSegment(r *vector.Rasterizer, seg motion.Segment, toPixel func(x, y float64) (float32, float32), width float32) {
	x1, y1 := toPixel(seg.X1, seg.Y1)
	x2, y2 := toPixel(seg.X2, seg.Y2)

	dx, dy := x2-x1, y2-y1
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		// A zero-length pen-down segment still leaves a dot.
		half := width / 2
		r.MoveTo(x1-half, y1-half)
		r.LineTo(x1+half, y1-half)
		r.LineTo(x1+half, y1+half)
		r.LineTo(x1-half, y1+half)
		r.ClosePath()
		return
	}
	// Unit normal, scaled to half the stroke width.
	nx := -dy / length * width / 2
	ny := dx / length * width / 2

	r.MoveTo(x1+nx, y1+ny)
	r.LineTo(x2+nx, y2+ny)
	r.LineTo(x2-nx, y2-ny)
	r.LineTo(x1-nx, y1-ny)
	r.ClosePath()
}

func bounds(segs []motion.Segment) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, s := range segs {
		minX = math.Min(minX, math.Min(s.X1, s.X2))
		minY = math.Min(minY, math.Min(s.Y1, s.Y2))
		maxX = math.Max(maxX, math.Max(s.X1, s.X2))
		maxY = math.Max(maxY, math.Max(s.Y1, s.Y2))
	}
	return
}
