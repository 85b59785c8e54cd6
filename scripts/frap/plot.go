package frap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
)

// Plot dimensions in pixels.  Curves are drawn at twice the size and scaled
// down for smoother lines.
const (
	PlotWidth  = 640
	PlotHeight = 480

	plotMargin = 40
	oversample = 2
)

// LineColor is the color of the intensity curve.
var LineColor = "#1f77b4"

var axisColor = color.NRGBA{0x40, 0x40, 0x40, 0xff}

// Plot renders mean intensity against timepoint as a PNG line plot.
func Plot(means []float64) ([]byte, error) {
	if len(means) == 0 {
		return nil, fmt.Errorf("nothing to plot")
	}
	lineColor, err := colorful.Hex(LineColor)
	if err != nil {
		return nil, fmt.Errorf("bad line color %q: %v", LineColor, err)
	}

	w, h := PlotWidth*oversample, PlotHeight*oversample
	margin := plotMargin * oversample
	canvas := imaging.New(w, h, color.White)

	// axes
	drawLine(canvas, margin, h-margin, w-margin, h-margin, axisColor, oversample)
	drawLine(canvas, margin, margin, margin, h-margin, axisColor, oversample)

	lo, hi := floats.Min(means), floats.Max(means)
	if hi == lo {
		hi = lo + 1
	}
	xStep := 0.0
	if len(means) > 1 {
		xStep = float64(w-2*margin) / float64(len(means)-1)
	}
	toPoint := func(i int) image.Point {
		x := margin + int(float64(i)*xStep+0.5)
		y := h - margin - int((means[i]-lo)/(hi-lo)*float64(h-2*margin)+0.5)
		return image.Pt(x, y)
	}
	line := lineColor.Clamped()
	prev := toPoint(0)
	for i := 1; i < len(means); i++ {
		p := toPoint(i)
		drawLine(canvas, prev.X, prev.Y, p.X, p.Y, line, 2*oversample)
		prev = p
	}
	for i := range means {
		p := toPoint(i)
		fillSquare(canvas, p.X, p.Y, 3*oversample, line)
	}

	plot := imaging.Resize(canvas, PlotWidth, PlotHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, plot); err != nil {
		return nil, fmt.Errorf("could not encode plot: %v", err)
	}
	return buf.Bytes(), nil
}

func fillSquare(img *image.NRGBA, cx, cy, half int, c color.Color) {
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawLine draws a line of the given thickness with Bresenham's algorithm.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.Color, thickness int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	half := thickness / 2
	e := dx + dy
	for {
		fillSquare(img, x0, y0, half, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
