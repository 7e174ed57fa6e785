package bbox

import (
	"github.com/ice9innovations/api/internal/analyzer"
)

// IoU computes intersection-over-union of two boxes. Degenerate boxes
// (zero area) yield 0.
func IoU(a, b analyzer.BBox) float64 {
	ix := max(a.X, b.X)
	iy := max(a.Y, b.Y)
	ix2 := min(a.X+a.Width, b.X+b.Width)
	iy2 := min(a.Y+a.Height, b.Y+b.Height)

	if ix2 <= ix || iy2 <= iy {
		return 0
	}

	intersection := (ix2 - ix) * (iy2 - iy)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Union returns the smallest axis-aligned box containing both inputs.
func Union(a, b analyzer.BBox) analyzer.BBox {
	x := min(a.X, b.X)
	y := min(a.Y, b.Y)
	x2 := max(a.X+a.Width, b.X+b.Width)
	y2 := max(a.Y+a.Height, b.Y+b.Height)
	return analyzer.BBox{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}
