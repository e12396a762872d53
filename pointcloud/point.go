package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// Point is a single stored point: a position and an opaque RGB color.
type Point struct {
	Position r3.Vector
	Color    color.NRGBA
}

// NewPoint returns a point at the given position with the given RGB color.
func NewPoint(pos r3.Vector, r, g, b uint8) Point {
	return Point{Position: pos, Color: color.NRGBA{R: r, G: g, B: b, A: 255}}
}

// RGB255 returns the RGB components of the point's color.
func (p Point) RGB255() (uint8, uint8, uint8) {
	return p.Color.R, p.Color.G, p.Color.B
}
