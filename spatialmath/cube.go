package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Cube is an axis aligned cube described by its minimum corner and its edge length.
type Cube struct {
	min        r3.Vector
	edgeLength float64
}

// NewCube returns a cube with the given minimum corner and edge length.
func NewCube(min r3.Vector, edgeLength float64) Cube {
	return Cube{min: min, edgeLength: edgeLength}
}

// Min returns the minimum corner.
func (c Cube) Min() r3.Vector {
	return c.min
}

// Max returns the maximum corner.
func (c Cube) Max() r3.Vector {
	return c.min.Add(r3.Vector{X: c.edgeLength, Y: c.edgeLength, Z: c.edgeLength})
}

// EdgeLength returns the length of every edge of the cube.
func (c Cube) EdgeLength() float64 {
	return c.edgeLength
}

// Center returns the center point of the cube.
func (c Cube) Center() r3.Vector {
	half := c.edgeLength / 2
	return c.min.Add(r3.Vector{X: half, Y: half, Z: half})
}

// Corners returns the 8 corners of the cube. Corner i has the maximum coordinate on X when bit 4
// is set, on Y when bit 2 is set and on Z when bit 1 is set.
func (c Cube) Corners() [8]r3.Vector {
	var corners [8]r3.Vector
	for i := range corners {
		corners[i] = c.min
		if i&4 != 0 {
			corners[i].X += c.edgeLength
		}
		if i&2 != 0 {
			corners[i].Y += c.edgeLength
		}
		if i&1 != 0 {
			corners[i].Z += c.edgeLength
		}
	}
	return corners
}

// Contains returns whether p lies inside the cube, boundaries included.
func (c Cube) Contains(p r3.Vector) bool {
	return c.Cuboid().Contains(p)
}

// Cuboid returns the cube as a general axis aligned box.
func (c Cube) Cuboid() Cuboid {
	return Cuboid{min: c.min, max: c.Max()}
}

func (c Cube) String() string {
	return fmt.Sprintf("Cube(min: (%g, %g, %g), edge: %g)", c.min.X, c.min.Y, c.min.Z, c.edgeLength)
}

// Cuboid is an axis aligned box that can be grown point by point. The zero value is not empty; use
// NewCuboid to start from an empty box.
type Cuboid struct {
	min r3.Vector
	max r3.Vector
}

// NewCuboid returns an empty cuboid, one that contains no point until Update is called.
func NewCuboid() Cuboid {
	return Cuboid{
		min: r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		max: r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
}

// NewCuboidFromPoints returns the smallest cuboid containing both points.
func NewCuboidFromPoints(a, b r3.Vector) Cuboid {
	c := NewCuboid()
	c.Update(a)
	c.Update(b)
	return c
}

// Update grows the cuboid so that it contains p.
func (c *Cuboid) Update(p r3.Vector) {
	c.min = r3.Vector{X: math.Min(c.min.X, p.X), Y: math.Min(c.min.Y, p.Y), Z: math.Min(c.min.Z, p.Z)}
	c.max = r3.Vector{X: math.Max(c.max.X, p.X), Y: math.Max(c.max.Y, p.Y), Z: math.Max(c.max.Z, p.Z)}
}

// IsEmpty returns whether the cuboid contains no point.
func (c Cuboid) IsEmpty() bool {
	return c.min.X > c.max.X || c.min.Y > c.max.Y || c.min.Z > c.max.Z
}

// Min returns the minimum corner.
func (c Cuboid) Min() r3.Vector {
	return c.min
}

// Max returns the maximum corner.
func (c Cuboid) Max() r3.Vector {
	return c.max
}

// Contains returns whether p lies inside the cuboid, boundaries included.
func (c Cuboid) Contains(p r3.Vector) bool {
	return p.X >= c.min.X && p.X <= c.max.X &&
		p.Y >= c.min.Y && p.Y <= c.max.Y &&
		p.Z >= c.min.Z && p.Z <= c.max.Z
}
