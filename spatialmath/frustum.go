package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Plane is an oriented plane; points with a non-negative Distance lie on its inner side.
type Plane struct {
	Normal r3.Vector
	D      float64
}

// Distance returns the signed distance from the plane to p.
func (p Plane) Distance(v r3.Vector) float64 {
	return p.Normal.Dot(v) + p.D
}

func planeFromRow(row mgl64.Vec4) Plane {
	normal := r3.Vector{X: row[0], Y: row[1], Z: row[2]}
	norm := normal.Norm()
	if norm == 0 {
		return Plane{Normal: normal, D: row[3]}
	}
	return Plane{Normal: normal.Mul(1 / norm), D: row[3] / norm}
}

// Frustum is the convex volume seen through a projection, bounded by six inward facing planes
// in the order left, right, bottom, top, near, far.
type Frustum struct {
	planes [6]Plane
}

// NewFrustumFromMatrix extracts the clipping planes of a projection matrix. The matrix maps
// points to clip space as clip = m * (x, y, z, 1), and the visible volume is -w <= x, y, z <= w.
func NewFrustumFromMatrix(m mgl64.Mat4) Frustum {
	x, y, z, w := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	return Frustum{planes: [6]Plane{
		planeFromRow(w.Add(x)),
		planeFromRow(w.Sub(x)),
		planeFromRow(w.Add(y)),
		planeFromRow(w.Sub(y)),
		planeFromRow(w.Add(z)),
		planeFromRow(w.Sub(z)),
	}}
}

// Planes returns the six bounding planes.
func (f Frustum) Planes() [6]Plane {
	return f.planes
}

// Contains returns whether p is inside the frustum, boundaries included.
func (f Frustum) Contains(p r3.Vector) bool {
	for _, plane := range f.planes {
		if plane.Distance(p) < 0 {
			return false
		}
	}
	return true
}

// Intersects reports whether the cuboid may overlap the frustum. The test is conservative: a cuboid
// is only rejected when it lies entirely outside one of the planes, so boxes near the frustum's
// corners can be reported as intersecting.
func (f Frustum) Intersects(c Cuboid) bool {
	if c.IsEmpty() {
		return false
	}
	lo, hi := c.Min(), c.Max()
	for _, plane := range f.planes {
		// The corner furthest along the plane normal.
		positive := lo
		if plane.Normal.X >= 0 {
			positive.X = hi.X
		}
		if plane.Normal.Y >= 0 {
			positive.Y = hi.Y
		}
		if plane.Normal.Z >= 0 {
			positive.Z = hi.Z
		}
		if plane.Distance(positive) < 0 {
			return false
		}
	}
	return true
}

// IntersectsCube is Intersects for a cube.
func (f Frustum) IntersectsCube(c Cube) bool {
	return f.Intersects(c.Cuboid())
}

// Project transforms p by m and applies the homogeneous divide.
func Project(m mgl64.Mat4, p r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	d := 1 / v[3]
	return r3.Vector{X: v[0] * d, Y: v[1] * d, Z: v[2] * d}
}

// SizeInPixels returns the width and height, in pixels, of the screen rectangle covered by the
// projection of the cube in a width x height viewport. Depth is ignored.
func SizeInPixels(c Cube, m mgl64.Mat4, width, height int) r2.Point {
	rect := r2.EmptyRect()
	for _, corner := range c.Corners() {
		p := Project(m, corner)
		rect = rect.AddPoint(r2.Point{X: p.X, Y: p.Y})
	}
	size := rect.Size()
	return r2.Point{
		X: size.X * float64(width) / 2,
		Y: size.Y * float64(height) / 2,
	}
}
