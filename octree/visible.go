package octree

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"

	"go.viam.com/pcindex/spatialmath"
)

// UseLOD selects whether VisibleNodes subsamples nodes that are small on screen.
type UseLOD bool

const (
	// NoLOD always requests every stored point.
	NoLOD UseLOD = false
	// WithLOD requests roughly one point per four projected pixels.
	WithLOD UseLOD = true
)

const (
	// Nodes smaller than this on either side, in pixels, are neither drawn nor refined.
	minPixelsSide = 12.
	// Nodes covering fewer pixels than this are neither drawn nor refined.
	minPixelsSq = 120.
	// One point is kept per pixelsPerPoint projected pixels when subsampling.
	pixelsPerPoint = 4.
)

// VisibleNode is a node chosen by VisibleNodes with the stride to sample its points at.
type VisibleNode struct {
	ID NodeID
	// LevelOfDetail keeps every LevelOfDetail-th point of the node. It is at least 1.
	LevelOfDetail int
	pixels        r2.Point
}

// Pixels returns the projected width and height of the node's bounding cube in pixels.
func (v VisibleNode) Pixels() r2.Point {
	return v.pixels
}

// Area returns the projected area of the node's bounding cube in square pixels.
func (v VisibleNode) Area() float64 {
	return v.pixels.X * v.pixels.Y
}

// VisibleNodes returns the stored nodes that intersect the view frustum of projection and are large
// enough on a width x height viewport, largest on screen first. Children of a node that is culled
// or too small are never considered.
func (o *Octree) VisibleNodes(projection mgl64.Mat4, width, height int, useLOD UseLOD) []VisibleNode {
	frustum := spatialmath.NewFrustumFromMatrix(projection)
	open := []Node{NewRootNode(o.boundingCube)}

	var visible []VisibleNode
	for len(open) > 0 {
		node := open[len(open)-1]
		open = open[:len(open)-1]

		numPoints, ok := o.nodes[node.ID]
		if !ok || !frustum.IntersectsCube(node.BoundingCube) {
			continue
		}

		pixels := spatialmath.SizeInPixels(node.BoundingCube, projection, width, height)
		visiblePixels := pixels.X * pixels.Y
		if pixels.X < minPixelsSide || pixels.Y < minPixelsSide || visiblePixels < minPixelsSq {
			continue
		}

		levelOfDetail := 1
		if useLOD {
			levelOfDetail = lodForPixels(numPoints, visiblePixels)
		}

		for i := 0; i < NumChildren; i++ {
			open = append(open, node.Child(ChildIndex(i)))
		}

		visible = append(visible, VisibleNode{
			ID:            node.ID,
			LevelOfDetail: levelOfDetail,
			pixels:        pixels,
		})
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].Area() > visible[j].Area()
	})
	return visible
}

// lodForPixels returns the stride that keeps about one of numPoints points per four pixels.
func lodForPixels(numPoints uint64, visiblePixels float64) int {
	lod := math.Floor(float64(numPoints) / (visiblePixels / pixelsPerPoint))
	// Also guards against NaN from degenerate projections.
	if !(lod >= 1) {
		return 1
	}
	if lod > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(lod)
}
