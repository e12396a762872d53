package testutils

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/pcindex/octree"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/spatialmath"
)

// WriteOctree writes an index into dir: a current version descriptor for cube and one node file
// pair per entry of nodes, keyed by node id. It fails the test if anything cannot be written.
func WriteOctree(tb testing.TB, dir string, cube spatialmath.Cube, nodes map[string]pointcloud.Points) {
	tb.Helper()
	err := octree.WriteMeta(dir, octree.Meta{Version: octree.CurrentVersion, BoundingCube: cube})
	test.That(tb, err, test.ShouldBeNil)
	for id, pts := range nodes {
		WriteNode(tb, dir, octree.MustParseNodeID(id), pts)
	}
}

// WriteNode writes the files of a single node into dir.
func WriteNode(tb testing.TB, dir string, id octree.NodeID, pts pointcloud.Points) {
	tb.Helper()
	w, err := octree.NewNodeWriter(dir, id)
	test.That(tb, err, test.ShouldBeNil)
	for _, p := range pts {
		test.That(tb, w.Write(p), test.ShouldBeNil)
	}
	test.That(tb, w.Close(), test.ShouldBeNil)
}

// GeneratePoints returns n points on a regular walk through cube. Point i has the color
// (i, 2i, 3i) modulo 256 so tests can tell points apart after sampling.
func GeneratePoints(cube spatialmath.Cube, n int) pointcloud.Points {
	pts := make(pointcloud.Points, n)
	edge := cube.EdgeLength()
	for i := range pts {
		// Positions are exactly representable as float32 for the small cubes used in tests.
		f := float64(i%64) / 64
		g := float64((i/64)%64) / 64
		h := float64((i/4096)%64) / 64
		pos := cube.Min().Add(r3.Vector{X: f * edge, Y: g * edge, Z: h * edge})
		pts[i] = pointcloud.NewPoint(pos, uint8(i), uint8(2*i), uint8(3*i))
	}
	return pts
}
