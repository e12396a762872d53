package octree

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/pcindex/spatialmath"
)

func TestNodeID(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		for _, s := range []string{"r", "r0", "r7", "r01234567", "r777"} {
			id, err := ParseNodeID(s)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, id.String(), test.ShouldEqual, s)
			test.That(t, id.Level(), test.ShouldEqual, len(s)-1)
		}
		for _, s := range []string{"", "0", "x1", "r8", "r0a", "R0", "r 1"} {
			_, err := ParseNodeID(s)
			test.That(t, err, test.ShouldNotBeNil)
		}
		test.That(t, func() { MustParseNodeID("r9") }, test.ShouldPanic)
	})

	t.Run("equality", func(t *testing.T) {
		test.That(t, MustParseNodeID("r"), test.ShouldResemble, RootID)
		test.That(t, MustParseNodeID("r13"), test.ShouldResemble, RootID.Child(1).Child(3))
		test.That(t, MustParseNodeID("r13"), test.ShouldNotEqual, MustParseNodeID("r31"))

		counts := map[NodeID]int{MustParseNodeID("r4"): 1}
		counts[RootID.Child(4)]++
		test.That(t, counts[MustParseNodeID("r4")], test.ShouldEqual, 2)
	})

	t.Run("parent", func(t *testing.T) {
		_, ok := RootID.Parent()
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, RootID.IsRoot(), test.ShouldBeTrue)

		parent, ok := MustParseNodeID("r526").Parent()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, parent.String(), test.ShouldEqual, "r52")

		parent, ok = MustParseNodeID("r5").Parent()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, parent, test.ShouldResemble, RootID)
	})

	t.Run("ancestry", func(t *testing.T) {
		test.That(t, RootID.IsAncestorOf(MustParseNodeID("r0")), test.ShouldBeTrue)
		test.That(t, MustParseNodeID("r0").IsAncestorOf(MustParseNodeID("r012")), test.ShouldBeTrue)
		test.That(t, MustParseNodeID("r0").IsAncestorOf(MustParseNodeID("r0")), test.ShouldBeFalse)
		test.That(t, MustParseNodeID("r01").IsAncestorOf(MustParseNodeID("r0")), test.ShouldBeFalse)
		test.That(t, MustParseNodeID("r1").IsAncestorOf(MustParseNodeID("r01")), test.ShouldBeFalse)

		test.That(t, MustParseNodeID("r705").ChildIndices(), test.ShouldResemble, []ChildIndex{7, 0, 5})
	})
}

func TestChildIndex(t *testing.T) {
	for i := 0; i < NumChildren; i++ {
		ci, err := NewChildIndex(i)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, int(ci), test.ShouldEqual, i)
	}
	_, err := NewChildIndex(8)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewChildIndex(-1)
	test.That(t, err, test.ShouldNotBeNil)

	cube := spatialmath.NewCube(r3.Vector{X: 0, Y: 0, Z: 0}, 2)
	test.That(t, ChildIndexFor(cube, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}), test.ShouldEqual, ChildIndex(0))
	test.That(t, ChildIndexFor(cube, r3.Vector{X: 1.5, Y: 0.5, Z: 0.5}), test.ShouldEqual, ChildIndex(4))
	test.That(t, ChildIndexFor(cube, r3.Vector{X: 0.5, Y: 1.5, Z: 0.5}), test.ShouldEqual, ChildIndex(2))
	test.That(t, ChildIndexFor(cube, r3.Vector{X: 0.5, Y: 0.5, Z: 1.5}), test.ShouldEqual, ChildIndex(1))
	test.That(t, ChildIndexFor(cube, r3.Vector{X: 2, Y: 2, Z: 2}), test.ShouldEqual, ChildIndex(7))
	// the bisecting planes belong to the lower halves
	test.That(t, ChildIndexFor(cube, r3.Vector{X: 1, Y: 1, Z: 1}), test.ShouldEqual, ChildIndex(0))
}

func TestNodeGeometry(t *testing.T) {
	rootCube := spatialmath.NewCube(r3.Vector{X: -4, Y: -4, Z: -4}, 8)
	root := NewRootNode(rootCube)
	test.That(t, root.ID, test.ShouldResemble, RootID)
	test.That(t, root.BoundingCube, test.ShouldResemble, rootCube)

	t.Run("children halve the edge and tile the parent", func(t *testing.T) {
		volume := 0.
		for i := 0; i < NumChildren; i++ {
			child := root.Child(ChildIndex(i))
			test.That(t, child.ID.Level(), test.ShouldEqual, 1)
			test.That(t, child.BoundingCube.EdgeLength(), test.ShouldEqual, 4.)
			test.That(t, rootCube.Contains(child.BoundingCube.Min()), test.ShouldBeTrue)
			test.That(t, rootCube.Contains(child.BoundingCube.Max()), test.ShouldBeTrue)
			test.That(t, ChildIndexFor(rootCube, child.BoundingCube.Center()), test.ShouldEqual, ChildIndex(i))
			e := child.BoundingCube.EdgeLength()
			volume += e * e * e
		}
		test.That(t, volume, test.ShouldEqual, 512.)
	})

	t.Run("octant bits", func(t *testing.T) {
		test.That(t, root.Child(0).BoundingCube.Min(), test.ShouldResemble, r3.Vector{X: -4, Y: -4, Z: -4})
		test.That(t, root.Child(4).BoundingCube.Min(), test.ShouldResemble, r3.Vector{X: 0, Y: -4, Z: -4})
		test.That(t, root.Child(2).BoundingCube.Min(), test.ShouldResemble, r3.Vector{X: -4, Y: 0, Z: -4})
		test.That(t, root.Child(1).BoundingCube.Min(), test.ShouldResemble, r3.Vector{X: -4, Y: -4, Z: 0})
		test.That(t, root.Child(7).BoundingCube.Max(), test.ShouldResemble, rootCube.Max())
	})

	t.Run("derived from the id alone", func(t *testing.T) {
		id := MustParseNodeID("r716")
		node := NewNode(id, rootCube)
		test.That(t, node.ID, test.ShouldResemble, id)
		test.That(t, node, test.ShouldResemble, root.Child(7).Child(1).Child(6))
		test.That(t, node.BoundingCube.EdgeLength(), test.ShouldEqual, 1.)
		test.That(t, node.BoundingCube.Min(), test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 2})

		test.That(t, NewNode(RootID, rootCube), test.ShouldResemble, root)
	})
}
