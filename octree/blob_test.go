package octree_test

import (
	"encoding/binary"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"golang.org/x/sync/errgroup"

	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/octree"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/testutils"
	"go.viam.com/pcindex/testutils/inject"
)

func loadTestOctree(t *testing.T, nodes map[string]pointcloud.Points) *octree.Octree {
	t.Helper()
	dir := t.TempDir()
	testutils.WriteOctree(t, dir, unitCube, nodes)
	tree, err := octree.New(dir, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return tree
}

func every(pts pointcloud.Points, stride int) pointcloud.Points {
	var out pointcloud.Points
	for i := 0; i < len(pts); i += stride {
		out = append(out, pts[i])
	}
	return out
}

func TestNodesAsBinaryBlobSingleNode(t *testing.T) {
	pts := testutils.GeneratePoints(unitCube, 1000)
	tree := loadTestOctree(t, map[string]pointcloud.Points{"r": pts})

	visible := tree.VisibleNodes(mgl64.Ident4(), 256, 256, octree.NoLOD)
	n, blob, err := tree.NodesAsBinaryBlob(tree.BlobRequests(visible, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 1000)
	test.That(t, blob, test.ShouldHaveLength, 4+16*1000)
	test.That(t, binary.LittleEndian.Uint32(blob), test.ShouldEqual, uint32(16000))

	parsed, err := octree.ParseBinaryBlob(blob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldHaveLength, 1)
	test.That(t, parsed[0].Points, test.ShouldResemble, pts)
}

func TestNodesAsBinaryBlobLayout(t *testing.T) {
	pts := testutils.GeneratePoints(unitCube, 10)
	tree := loadTestOctree(t, map[string]pointcloud.Points{"r": pts})

	n, blob, err := tree.NodesAsBinaryBlob([]octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: 3}})
	test.That(t, err, test.ShouldBeNil)
	// points 0, 3, 6 and 9
	test.That(t, n, test.ShouldEqual, 4)
	test.That(t, blob, test.ShouldHaveLength, 4+4*16)
	test.That(t, binary.LittleEndian.Uint32(blob), test.ShouldEqual, uint32(64))

	positions := blob[4 : 4+4*12]
	colors := blob[4+4*12:]
	for i, src := range []int{0, 3, 6, 9} {
		p := pts[src].Position
		for axis, v := range []float64{p.X, p.Y, p.Z} {
			got := math.Float32frombits(binary.LittleEndian.Uint32(positions[i*12+axis*4:]))
			test.That(t, got, test.ShouldEqual, float32(v))
		}
		test.That(t, colors[i*4:i*4+4], test.ShouldResemble, []byte{uint8(src), uint8(2 * src), uint8(3 * src), 255})
	}
}

func TestNodesAsBinaryBlobMultipleNodes(t *testing.T) {
	root := testutils.GeneratePoints(unitCube, 10)
	r3 := testutils.GeneratePoints(nodeCube("r3"), 5)
	r36 := testutils.GeneratePoints(nodeCube("r36"), 300)
	tree := loadTestOctree(t, map[string]pointcloud.Points{"r": root, "r3": r3, "r36": r36, "r5": nil})

	requests := []octree.NodesToBlob{
		{ID: octree.MustParseNodeID("r36"), LevelOfDetail: 7},
		{ID: octree.RootID, LevelOfDetail: 1},
		{ID: octree.MustParseNodeID("r5"), LevelOfDetail: 2},
		{ID: octree.MustParseNodeID("r3"), LevelOfDetail: 10},
	}
	n, blob, err := tree.NodesAsBinaryBlob(requests)
	test.That(t, err, test.ShouldBeNil)
	// ceil(300/7) + 10 + 0 + ceil(5/10)
	test.That(t, n, test.ShouldEqual, 43+10+0+1)
	test.That(t, blob, test.ShouldHaveLength, 4*len(requests)+16*n)

	parsed, err := octree.ParseBinaryBlob(blob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldHaveLength, 4)
	test.That(t, parsed[0].Points, test.ShouldResemble, every(r36, 7))
	test.That(t, parsed[1].Points, test.ShouldResemble, root)
	test.That(t, parsed[2].Points, test.ShouldBeEmpty)
	test.That(t, parsed[3].Points, test.ShouldResemble, pointcloud.Points{r3[0]})

	// the same node may be requested more than once
	n, blob, err = tree.NodesAsBinaryBlob([]octree.NodesToBlob{
		{ID: octree.RootID, LevelOfDetail: 2},
		{ID: octree.RootID, LevelOfDetail: 2},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 10)
	test.That(t, blob[:len(blob)/2], test.ShouldResemble, blob[len(blob)/2:])
}

func TestNodesAsBinaryBlobEmptyRequest(t *testing.T) {
	tree := loadTestOctree(t, map[string]pointcloud.Points{"r": testutils.GeneratePoints(unitCube, 10)})
	for _, requests := range [][]octree.NodesToBlob{nil, {}} {
		n, blob, err := tree.NodesAsBinaryBlob(requests)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 0)
		test.That(t, blob, test.ShouldNotBeNil)
		test.That(t, blob, test.ShouldBeEmpty)
	}

	// nothing visible, nothing requested
	visible := tree.VisibleNodes(mgl64.Translate3D(100, 0, 0), 256, 256, octree.WithLOD)
	n, blob, err := tree.NodesAsBinaryBlob(tree.BlobRequests(visible, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
	test.That(t, blob, test.ShouldBeEmpty)
}

func TestNodesAsBinaryBlobErrors(t *testing.T) {
	tree := loadTestOctree(t, map[string]pointcloud.Points{"r": testutils.GeneratePoints(unitCube, 10)})

	t.Run("missing node", func(t *testing.T) {
		n, blob, err := tree.NodesAsBinaryBlob([]octree.NodesToBlob{
			{ID: octree.RootID, LevelOfDetail: 1},
			{ID: octree.MustParseNodeID("r1"), LevelOfDetail: 1},
		})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, octree.IsNodeReadError(err), test.ShouldBeTrue)
		test.That(t, errors.Is(err, fs.ErrNotExist), test.ShouldBeTrue)
		var nerr *octree.NodeReadError
		test.That(t, errors.As(err, &nerr), test.ShouldBeTrue)
		test.That(t, nerr.ID.String(), test.ShouldEqual, "r1")
		test.That(t, n, test.ShouldEqual, 0)
		test.That(t, blob, test.ShouldBeNil)
	})

	t.Run("invalid level of detail", func(t *testing.T) {
		for _, lod := range []int{0, -1} {
			_, blob, err := tree.NodesAsBinaryBlob([]octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: lod}})
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, "invalid level of detail")
			test.That(t, octree.IsNodeReadError(err), test.ShouldBeFalse)
			test.That(t, blob, test.ShouldBeNil)
		}
	})

	t.Run("missing colors", func(t *testing.T) {
		dir := t.TempDir()
		testutils.WriteOctree(t, dir, unitCube, map[string]pointcloud.Points{"r": testutils.GeneratePoints(unitCube, 4)})
		test.That(t, os.Truncate(filepath.Join(dir, "r.rgb"), 3), test.ShouldBeNil)
		tree, err := octree.New(dir, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)

		_, _, err = tree.NodesAsBinaryBlob([]octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: 1}})
		test.That(t, octree.IsNodeReadError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "holds 1 colors for 4 points")

		test.That(t, os.Remove(filepath.Join(dir, "r.rgb")), test.ShouldBeNil)
		_, _, err = tree.NodesAsBinaryBlob([]octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: 1}})
		test.That(t, errors.Is(err, fs.ErrNotExist), test.ShouldBeTrue)
	})
}

func TestNodesAsBinaryBlobInjected(t *testing.T) {
	pts := testutils.GeneratePoints(unitCube, 5)
	requests := []octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: 1}}

	newTree := func(it *inject.NodeIterator) *octree.Octree {
		source := &inject.PointSource{}
		source.OpenNodeFunc = func(id octree.NodeID) (octree.NodeIterator, error) {
			return it, nil
		}
		return octree.NewFromNodes(unitCube, catalog(map[string]uint64{"r": 5}), source)
	}

	t.Run("read failure", func(t *testing.T) {
		it := &inject.NodeIterator{Points: pts, FailAfter: 2, FailErr: errors.New("disk on fire")}
		n, blob, err := newTree(it).NodesAsBinaryBlob(requests)
		test.That(t, octree.IsNodeReadError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "disk on fire")
		test.That(t, n, test.ShouldEqual, 0)
		test.That(t, blob, test.ShouldBeNil)
		test.That(t, it.Closed, test.ShouldBeTrue)
	})

	t.Run("fewer points than announced", func(t *testing.T) {
		it := &inject.NodeIterator{Points: pts, NumPointsFunc: func() int { return 8 }}
		_, _, err := newTree(it).NodesAsBinaryBlob(requests)
		test.That(t, octree.IsNodeReadError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "read 5 points, expected 8")
		test.That(t, it.Closed, test.ShouldBeTrue)
	})

	t.Run("more points than announced", func(t *testing.T) {
		it := &inject.NodeIterator{Points: pts, NumPointsFunc: func() int { return 3 }}
		_, _, err := newTree(it).NodesAsBinaryBlob(requests)
		test.That(t, octree.IsNodeReadError(err), test.ShouldBeTrue)
		test.That(t, it.Closed, test.ShouldBeTrue)
	})

	t.Run("payload too large for its length", func(t *testing.T) {
		// 16 bytes per point overflows a uint32 length above 2^28 - 1 retained points.
		it := &inject.NodeIterator{Points: pts, NumPointsFunc: func() int { return 1<<28 + 1 }}
		n, blob, err := newTree(it).NodesAsBinaryBlob(requests)
		test.That(t, octree.IsNodeReadError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "268435457 retained points")
		test.That(t, n, test.ShouldEqual, 0)
		test.That(t, blob, test.ShouldBeNil)
		test.That(t, it.Closed, test.ShouldBeTrue)

		// a stride brings the same node back under the limit
		it = &inject.NodeIterator{Points: pts, NumPointsFunc: func() int { return 1<<28 - 1 }}
		_, _, err = newTree(it).NodesAsBinaryBlob([]octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: 1 << 20}})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldNotContainSubstring, "retained points")
	})

	t.Run("open failure", func(t *testing.T) {
		source := &inject.PointSource{}
		source.OpenNodeFunc = func(id octree.NodeID) (octree.NodeIterator, error) {
			return nil, octree.NewNodeReadError(id, fs.ErrPermission)
		}
		tree := octree.NewFromNodes(unitCube, catalog(map[string]uint64{"r": 5}), source)
		_, _, err := tree.NodesAsBinaryBlob(requests)
		test.That(t, errors.Is(err, fs.ErrPermission), test.ShouldBeTrue)
	})

	t.Run("close errors are ignored", func(t *testing.T) {
		it := &inject.NodeIterator{Points: pts, CloseFunc: func() error { return errors.New("close") }}
		n, blob, err := newTree(it).NodesAsBinaryBlob(requests)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 5)
		test.That(t, blob, test.ShouldHaveLength, 4+16*5)
		test.That(t, it.Closed, test.ShouldBeTrue)
	})
}

func TestBlobRequests(t *testing.T) {
	tree := octree.NewFromNodes(unitCube, catalog(map[string]uint64{"r": 100, "r0": 50, "r1": 30}), nil)
	visible := []octree.VisibleNode{
		{ID: octree.RootID, LevelOfDetail: 1},
		{ID: octree.MustParseNodeID("r0"), LevelOfDetail: 2},
		{ID: octree.MustParseNodeID("r1"), LevelOfDetail: 1},
	}
	expected := []octree.NodesToBlob{
		{ID: octree.RootID, LevelOfDetail: 1},
		{ID: octree.MustParseNodeID("r0"), LevelOfDetail: 2},
		{ID: octree.MustParseNodeID("r1"), LevelOfDetail: 1},
	}

	test.That(t, tree.BlobRequests(visible, 0), test.ShouldResemble, expected)
	test.That(t, tree.BlobRequests(visible, 155), test.ShouldResemble, expected)
	test.That(t, tree.BlobRequests(visible, 154), test.ShouldResemble, expected[:2])
	test.That(t, tree.BlobRequests(visible, 125), test.ShouldResemble, expected[:2])
	test.That(t, tree.BlobRequests(visible, 124), test.ShouldResemble, expected[:1])
	test.That(t, tree.BlobRequests(visible, 99), test.ShouldBeEmpty)
	test.That(t, tree.BlobRequests(nil, 10), test.ShouldBeEmpty)
}

func TestParseBinaryBlobErrors(t *testing.T) {
	tree := loadTestOctree(t, map[string]pointcloud.Points{"r": testutils.GeneratePoints(unitCube, 3)})
	_, blob, err := tree.NodesAsBinaryBlob([]octree.NodesToBlob{{ID: octree.RootID, LevelOfDetail: 1}})
	test.That(t, err, test.ShouldBeNil)

	_, err = octree.ParseBinaryBlob(blob[:2])
	test.That(t, err, test.ShouldNotBeNil)
	_, err = octree.ParseBinaryBlob(blob[:len(blob)-1])
	test.That(t, err, test.ShouldNotBeNil)

	badLength := append([]byte{}, blob...)
	binary.LittleEndian.PutUint32(badLength, 47)
	_, err = octree.ParseBinaryBlob(badLength)
	test.That(t, err, test.ShouldNotBeNil)

	parsed, err := octree.ParseBinaryBlob(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldBeEmpty)
}

func TestConcurrentQueries(t *testing.T) {
	nodes := map[string]pointcloud.Points{}
	for id := range fullCatalog(1, 0) {
		nodes[id.String()] = testutils.GeneratePoints(nodeCube(id.String()), 200)
	}
	tree := loadTestOctree(t, nodes)
	projection := perspectiveCamera(mgl64.Vec3{1, 1, 4})

	query := func() (int, []byte, error) {
		visible := tree.VisibleNodes(projection, 640, 480, octree.WithLOD)
		return tree.NodesAsBinaryBlob(tree.BlobRequests(visible, 0))
	}
	expectedN, expectedBlob, err := query()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, expectedN, test.ShouldBeGreaterThan, 0)

	var group errgroup.Group
	results := make([][]byte, 8)
	for i := range results {
		group.Go(func() error {
			var err error
			_, results[i], err = query()
			return err
		})
	}
	test.That(t, group.Wait(), test.ShouldBeNil)
	for i := range results {
		// visible nodes of equal area may come out in either order
		test.That(t, results[i], test.ShouldHaveLength, len(expectedBlob))
	}
}
