// Package octree implements read access to an on-disk point cloud octree: loading the index of
// stored nodes, choosing the nodes visible under a camera projection and packing their points into
// the binary blob consumed by renderers.
//
// An index directory holds a meta.pb descriptor and, for every node with stored points, a pair of
// files named after the node id: <id>.xyz with the positions and <id>.rgb with the colors.
package octree

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/spatialmath"
)

// Octree is an immutable index of the nodes stored in a directory. It is safe for concurrent use.
type Octree struct {
	directory string
	// nodes maps from node id to number of points.
	nodes        map[NodeID]uint64
	boundingCube spatialmath.Cube
	source       PointSource
}

// New loads the index stored in directory.
func New(directory string, logger logging.Logger) (*Octree, error) {
	if _, err := os.Stat(filepath.Join(directory, legacyMetaFileName)); err == nil {
		return nil, NewLegacyVersionError()
	}

	meta, err := ReadMeta(directory)
	if err != nil {
		return nil, err
	}
	if meta.Version != CurrentVersion {
		return nil, NewVersionError(meta.Version)
	}

	source := NewDiskPointSource(directory)
	nodes := scanNodes(directory, source, logger)
	logger.Debugw("loaded octree", "directory", directory, "nodes", len(nodes), "bounding_cube", meta.BoundingCube.String())

	return &Octree{
		directory:    directory,
		nodes:        nodes,
		boundingCube: meta.BoundingCube,
		source:       source,
	}, nil
}

// NewFromNodes returns an octree over an explicit node catalog, reading points from source.
func NewFromNodes(boundingCube spatialmath.Cube, nodes map[NodeID]uint64, source PointSource) *Octree {
	copied := make(map[NodeID]uint64, len(nodes))
	for id, n := range nodes {
		copied[id] = n
	}
	return &Octree{nodes: copied, boundingCube: boundingCube, source: source}
}

// scanNodes walks directory and records every node positions file with its number of points.
// Entries that cannot be read are skipped.
func scanNodes(directory string, source *DiskPointSource, logger logging.Logger) map[NodeID]uint64 {
	nodes := map[NodeID]uint64{}
	//nolint:errcheck
	filepath.WalkDir(directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugw("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		name := entry.Name()
		if !strings.HasSuffix(name, PositionsExt) {
			return nil
		}
		id, err := ParseNodeID(strings.TrimSuffix(name, PositionsExt))
		if err != nil {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			logger.Debugw("skipping unreadable node file", "path", path, "error", err)
			return nil
		}
		nodes[id] = uint64(info.Size()) / bytesPerPosition
		if dir := filepath.Dir(path); dir != filepath.Clean(directory) {
			source.nodeDirs[id] = dir
		}
		return nil
	})
	return nodes
}

// Directory returns the directory the octree was loaded from, empty for octrees built with
// NewFromNodes.
func (o *Octree) Directory() string {
	return o.directory
}

// BoundingCube returns the bounding cube of the root node.
func (o *Octree) BoundingCube() spatialmath.Cube {
	return o.boundingCube
}

// NumPoints returns the number of points stored for id and whether the node has stored points.
func (o *Octree) NumPoints(id NodeID) (uint64, bool) {
	n, ok := o.nodes[id]
	return n, ok
}

// NumNodes returns the number of nodes with stored points.
func (o *Octree) NumNodes() int {
	return len(o.nodes)
}

// NodeIDs returns the ids of all nodes with stored points, in no particular order.
func (o *Octree) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(o.nodes))
	for id := range o.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Node returns the node for id with its bounding cube.
func (o *Octree) Node(id NodeID) Node {
	return NewNode(id, o.boundingCube)
}

// OpenNode opens the stored points of id.
func (o *Octree) OpenNode(id NodeID) (NodeIterator, error) {
	if o.source == nil {
		return nil, NewNodeReadError(id, errors.New("octree has no point source"))
	}
	return o.source.OpenNode(id)
}
