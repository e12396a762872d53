package octree

import (
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcindex/spatialmath"
)

// ChildIndex selects one of the 8 octants of a node. Bit 4 selects the upper half along X, bit 2
// along Y and bit 1 along Z.
type ChildIndex uint8

// NumChildren is the number of children of every node.
const NumChildren = 8

// NewChildIndex returns the child index for i, which must be in [0, 8).
func NewChildIndex(i int) (ChildIndex, error) {
	if i < 0 || i >= NumChildren {
		return 0, errors.Errorf("invalid child index %d", i)
	}
	return ChildIndex(i), nil
}

// ChildIndexFor returns the octant of the cube that contains p. Points on a bisecting plane belong
// to the lower half.
func ChildIndexFor(cube spatialmath.Cube, p r3.Vector) ChildIndex {
	center := cube.Center()
	var i ChildIndex
	if p.X > center.X {
		i |= 4
	}
	if p.Y > center.Y {
		i |= 2
	}
	if p.Z > center.Z {
		i |= 1
	}
	return i
}

// NodeID identifies a node by its path from the root. Its canonical form is "r" followed by one
// digit in [0, 7] per level; that form is also the base name of the node's files.
type NodeID struct {
	// path holds the child digits below the root, e.g. "75" for "r75".
	path string
}

// RootID is the id of the root node.
var RootID = NodeID{}

// ParseNodeID parses the canonical string form of a node id.
func ParseNodeID(s string) (NodeID, error) {
	if !strings.HasPrefix(s, "r") {
		return NodeID{}, errors.Errorf("invalid node id %q: must start with 'r'", s)
	}
	path := s[1:]
	for _, c := range path {
		if c < '0' || c > '7' {
			return NodeID{}, errors.Errorf("invalid node id %q: %q is not a child index", s, c)
		}
	}
	return NodeID{path: path}, nil
}

// MustParseNodeID is like ParseNodeID but panics on invalid input.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id NodeID) String() string {
	return "r" + id.path
}

// Level returns the depth of the node; the root is at level 0.
func (id NodeID) Level() int {
	return len(id.path)
}

// IsRoot returns whether id is the root id.
func (id NodeID) IsRoot() bool {
	return id.path == ""
}

// Child returns the id of the given child.
func (id NodeID) Child(i ChildIndex) NodeID {
	return NodeID{path: id.path + string(rune('0'+i))}
}

// Parent returns the parent id. The root has no parent and false is returned for it.
func (id NodeID) Parent() (NodeID, bool) {
	if id.IsRoot() {
		return NodeID{}, false
	}
	return NodeID{path: id.path[:len(id.path)-1]}, true
}

// ChildIndices returns the path from the root as child indices.
func (id NodeID) ChildIndices() []ChildIndex {
	indices := make([]ChildIndex, len(id.path))
	for i := 0; i < len(id.path); i++ {
		indices[i] = ChildIndex(id.path[i] - '0')
	}
	return indices
}

// IsAncestorOf returns whether id is a strict ancestor of other.
func (id NodeID) IsAncestorOf(other NodeID) bool {
	return len(id.path) < len(other.path) && strings.HasPrefix(other.path, id.path)
}

// Node is a node id together with its bounding cube.
type Node struct {
	ID           NodeID
	BoundingCube spatialmath.Cube
}

// NewRootNode returns the root node of an octree with the given bounding cube.
func NewRootNode(boundingCube spatialmath.Cube) Node {
	return Node{ID: RootID, BoundingCube: boundingCube}
}

// NewNode derives the node for id below a root with the given bounding cube.
func NewNode(id NodeID, rootCube spatialmath.Cube) Node {
	node := NewRootNode(rootCube)
	for _, i := range id.ChildIndices() {
		node = node.Child(i)
	}
	return node
}

// Child returns the child node in the given octant.
func (n Node) Child(i ChildIndex) Node {
	half := n.BoundingCube.EdgeLength() / 2
	corner := n.BoundingCube.Min()
	if i&4 != 0 {
		corner.X += half
	}
	if i&2 != 0 {
		corner.Y += half
	}
	if i&1 != 0 {
		corner.Z += half
	}
	return Node{ID: n.ID.Child(i), BoundingCube: spatialmath.NewCube(corner, half)}
}
