package inject

import (
	"go.viam.com/pcindex/octree"
	"go.viam.com/pcindex/pointcloud"
)

// PointSource is an injected point source.
type PointSource struct {
	octree.PointSource
	OpenNodeFunc func(id octree.NodeID) (octree.NodeIterator, error)
}

// OpenNode calls the injected OpenNode or the real version.
func (s *PointSource) OpenNode(id octree.NodeID) (octree.NodeIterator, error) {
	if s.OpenNodeFunc == nil {
		return s.PointSource.OpenNode(id)
	}
	return s.OpenNodeFunc(id)
}

// NodeIterator is an in-memory node iterator. FailAfter points into the sequence it stops with
// FailErr when that is set. NumPointsFunc, when set, overrides the announced number of points.
type NodeIterator struct {
	Points        pointcloud.Points
	FailAfter     int
	FailErr       error
	NumPointsFunc func() int
	CloseFunc     func() error

	idx    int
	err    error
	Closed bool
}

// NumPoints calls the injected NumPoints or returns the number of points held.
func (it *NodeIterator) NumPoints() int {
	if it.NumPointsFunc == nil {
		return len(it.Points)
	}
	return it.NumPointsFunc()
}

// Next advances to the next point.
func (it *NodeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.FailErr != nil && it.idx == it.FailAfter {
		it.err = it.FailErr
		return false
	}
	if it.idx >= len(it.Points) {
		return false
	}
	it.idx++
	return true
}

// Point returns the current point.
func (it *NodeIterator) Point() pointcloud.Point {
	return it.Points[it.idx-1]
}

// Err returns the injected failure once it has been reached.
func (it *NodeIterator) Err() error {
	return it.err
}

// Close calls the injected Close or marks the iterator closed.
func (it *NodeIterator) Close() error {
	it.Closed = true
	if it.CloseFunc == nil {
		return nil
	}
	return it.CloseFunc()
}
