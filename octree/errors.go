package octree

import (
	"fmt"

	"github.com/pkg/errors"
)

// VersionError is returned when an index was written in a format this package cannot read.
type VersionError struct {
	Version int32
	// Legacy is set when the index predates the protobuf descriptor altogether.
	Legacy bool
}

// NewVersionError returns an error for an index descriptor with the given version.
func NewVersionError(version int32) error {
	return &VersionError{Version: version}
}

// NewLegacyVersionError returns an error for an index that still uses the JSON descriptor.
func NewLegacyVersionError() error {
	return &VersionError{Version: legacyVersion, Legacy: true}
}

func (e *VersionError) Error() string {
	if e.Legacy {
		return fmt.Sprintf("unsupported legacy octree version %d, the index must be rebuilt", e.Version)
	}
	return fmt.Sprintf("unsupported octree version %d, expected %d", e.Version, CurrentVersion)
}

// IsVersionError returns whether err is, or wraps, a VersionError.
func IsVersionError(err error) bool {
	var verr *VersionError
	return errors.As(err, &verr)
}

// NodeReadError is returned when the points of a node cannot be read.
type NodeReadError struct {
	ID  NodeID
	Err error
}

// NewNodeReadError wraps err as a failure to read the node with the given id.
func NewNodeReadError(id NodeID, err error) error {
	return &NodeReadError{ID: id, Err: err}
}

func (e *NodeReadError) Error() string {
	return fmt.Sprintf("could not read node %s: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeReadError) Unwrap() error {
	return e.Err
}

// IsNodeReadError returns whether err is, or wraps, a NodeReadError.
func IsNodeReadError(err error) bool {
	var nerr *NodeReadError
	return errors.As(err, &nerr)
}
