package octree

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/pcindex/pointcloud"
)

const (
	// PositionsExt is the extension of the file holding a node's positions.
	PositionsExt = ".xyz"
	// ColorsExt is the extension of the file holding a node's colors.
	ColorsExt = ".rgb"

	// bytesPerPosition is the on-disk size of one position: 3 little endian float32.
	bytesPerPosition = 3 * 4
	// bytesPerColor is the on-disk size of one color: R, G, B.
	bytesPerColor = 3
)

// PointSource gives access to the stored points of nodes.
type PointSource interface {
	// OpenNode returns an iterator over all points stored for id. The caller must close it.
	OpenNode(id NodeID) (NodeIterator, error)
}

// NodeIterator is a finite, forward-only sequence of the points of one node.
//
//	for it.Next() {
//		p := it.Point()
//	}
//	if err := it.Err(); err != nil { ... }
type NodeIterator interface {
	// NumPoints returns the number of points the iterator yields when it does not fail.
	NumPoints() int
	Next() bool
	Point() pointcloud.Point
	Err() error
	Close() error
}

// DiskPointSource reads nodes stored as <id>.xyz and <id>.rgb file pairs.
type DiskPointSource struct {
	directory string
	// nodeDirs holds the directory of nodes found outside of the top level directory.
	nodeDirs map[NodeID]string
}

// NewDiskPointSource returns a point source reading node files from directory.
func NewDiskPointSource(directory string) *DiskPointSource {
	return &DiskPointSource{directory: directory, nodeDirs: map[NodeID]string{}}
}

func (s *DiskPointSource) nodeDir(id NodeID) string {
	if dir, ok := s.nodeDirs[id]; ok {
		return dir
	}
	return s.directory
}

// OpenNode opens the files of the node.
func (s *DiskPointSource) OpenNode(id NodeID) (NodeIterator, error) {
	it, err := openDiskIterator(filepath.Join(s.nodeDir(id), id.String()))
	if err != nil {
		return nil, NewNodeReadError(id, err)
	}
	return it, nil
}

type diskIterator struct {
	positionsFile *os.File
	colorsFile    *os.File
	positions     *bufio.Reader
	colors        *bufio.Reader

	numPoints int
	read      int
	current   pointcloud.Point
	buf       [bytesPerPosition]byte
	err       error
}

func openDiskIterator(stem string) (it *diskIterator, err error) {
	positionsFile, err := os.Open(stem + PositionsExt)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, positionsFile.Close())
		}
	}()
	colorsFile, err := os.Open(stem + ColorsExt)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, colorsFile.Close())
		}
	}()

	positionsInfo, err := positionsFile.Stat()
	if err != nil {
		return nil, err
	}
	colorsInfo, err := colorsFile.Stat()
	if err != nil {
		return nil, err
	}
	numPoints := int(positionsInfo.Size() / bytesPerPosition)
	if colorsInfo.Size() < int64(numPoints*bytesPerColor) {
		return nil, errors.Errorf("%s holds %d colors for %d points",
			filepath.Base(stem+ColorsExt), colorsInfo.Size()/bytesPerColor, numPoints)
	}

	return &diskIterator{
		positionsFile: positionsFile,
		colorsFile:    colorsFile,
		positions:     bufio.NewReader(positionsFile),
		colors:        bufio.NewReader(colorsFile),
		numPoints:     numPoints,
	}, nil
}

func (it *diskIterator) NumPoints() int {
	return it.numPoints
}

func (it *diskIterator) Next() bool {
	if it.err != nil || it.read >= it.numPoints {
		return false
	}
	if _, err := io.ReadFull(it.positions, it.buf[:bytesPerPosition]); err != nil {
		it.err = errors.Wrapf(err, "reading position %d", it.read)
		return false
	}
	pos := r3.Vector{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(it.buf[0:]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(it.buf[4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(it.buf[8:]))),
	}
	if _, err := io.ReadFull(it.colors, it.buf[:bytesPerColor]); err != nil {
		it.err = errors.Wrapf(err, "reading color %d", it.read)
		return false
	}
	it.current = pointcloud.NewPoint(pos, it.buf[0], it.buf[1], it.buf[2])
	it.read++
	return true
}

func (it *diskIterator) Point() pointcloud.Point {
	return it.current
}

func (it *diskIterator) Err() error {
	return it.err
}

func (it *diskIterator) Close() error {
	return multierr.Combine(it.positionsFile.Close(), it.colorsFile.Close())
}

// NodeWriter writes the points of one node in the layout DiskPointSource reads.
type NodeWriter struct {
	id            NodeID
	positionsFile *os.File
	colorsFile    *os.File
	positions     *bufio.Writer
	colors        *bufio.Writer
	numWritten    int
	buf           [bytesPerPosition]byte
}

// NewNodeWriter creates, or truncates, the files of node id in directory.
func NewNodeWriter(directory string, id NodeID) (w *NodeWriter, err error) {
	stem := filepath.Join(directory, id.String())
	positionsFile, err := os.Create(stem + PositionsExt)
	if err != nil {
		return nil, err
	}
	colorsFile, err := os.Create(stem + ColorsExt)
	if err != nil {
		return nil, multierr.Combine(err, positionsFile.Close())
	}
	return &NodeWriter{
		id:            id,
		positionsFile: positionsFile,
		colorsFile:    colorsFile,
		positions:     bufio.NewWriter(positionsFile),
		colors:        bufio.NewWriter(colorsFile),
	}, nil
}

// Write appends a point to the node.
func (w *NodeWriter) Write(p pointcloud.Point) error {
	binary.LittleEndian.PutUint32(w.buf[0:], math.Float32bits(float32(p.Position.X)))
	binary.LittleEndian.PutUint32(w.buf[4:], math.Float32bits(float32(p.Position.Y)))
	binary.LittleEndian.PutUint32(w.buf[8:], math.Float32bits(float32(p.Position.Z)))
	if _, err := w.positions.Write(w.buf[:bytesPerPosition]); err != nil {
		return err
	}
	r, g, b := p.RGB255()
	if _, err := w.colors.Write([]byte{r, g, b}); err != nil {
		return err
	}
	w.numWritten++
	return nil
}

// NumWritten returns the number of points written so far.
func (w *NodeWriter) NumWritten() int {
	return w.numWritten
}

// Close flushes and closes the node's files.
func (w *NodeWriter) Close() error {
	return multierr.Combine(
		w.positions.Flush(),
		w.colors.Flush(),
		w.positionsFile.Close(),
		w.colorsFile.Close(),
	)
}
