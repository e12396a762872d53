package octree

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"go.viam.com/pcindex/pointcloud"
)

const (
	// lengthPrefixBytes is the size of the length field before every node payload.
	lengthPrefixBytes = 4
	// wireBytesPerPoint is the size of one point in a blob: 3 float32 then R, G, B, A.
	wireBytesPerPoint = 3*4 + 4
	// wirePositionBytes is the part of wireBytesPerPoint in the positions block.
	wirePositionBytes = 3 * 4
	// alpha is written for every point; stored colors have no alpha channel.
	alpha = 255
)

// NodesToBlob requests the points of a node, sampled at the given stride.
type NodesToBlob struct {
	ID            NodeID
	LevelOfDetail int
}

// BlobRequests turns visible nodes into blob requests in the same order. When maxPoints is
// positive, requests are cut off before the first node that would bring the number of retained
// points over it.
func (o *Octree) BlobRequests(visible []VisibleNode, maxPoints int) []NodesToBlob {
	requests := lo.Map(visible, func(v VisibleNode, _ int) NodesToBlob {
		return NodesToBlob{ID: v.ID, LevelOfDetail: v.LevelOfDetail}
	})
	if maxPoints <= 0 {
		return requests
	}
	var total int
	for i, req := range requests {
		numPoints, _ := o.NumPoints(req.ID)
		total += retainedPoints(int(numPoints), req.LevelOfDetail)
		if total > maxPoints {
			return requests[:i]
		}
	}
	return requests
}

func retainedPoints(numPoints, levelOfDetail int) int {
	return (numPoints + levelOfDetail - 1) / levelOfDetail
}

// NodesAsBinaryBlob reads the requested nodes and packs their points, in request order, as
//
//	uint32 length | positions block | colors block
//
// per node. length is the byte size of the two blocks. The positions block holds 3 little endian
// float32 per retained point and the colors block R, G, B, 255 for the same points in the same
// order. Point i of a node is retained when i is a multiple of the request's level of detail. It
// returns the total number of retained points. A node that cannot be read fails the whole call.
func (o *Octree) NodesAsBinaryBlob(nodes []NodesToBlob) (int, []byte, error) {
	numPoints := 0
	rv := []byte{}
	for _, node := range nodes {
		if node.LevelOfDetail < 1 {
			return 0, nil, errors.Errorf("invalid level of detail %d for node %s", node.LevelOfDetail, node.ID)
		}
		var err error
		var retained int
		rv, retained, err = o.appendNode(rv, node)
		if err != nil {
			return 0, nil, err
		}
		numPoints += retained
	}

	if expected := lengthPrefixBytes*len(nodes) + wireBytesPerPoint*numPoints; len(rv) != expected {
		panic(fmt.Sprintf("blob is %d bytes, expected %d for %d nodes and %d points", len(rv), expected, len(nodes), numPoints))
	}
	return numPoints, rv, nil
}

func (o *Octree) appendNode(rv []byte, node NodesToBlob) ([]byte, int, error) {
	it, err := o.OpenNode(node.ID)
	if err != nil {
		return nil, 0, err
	}
	defer utils.UncheckedErrorFunc(it.Close)

	n := it.NumPoints()
	retained := retainedPoints(n, node.LevelOfDetail)
	if uint64(retained)*wireBytesPerPoint > math.MaxUint32 {
		return nil, 0, NewNodeReadError(node.ID,
			errors.Errorf("%d retained points do not fit in a %d byte length", retained, lengthPrefixBytes))
	}

	pos := len(rv)
	rv = append(rv, make([]byte, lengthPrefixBytes+wireBytesPerPoint*retained)...)
	binary.LittleEndian.PutUint32(rv[pos:], uint32(retained*wireBytesPerPoint))
	pos += lengthPrefixBytes
	colorPos := pos + wirePositionBytes*retained

	idx := 0
	for ; it.Next(); idx++ {
		if idx >= n {
			return nil, 0, NewNodeReadError(node.ID, errors.Errorf("node has more than the %d points announced", n))
		}
		if idx%node.LevelOfDetail != 0 {
			continue
		}
		p := it.Point()
		binary.LittleEndian.PutUint32(rv[pos:], math.Float32bits(float32(p.Position.X)))
		binary.LittleEndian.PutUint32(rv[pos+4:], math.Float32bits(float32(p.Position.Y)))
		binary.LittleEndian.PutUint32(rv[pos+8:], math.Float32bits(float32(p.Position.Z)))
		pos += wirePositionBytes

		r, g, b := p.RGB255()
		rv[colorPos] = r
		rv[colorPos+1] = g
		rv[colorPos+2] = b
		rv[colorPos+3] = alpha
		colorPos += 4
	}
	if err := it.Err(); err != nil {
		return nil, 0, NewNodeReadError(node.ID, err)
	}
	if idx != n {
		return nil, 0, NewNodeReadError(node.ID, errors.Errorf("read %d points, expected %d", idx, n))
	}
	return rv, retained, nil
}

// BlobNode is one node payload decoded from a blob.
type BlobNode struct {
	Points pointcloud.Points
}

// ParseBinaryBlob decodes a blob produced by NodesAsBinaryBlob into one entry per node payload, in
// order. Node ids are not part of the blob; they match the order of the original requests.
func ParseBinaryBlob(blob []byte) ([]BlobNode, error) {
	var nodes []BlobNode
	for offset := 0; offset < len(blob); {
		if len(blob)-offset < lengthPrefixBytes {
			return nil, errors.Errorf("truncated length at offset %d", offset)
		}
		length := int(binary.LittleEndian.Uint32(blob[offset:]))
		offset += lengthPrefixBytes
		if length%wireBytesPerPoint != 0 {
			return nil, errors.Errorf("payload length %d at offset %d is not a multiple of %d", length, offset, wireBytesPerPoint)
		}
		if len(blob)-offset < length {
			return nil, errors.Errorf("truncated payload at offset %d: want %d bytes, have %d", offset, length, len(blob)-offset)
		}
		count := length / wireBytesPerPoint
		positions := blob[offset : offset+wirePositionBytes*count]
		colors := blob[offset+wirePositionBytes*count : offset+length]

		points := make(pointcloud.Points, count)
		for i := range points {
			p := positions[i*wirePositionBytes:]
			c := colors[i*4:]
			points[i] = pointcloud.Point{
				Position: r3.Vector{
					X: float64(math.Float32frombits(binary.LittleEndian.Uint32(p[0:]))),
					Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))),
					Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(p[8:]))),
				},
			}
			points[i].Color.R, points[i].Color.G, points[i].Color.B, points[i].Color.A = c[0], c[1], c[2], c[3]
		}
		nodes = append(nodes, BlobNode{Points: points})
		offset += length
	}
	return nodes, nil
}
