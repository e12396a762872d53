package octree

import (
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"go.viam.com/pcindex/spatialmath"
)

const (
	// CurrentVersion is the only on-disk format version the loader accepts.
	CurrentVersion = 6

	// legacyVersion is reported for indexes that still carry a JSON descriptor.
	legacyVersion = 3

	metaFileName       = "meta.pb"
	legacyMetaFileName = "meta.json"
)

// Field numbers of the descriptor messages:
//
//	Meta         { int32 version = 1; BoundingCube bounding_cube = 2; double resolution = 3; }
//	BoundingCube { Vector3f min = 1; float edge_length = 2; }
//	Vector3f     { float x = 1; float y = 2; float z = 3; }
const (
	metaVersionField      protowire.Number = 1
	metaBoundingCubeField protowire.Number = 2
	metaResolutionField   protowire.Number = 3

	cubeMinField        protowire.Number = 1
	cubeEdgeLengthField protowire.Number = 2

	vectorXField protowire.Number = 1
	vectorYField protowire.Number = 2
	vectorZField protowire.Number = 3
)

// Meta is the descriptor stored next to the node files of an index.
type Meta struct {
	Version      int32
	BoundingCube spatialmath.Cube
	// Resolution is the smallest point spacing the builder kept. It is informational only.
	Resolution float64
}

// MarshalBinary encodes the descriptor in protobuf wire format.
func (m Meta) MarshalBinary() ([]byte, error) {
	min := m.BoundingCube.Min()
	var vec []byte
	vec = appendFloatField(vec, vectorXField, min.X)
	vec = appendFloatField(vec, vectorYField, min.Y)
	vec = appendFloatField(vec, vectorZField, min.Z)

	var cube []byte
	cube = protowire.AppendTag(cube, cubeMinField, protowire.BytesType)
	cube = protowire.AppendBytes(cube, vec)
	cube = appendFloatField(cube, cubeEdgeLengthField, m.BoundingCube.EdgeLength())

	var out []byte
	out = protowire.AppendTag(out, metaVersionField, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(int64(m.Version)))
	out = protowire.AppendTag(out, metaBoundingCubeField, protowire.BytesType)
	out = protowire.AppendBytes(out, cube)
	if m.Resolution != 0 {
		out = protowire.AppendTag(out, metaResolutionField, protowire.Fixed64Type)
		out = protowire.AppendFixed64(out, math.Float64bits(m.Resolution))
	}
	return out, nil
}

// UnmarshalBinary decodes a descriptor in protobuf wire format. Unknown fields are skipped.
func (m *Meta) UnmarshalBinary(data []byte) error {
	var (
		version    int32
		min        r3.Vector
		edgeLength float64
		resolution float64
	)
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == metaVersionField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}
			version = int32(v)
			return n, nil
		case num == metaBoundingCubeField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var err error
			min, edgeLength, err = unmarshalBoundingCube(v)
			return n, err
		case num == metaResolutionField && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return n, nil
			}
			resolution = math.Float64frombits(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return err
	}
	*m = Meta{
		Version:      version,
		BoundingCube: spatialmath.NewCube(min, edgeLength),
		Resolution:   resolution,
	}
	return nil
}

func unmarshalBoundingCube(data []byte) (r3.Vector, float64, error) {
	var (
		min        r3.Vector
		edgeLength float64
	)
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == cubeMinField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var err error
			min, err = unmarshalVector(v)
			return n, err
		case num == cubeEdgeLengthField && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			edgeLength = float64(math.Float32frombits(v))
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return min, edgeLength, errors.Wrap(err, "bounding_cube")
}

func unmarshalVector(data []byte) (r3.Vector, error) {
	var v r3.Vector
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.Fixed32Type {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		bits, n := protowire.ConsumeFixed32(b)
		f := float64(math.Float32frombits(bits))
		switch num {
		case vectorXField:
			v.X = f
		case vectorYField:
			v.Y = f
		case vectorZField:
			v.Z = f
		}
		return n, nil
	})
	return v, errors.Wrap(err, "min")
}

// walkFields calls fn for every field of a message. fn returns the number of bytes of the field
// value it consumed, negative on malformed input.
func walkFields(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		n, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

func appendFloatField(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(float32(v)))
}

// ReadMeta reads and decodes the descriptor of the index in directory.
func ReadMeta(directory string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(directory, metaFileName))
	if err != nil {
		return Meta{}, errors.Wrapf(err, "could not read %s", metaFileName)
	}
	var meta Meta
	if err := meta.UnmarshalBinary(data); err != nil {
		return Meta{}, errors.Wrapf(err, "could not parse %s", metaFileName)
	}
	return meta, nil
}

// WriteMeta writes the descriptor of the index in directory.
func WriteMeta(directory string, meta Meta) error {
	data, err := meta.MarshalBinary()
	if err != nil {
		return err
	}
	return errors.Wrapf(
		os.WriteFile(filepath.Join(directory, metaFileName), data, 0o600),
		"could not write %s", metaFileName)
}
