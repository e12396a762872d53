package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// PCDTypeFromString parses the DATA keyword of a pcd header.
func PCDTypeFromString(s string) (PCDType, error) {
	switch s {
	case "ascii":
		return PCDAscii, nil
	case "binary":
		return PCDBinary, nil
	case "binary_compressed":
		return PCDCompressed, nil
	default:
		return PCDAscii, errors.Errorf("unknown pcd data type %q", s)
	}
}

// WriteToFile writes the points to the named file, in the format given by its extension: ".pcd"
// with the given data encoding or ".las".
func WriteToFile(pts Points, fn string, outputType PCDType) (err error) {
	switch filepath.Ext(fn) {
	case ".pcd":
	case ".las":
		return WriteToLASFile(pts, fn)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	if err := ToPCD(pts, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

func colorToPCDInt(p Point) int {
	r, g, b := p.RGB255()
	x := 0

	x |= (int(r) << 16)
	x |= (int(g) << 8)
	x |= (int(b) << 0)
	return x
}

// ToPCD writes the points out in the pcd format, with x y z rgb fields.
func ToPCD(pts Points, out io.Writer, outputType PCDType) error {
	var err error

	_, err = fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z rgb\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F I\n"+
		"COUNT 1 1 1 1\n")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		len(pts),
		1,
		len(pts))
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(out, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown pcd type %d", outputType)
	}
	if err != nil {
		return err
	}
	return writePCDData(pts, out, outputType)
}

func writePCDData(pts Points, out io.Writer, pcdtype PCDType) error {
	buf := make([]byte, 16)
	for _, p := range pts {
		var err error
		c := colorToPCDInt(p)
		switch pcdtype {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.Position.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Position.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Position.Z)))
			binary.LittleEndian.PutUint32(buf[12:], uint32(c))
			_, err = out.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(out, "%f %f %f %d\n", p.Position.X, p.Position.Y, p.Position.Z, c)
		case PCDCompressed:
			err = errors.New("compressed PCD not yet implemented")
		}
		if err != nil {
			return err
		}
	}
	return nil
}
