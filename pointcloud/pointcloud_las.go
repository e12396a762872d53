package pointcloud

import (
	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// lasPointFormatRGB is the LAS point record format carrying an RGB color.
const lasPointFormatRGB = 2

// WriteToLASFile writes the points to a LAS file with one colored point record per point.
// Positions are quantized by the file's scale factors.
func WriteToLASFile(pts Points, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: lasPointFormatRGB}); err != nil {
		return err
	}
	for _, p := range pts {
		r, g, b := p.RGB255()
		record := &lidario.PointRecord2{
			PointRecord0: &lidario.PointRecord0{
				X: p.Position.X,
				Y: p.Position.Y,
				Z: p.Position.Z,
				BitField: lidario.PointBitField{
					Value: (1) | (1 << 3),
				},
				PointSourceID: 1,
			},
			RGB: &lidario.RgbData{
				Red:   uint16(r) * 256,
				Green: uint16(g) * 256,
				Blue:  uint16(b) * 256,
			},
		}
		if err := lf.AddLasPoint(record); err != nil {
			return err
		}
	}
	return nil
}

// NewFromLASFile reads the points of a LAS file. Points without color data are white.
func NewFromLASFile(fn string) (Points, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	pts := make(Points, 0, lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		pos := r3.Vector{X: data.X, Y: data.Y, Z: data.Z}
		if rgb := p.RgbData(); rgb != nil {
			pts = append(pts, NewPoint(pos, uint8(rgb.Red/256), uint8(rgb.Green/256), uint8(rgb.Blue/256)))
			continue
		}
		pts = append(pts, NewPoint(pos, 255, 255, 255))
	}
	return pts, nil
}
