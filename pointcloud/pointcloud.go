// Package pointcloud defines the point type read out of octree nodes and the writers used to
// export sets of those points.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in a set of points.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	totalX, totalY, totalZ float64
	count                  int
}

// NewMetaData creates a new MetaData that has not seen any point yet.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the bounds and centroid with the given position.
func (meta *MetaData) Merge(v r3.Vector) {
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)

	meta.totalX += v.X
	meta.totalY += v.Y
	meta.totalZ += v.Z
	meta.count++
}

// Count returns the number of merged points.
func (meta MetaData) Count() int {
	return meta.count
}

// Center returns the centroid of the merged points.
func (meta MetaData) Center() r3.Vector {
	if meta.count == 0 {
		return r3.Vector{}
	}
	return r3.Vector{
		X: meta.totalX / float64(meta.count),
		Y: meta.totalY / float64(meta.count),
		Z: meta.totalZ / float64(meta.count),
	}
}

// Points is an ordered collection of points.
type Points []Point

// MetaData computes the bounds of the points.
func (pts Points) MetaData() MetaData {
	meta := NewMetaData()
	for _, p := range pts {
		meta.Merge(p.Position)
	}
	return meta
}
