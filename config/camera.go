// Package config defines the camera a visibility query is made from and how it is read from disk.
package config

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ProjectionType selects how a camera maps view space to clip space.
type ProjectionType string

// The supported projections.
const (
	PerspectiveProjection  ProjectionType = "perspective"
	OrthographicProjection ProjectionType = "orthographic"
)

// Defaults applied to fields left unset.
const (
	DefaultFovDegrees = 60.
	DefaultNear       = 0.1
	DefaultFar        = 1000.
	DefaultWidth      = 1920
	DefaultHeight     = 1080
)

// Vector is a point or direction in the coordinate system of the point cloud.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewVector returns a Vector from its components.
func NewVector(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// R3 returns the vector as an r3.Vector.
func (v Vector) R3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vector) vec3() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// CameraConfig describes a camera looking at the point cloud and the viewport it renders into.
type CameraConfig struct {
	Eye    Vector  `json:"eye"`
	Target Vector  `json:"target"`
	Up     *Vector `json:"up,omitempty"`

	Projection ProjectionType `json:"projection,omitempty"`
	// FovDegrees is the vertical field of view of a perspective camera.
	FovDegrees float64 `json:"fov_degrees,omitempty"`
	Near       float64 `json:"near,omitempty"`
	Far        float64 `json:"far,omitempty"`
	// OrthoHalfWidth and OrthoHalfHeight are the half extents of the view volume of an orthographic
	// camera. A missing half height follows the viewport aspect ratio.
	OrthoHalfWidth  float64 `json:"ortho_half_width,omitempty"`
	OrthoHalfHeight float64 `json:"ortho_half_height,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// LOD subsamples nodes that are small on screen.
	LOD bool `json:"lod"`
}

// ApplyDefaults fills in every unset optional field.
func (c *CameraConfig) ApplyDefaults() {
	if c.Up == nil {
		up := NewVector(0, 1, 0)
		c.Up = &up
	}
	if c.Projection == "" {
		c.Projection = PerspectiveProjection
	}
	if c.FovDegrees == 0 {
		c.FovDegrees = DefaultFovDegrees
	}
	if c.Near == 0 {
		c.Near = DefaultNear
	}
	if c.Far == 0 {
		c.Far = DefaultFar
	}
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.Projection == OrthographicProjection && c.OrthoHalfHeight == 0 && c.Height > 0 {
		c.OrthoHalfHeight = c.OrthoHalfWidth * float64(c.Height) / float64(c.Width)
	}
}

// Validate ensures all parts of the config are valid.
func (c *CameraConfig) Validate(path string) error {
	if c.Width <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "width")
	}
	if c.Height <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "height")
	}
	if c.Up == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "up")
	}

	forward := c.Target.R3().Sub(c.Eye.R3())
	if forward.Norm() == 0 {
		return utils.NewConfigValidationError(path, errors.New("eye and target must differ"))
	}
	if c.Up.R3().Norm() == 0 || forward.Cross(c.Up.R3()).Norm() < 1e-9*forward.Norm()*c.Up.R3().Norm() {
		return utils.NewConfigValidationError(path, errors.New("up must not be parallel to the view direction"))
	}

	switch c.Projection {
	case PerspectiveProjection:
		if c.FovDegrees <= 0 || c.FovDegrees >= 180 {
			return utils.NewConfigValidationError(path, errors.Errorf("fov_degrees must be in (0, 180), got %v", c.FovDegrees))
		}
		if c.Near <= 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("near must be positive, got %v", c.Near))
		}
	case OrthographicProjection:
		if c.OrthoHalfWidth <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "ortho_half_width")
		}
		if c.OrthoHalfHeight <= 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("ortho_half_height must be positive, got %v", c.OrthoHalfHeight))
		}
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown projection %q", c.Projection))
	}
	if !(c.Far > c.Near) || math.IsInf(c.Far, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("far (%v) must be finite and beyond near (%v)", c.Far, c.Near))
	}
	return nil
}

// Matrix returns the combined projection and view matrix of the camera.
func (c *CameraConfig) Matrix() mgl64.Mat4 {
	up := mgl64.Vec3{0, 1, 0}
	if c.Up != nil {
		up = c.Up.vec3()
	}
	view := mgl64.LookAtV(c.Eye.vec3(), c.Target.vec3(), up)

	var projection mgl64.Mat4
	switch c.Projection {
	case OrthographicProjection:
		projection = mgl64.Ortho(-c.OrthoHalfWidth, c.OrthoHalfWidth, -c.OrthoHalfHeight, c.OrthoHalfHeight, c.Near, c.Far)
	default:
		aspect := float64(c.Width) / float64(c.Height)
		projection = mgl64.Perspective(mgl64.DegToRad(c.FovDegrees), aspect, c.Near, c.Far)
	}
	return projection.Mul4(view)
}
