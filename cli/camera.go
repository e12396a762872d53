package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/pcindex/config"
)

// cameraFromFlags loads the camera file, if any, applies the individual camera flags on top of it
// and validates the result.
func cameraFromFlags(c *cli.Context) (*config.CameraConfig, error) {
	cfg := &config.CameraConfig{}
	if path := c.String(cameraFlag); path != "" {
		loaded, err := config.ReadCameraConfig(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load camera from %s", path)
		}
		cfg = loaded
	}

	for name, dst := range map[string]*config.Vector{eyeFlag: &cfg.Eye, targetFlag: &cfg.Target} {
		if !c.IsSet(name) {
			continue
		}
		v, err := vectorFlag(c, name)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	if c.IsSet(upFlag) {
		up, err := vectorFlag(c, upFlag)
		if err != nil {
			return nil, err
		}
		cfg.Up = &up
	}
	if c.IsSet(projectionFlag) {
		cfg.Projection = config.ProjectionType(c.String(projectionFlag))
	}
	if c.IsSet(fovFlag) {
		cfg.FovDegrees = c.Float64(fovFlag)
	}
	if c.IsSet(nearFlag) {
		cfg.Near = c.Float64(nearFlag)
	}
	if c.IsSet(farFlag) {
		cfg.Far = c.Float64(farFlag)
	}
	if c.IsSet(orthoHalfWidthFlag) {
		cfg.OrthoHalfWidth = c.Float64(orthoHalfWidthFlag)
		cfg.OrthoHalfHeight = 0
	}
	if c.IsSet(widthFlag) {
		cfg.Width = c.Int(widthFlag)
	}
	if c.IsSet(heightFlag) {
		cfg.Height = c.Int(heightFlag)
	}
	if c.IsSet(lodFlag) {
		cfg.LOD = c.Bool(lodFlag)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(cameraFlag); err != nil {
		return nil, err
	}
	return cfg, nil
}

func vectorFlag(c *cli.Context, name string) (config.Vector, error) {
	values := c.Float64Slice(name)
	if len(values) != 3 {
		return config.Vector{}, errors.Errorf("--%s takes exactly 3 comma separated values, got %d", name, len(values))
	}
	return config.NewVector(values[0], values[1], values[2]), nil
}
