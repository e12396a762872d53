package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// ReadCameraConfig reads a camera from the given JSON5 file. Environment variables referenced as
// ${VAR} are substituted before decoding.
func ReadCameraConfig(filePath string) (*CameraConfig, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return CameraConfigFromReader(bytes.NewReader(buf))
}

// CameraConfigFromReader reads a camera from the given reader, applies defaults and validates it.
func CameraConfigFromReader(r io.Reader) (*CameraConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var cfg CameraConfig
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode camera config from json5")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate("camera"); err != nil {
		return nil, err
	}
	return &cfg, nil
}
