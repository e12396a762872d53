// Package cli contains the pcquery command line interface.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/pcindex/config"
	"go.viam.com/pcindex/logging"
)

const (
	// Flags.
	debugFlag = "debug"

	cameraFlag         = "camera"
	eyeFlag            = "eye"
	targetFlag         = "target"
	upFlag             = "up"
	projectionFlag     = "projection"
	fovFlag            = "fov"
	nearFlag           = "near"
	farFlag            = "far"
	orthoHalfWidthFlag = "ortho-half-width"
	widthFlag          = "width"
	heightFlag         = "height"
	lodFlag            = "lod"

	budgetFlag  = "budget"
	outFlag     = "out"
	summaryFlag = "summary"
	formatFlag  = "format"
)

// cameraFlags returns the flags describing the camera of a query, followed by extra.
func cameraFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    cameraFlag,
			Aliases: []string{"c"},
			Usage:   "load the camera from a JSON5 `FILE`; other camera flags override its fields",
		},
		&cli.Float64SliceFlag{
			Name:  eyeFlag,
			Usage: "camera position as x,y,z",
		},
		&cli.Float64SliceFlag{
			Name:  targetFlag,
			Usage: "point the camera looks at as x,y,z",
		},
		&cli.Float64SliceFlag{
			Name:  upFlag,
			Usage: "camera up direction as x,y,z",
		},
		&cli.StringFlag{
			Name:  projectionFlag,
			Usage: fmt.Sprintf("%s or %s", config.PerspectiveProjection, config.OrthographicProjection),
		},
		&cli.Float64Flag{
			Name:  fovFlag,
			Usage: "vertical field of view in degrees",
		},
		&cli.Float64Flag{
			Name:  nearFlag,
			Usage: "near clipping distance",
		},
		&cli.Float64Flag{
			Name:  farFlag,
			Usage: "far clipping distance",
		},
		&cli.Float64Flag{
			Name:  orthoHalfWidthFlag,
			Usage: "half width of the view volume of an orthographic camera",
		},
		&cli.IntFlag{
			Name:  widthFlag,
			Usage: "viewport width in pixels",
		},
		&cli.IntFlag{
			Name:  heightFlag,
			Usage: "viewport height in pixels",
		},
		&cli.BoolFlag{
			Name:  lodFlag,
			Usage: "subsample nodes that are small on screen",
		},
		&cli.IntFlag{
			Name:  budgetFlag,
			Usage: "stop adding nodes once this many points are retained, 0 for no limit",
		},
	}, extra...)
}

var app = &cli.App{
	Name:            "pcquery",
	Usage:           "query an on-disk point cloud octree",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "info",
			Usage:     "print the bounding cube and per level statistics of an index",
			ArgsUsage: "<index directory>",
			Action:    InfoAction,
		},
		{
			Name:      "visible",
			Usage:     "list the nodes visible from a camera",
			ArgsUsage: "<index directory>",
			Flags:     cameraFlags(),
			Action:    VisibleAction,
		},
		{
			Name:      "blob",
			Usage:     "write the points visible from a camera as a binary blob",
			ArgsUsage: "<index directory>",
			Flags: cameraFlags(
				&cli.PathFlag{
					Name:     outFlag,
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "blob output `FILE`",
				},
				&cli.BoolFlag{
					Name:  summaryFlag,
					Usage: "decode the written blob and print its contents per node",
				},
			),
			Action: BlobAction,
		},
		{
			Name:      "export",
			Usage:     "write the points visible from a camera as a PCD or LAS file",
			ArgsUsage: "<index directory>",
			Flags: cameraFlags(
				&cli.PathFlag{
					Name:     outFlag,
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "output `FILE`, .pcd or .las",
				},
				&cli.StringFlag{
					Name:  formatFlag,
					Value: "binary",
					Usage: "PCD data encoding: ascii or binary",
				},
			),
			Action: ExportAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

// newLogger returns a logger writing to the app's error output, at debug level when requested.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("pcquery")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.INFO)
	}
	return logger
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
