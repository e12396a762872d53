// Package main is the pcquery command itself.
package main

import (
	"os"

	"go.viam.com/pcindex/cli"
	"go.viam.com/pcindex/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("pcquery").Fatal(err)
	}
}
