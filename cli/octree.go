package cli

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/pcindex/config"
	"go.viam.com/pcindex/octree"
	"go.viam.com/pcindex/pointcloud"
)

func loadOctree(c *cli.Context) (*octree.Octree, error) {
	if c.Args().Len() != 1 {
		return nil, errors.New("expected exactly one argument: the index directory")
	}
	return octree.New(c.Args().First(), newLogger(c))
}

// query loads the index and the camera and returns the visible nodes with the blob requests for
// them, cut to the point budget.
func query(c *cli.Context) (*octree.Octree, *config.CameraConfig, []octree.VisibleNode, []octree.NodesToBlob, error) {
	tree, err := loadOctree(c)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	camera, err := cameraFromFlags(c)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	visible := tree.VisibleNodes(camera.Matrix(), camera.Width, camera.Height, octree.UseLOD(camera.LOD))
	requests := tree.BlobRequests(visible, c.Int(budgetFlag))
	return tree, camera, visible, requests, nil
}

// InfoAction prints the bounding cube and per level statistics of an index.
func InfoAction(c *cli.Context) error {
	tree, err := loadOctree(c)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "Index %s", tree.Directory())
	printf(c.App.Writer, "Bounding cube %s", tree.BoundingCube())
	printf(c.App.Writer, "%d nodes", tree.NumNodes())
	printf(c.App.Writer, "%s", tree.Stats())
	return nil
}

// VisibleAction lists the nodes visible from the camera, largest on screen first.
func VisibleAction(c *cli.Context) error {
	tree, camera, visible, requests, err := query(c)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Node", "Level", "Pixels", "Points", "LOD", "Retained"})
	var stored, retained uint64
	for i, v := range visible {
		numPoints, _ := tree.NumPoints(v.ID)
		kept := (numPoints + uint64(v.LevelOfDetail) - 1) / uint64(v.LevelOfDetail)
		row := table.Row{
			v.ID,
			v.ID.Level(),
			fmt.Sprintf("%.0fx%.0f", v.Pixels().X, v.Pixels().Y),
			numPoints,
			v.LevelOfDetail,
			kept,
		}
		if i >= len(requests) {
			row[5] = "over budget"
		} else {
			retained += kept
		}
		stored += numPoints
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d nodes", len(visible)), "", "", stored, "", retained})

	printf(c.App.Writer, "Camera at %v looking at %v, %dx%d pixels", camera.Eye.R3(), camera.Target.R3(), camera.Width, camera.Height)
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// BlobAction writes the blob for the nodes visible from the camera to a file.
func BlobAction(c *cli.Context) error {
	tree, _, _, requests, err := query(c)
	if err != nil {
		return err
	}
	numPoints, blob, err := tree.NodesAsBinaryBlob(requests)
	if err != nil {
		return err
	}
	out := c.Path(outFlag)
	if err := os.WriteFile(out, blob, 0o600); err != nil {
		return errors.Wrapf(err, "could not write blob to %s", out)
	}
	printf(c.App.Writer, "Wrote %d points from %d nodes (%s) to %s",
		numPoints, len(requests), units.HumanSize(float64(len(blob))), out)

	if !c.Bool(summaryFlag) {
		return nil
	}
	nodes, err := octree.ParseBinaryBlob(blob)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Node", "LOD", "Points", "Center"})
	for i, node := range nodes {
		center := "-"
		if len(node.Points) > 0 {
			mid := node.Points.MetaData().Center()
			center = fmt.Sprintf("(%.3f, %.3f, %.3f)", mid.X, mid.Y, mid.Z)
		}
		t.AppendRow(table.Row{requests[i].ID, requests[i].LevelOfDetail, len(node.Points), center})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// ExportAction writes the points visible from the camera, as they would be sent in a blob, to a
// PCD or LAS file.
func ExportAction(c *cli.Context) error {
	pcdType, err := pointcloud.PCDTypeFromString(c.String(formatFlag))
	if err != nil {
		return err
	}
	tree, _, _, requests, err := query(c)
	if err != nil {
		return err
	}
	_, blob, err := tree.NodesAsBinaryBlob(requests)
	if err != nil {
		return err
	}
	nodes, err := octree.ParseBinaryBlob(blob)
	if err != nil {
		return err
	}
	pts := lo.FlatMap(nodes, func(node octree.BlobNode, _ int) []pointcloud.Point {
		return node.Points
	})

	out := c.Path(outFlag)
	if err := pointcloud.WriteToFile(pts, out, pcdType); err != nil {
		return err
	}
	printf(c.App.Writer, "Exported %d points from %d nodes to %s", len(pts), len(nodes), out)
	return nil
}
