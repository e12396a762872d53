package octree

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
)

// LevelStats summarizes the stored nodes at one level of the octree.
type LevelStats struct {
	Level        int
	Nodes        int
	Points       uint64
	MeanPoints   float64
	MedianPoints float64
	MaxPoints    uint64
	// EdgeLength is the edge length of the nodes' bounding cubes at this level.
	EdgeLength float64
}

// Stats holds per level statistics of an octree, ordered by level.
type Stats []LevelStats

// Stats computes per level statistics over the stored nodes.
func (o *Octree) Stats() Stats {
	byLevel := lo.GroupBy(o.NodeIDs(), func(id NodeID) int { return id.Level() })

	levels := lo.Keys(byLevel)
	sort.Ints(levels)

	result := make(Stats, 0, len(levels))
	for _, level := range levels {
		ids := byLevel[level]
		counts := make(stats.Float64Data, 0, len(ids))
		var total, largest uint64
		for _, id := range ids {
			n := o.nodes[id]
			counts = append(counts, float64(n))
			total += n
			if n > largest {
				largest = n
			}
		}
		// Errors are only returned for empty input and every level has at least one node.
		mean, _ := counts.Mean()
		median, _ := counts.Median()
		result = append(result, LevelStats{
			Level:        level,
			Nodes:        len(ids),
			Points:       total,
			MeanPoints:   mean,
			MedianPoints: median,
			MaxPoints:    largest,
			EdgeLength:   o.boundingCube.EdgeLength() / float64(uint64(1)<<level),
		})
	}
	return result
}

// TotalPoints returns the number of points over all levels.
func (s Stats) TotalPoints() uint64 {
	return lo.SumBy(s, func(ls LevelStats) uint64 { return ls.Points })
}

// String renders the statistics as a table, one row per level.
func (s Stats) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Level", "Nodes", "Points", "Mean", "Median", "Max", "Edge"})
	for _, ls := range s {
		t.AppendRow(table.Row{
			ls.Level,
			ls.Nodes,
			ls.Points,
			fmt.Sprintf("%.1f", ls.MeanPoints),
			fmt.Sprintf("%.1f", ls.MedianPoints),
			ls.MaxPoints,
			fmt.Sprintf("%g", ls.EdgeLength),
		})
	}
	t.AppendFooter(table.Row{"", "", s.TotalPoints()})
	return t.Render()
}
