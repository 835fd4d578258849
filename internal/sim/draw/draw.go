// Package draw writes rasterized curves into the voxel grid.
package draw

import (
	"log"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/sim/placement"
)

// CellWriter is the grid capability a draw needs. SetBlock reports whether the
// cell was written; false covers out-of-bounds and "already that block".
type CellWriter interface {
	SetBlock(pos curve.Coord, block uint16) bool
}

type CellWriterFunc func(pos curve.Coord, block uint16) bool

func (f CellWriterFunc) SetBlock(pos curve.Coord, block uint16) bool { return f(pos, block) }

type Result struct {
	Voxels int `json:"voxels"`
	Placed int `json:"placed"`
	Failed int `json:"failed"`
	// Truncated is set when the sequence was cut off at the voxel limit.
	Truncated bool `json:"truncated,omitempty"`

	First curve.Coord `json:"-"`
	Last  curve.Coord `json:"-"`
}

type Drawer struct {
	// Optional.
	Log *log.Logger
	// Debug logs every failed placement, not just the summary.
	Debug bool
	// MaxVoxels stops pulling from the sequence after this many voxels; 0 means
	// no limit.
	MaxVoxels int
}

// Draw resets gen, then pulls each voxel from seq and writes every placement
// gen returns relative to it. Failed writes are counted, never retried.
func (d Drawer) Draw(seq curve.Sequence, gen placement.Generator, w CellWriter) Result {
	var r Result
	gen.Reset()
	it := seq.Iter()
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		if d.MaxVoxels > 0 && r.Voxels >= d.MaxVoxels {
			r.Truncated = true
			break
		}
		if r.Voxels == 0 {
			r.First = c
		}
		r.Last = c
		r.Voxels++
		for _, p := range gen.Next() {
			pos := c.Add(p.Offset)
			if w.SetBlock(pos, p.Block) {
				r.Placed++
				continue
			}
			r.Failed++
			if d.Debug && d.Log != nil {
				d.Log.Printf("draw: placement of %d at %s not applied", p.Block, pos)
			}
		}
	}
	if d.Log != nil && (r.Failed > 0 || r.Truncated) {
		d.Log.Printf("draw: voxels=%d placed=%d failed=%d truncated=%v", r.Voxels, r.Placed, r.Failed, r.Truncated)
	}
	return r
}

// Draw uses a zero Drawer.
func Draw(seq curve.Sequence, gen placement.Generator, w CellWriter) Result {
	return Drawer{}.Draw(seq, gen, w)
}
