// Package placement decides which blocks are written around each voxel of a
// drawn path.
package placement

import (
	"errors"
	"fmt"
	"sort"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/sim/mathx"
)

var ErrNoPlacements = errors.New("placement: at least one placement is required")

// Placement is a block written at Offset relative to a path voxel.
type Placement struct {
	Offset curve.Coord
	Block  uint16
}

// Generator yields the placements for successive voxels. Next may advance
// internal state; Reset returns the generator to its initial state so a
// second draw repeats the first. Callers must not modify returned slices.
type Generator interface {
	Next() []Placement
	Reset()
}

// Constant returns the same placements for every voxel.
type Constant struct {
	placements []Placement
}

func NewConstant(ps ...Placement) (*Constant, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("constant: %w", ErrNoPlacements)
	}
	return &Constant{placements: append([]Placement(nil), ps...)}, nil
}

func (c *Constant) Next() []Placement { return c.placements }
func (c *Constant) Reset()            {}

// Alternating cycles through its options, one per voxel.
type Alternating struct {
	options []Placement
	count   int
}

func NewAlternating(ps ...Placement) (*Alternating, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("alternating: %w", ErrNoPlacements)
	}
	return &Alternating{options: append([]Placement(nil), ps...)}, nil
}

func (a *Alternating) Next() []Placement {
	p := a.options[a.count%len(a.options)]
	a.count++
	return []Placement{p}
}

func (a *Alternating) Reset() { a.count = 0 }

type Weighted struct {
	Placement
	Weight float64
}

// RandomWeighted picks one option per voxel with probability proportional to
// its weight. The choice sequence is a pure function of the seed.
type RandomWeighted struct {
	seed    int64
	options []Placement
	cum     []float64
	n       uint64
}

func NewRandomWeighted(seed int64, ws ...Weighted) (*RandomWeighted, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("random: %w", ErrNoPlacements)
	}
	r := &RandomWeighted{
		seed:    seed,
		options: make([]Placement, len(ws)),
		cum:     make([]float64, len(ws)),
	}
	total := 0.0
	for i, w := range ws {
		if !(w.Weight > 0) {
			return nil, fmt.Errorf("random: weight %g for block %d must be positive", w.Weight, w.Block)
		}
		total += w.Weight
		r.options[i] = w.Placement
		r.cum[i] = total
	}
	return r, nil
}

func (r *RandomWeighted) Next() []Placement {
	total := r.cum[len(r.cum)-1]
	u := mathx.Unit(mathx.Stream(r.seed, r.n)) * total
	r.n++
	i := sort.Search(len(r.cum), func(i int) bool { return r.cum[i] > u })
	if i == len(r.cum) {
		i = len(r.cum) - 1
	}
	return []Placement{r.options[i]}
}

func (r *RandomWeighted) Reset() { r.n = 0 }

// Compound concatenates the placements of its children in order.
type Compound struct {
	gens []Generator
}

func NewCompound(gens ...Generator) *Compound {
	return &Compound{gens: gens}
}

func (c *Compound) Next() []Placement {
	var out []Placement
	for _, g := range c.gens {
		out = append(out, g.Next()...)
	}
	return out
}

func (c *Compound) Reset() {
	for _, g := range c.gens {
		g.Reset()
	}
}
