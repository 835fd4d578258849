package placement

import (
	"errors"
	"fmt"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/sim/catalogs"
)

// Builder assembles a generator layer by layer. The first error sticks and is
// returned by Build.
type Builder struct {
	seed int64
	gens []Generator
	err  error
}

// NewBuilder returns a builder; seed drives every random layer, offset by the
// layer's index.
func NewBuilder(seed int64) *Builder {
	return &Builder{seed: seed}
}

func (b *Builder) add(g Generator, err error) *Builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.gens), err)
		return b
	}
	b.gens = append(b.gens, g)
	return b
}

func (b *Builder) Constant(ps ...Placement) *Builder {
	g, err := NewConstant(ps...)
	return b.add(g, err)
}

func (b *Builder) Alternating(ps ...Placement) *Builder {
	g, err := NewAlternating(ps...)
	return b.add(g, err)
}

func (b *Builder) AlternatingSamePosition(offset curve.Coord, blocks ...uint16) *Builder {
	ps := make([]Placement, len(blocks))
	for i, bl := range blocks {
		ps[i] = Placement{Offset: offset, Block: bl}
	}
	return b.Alternating(ps...)
}

func (b *Builder) Random(ws ...Weighted) *Builder {
	g, err := NewRandomWeighted(b.seed+int64(len(b.gens)), ws...)
	return b.add(g, err)
}

type WeightedBlock struct {
	Block  uint16
	Weight float64
}

func (b *Builder) RandomSamePosition(offset curve.Coord, ws ...WeightedBlock) *Builder {
	out := make([]Weighted, len(ws))
	for i, w := range ws {
		out[i] = Weighted{Placement: Placement{Offset: offset, Block: w.Block}, Weight: w.Weight}
	}
	return b.Random(out...)
}

// Build returns the single layer unwrapped, or a Compound of all layers.
func (b *Builder) Build() (Generator, error) {
	if b.err != nil {
		return nil, b.err
	}
	switch len(b.gens) {
	case 0:
		return nil, errors.New("placement: builder has no layers")
	case 1:
		return b.gens[0], nil
	default:
		return NewCompound(b.gens...), nil
	}
}

// FromDesign builds a generator for a catalog design, resolving block ids
// through index.
func FromDesign(def catalogs.DesignDef, index map[string]uint16, seed int64) (Generator, error) {
	b := NewBuilder(seed)
	for i, l := range def.Layers {
		ps := make([]Placement, len(l.Placements))
		ws := make([]Weighted, len(l.Placements))
		for j, p := range l.Placements {
			id, ok := index[p.Block]
			if !ok {
				return nil, fmt.Errorf("design %s layer %d: unknown block %q", def.ID, i, p.Block)
			}
			ps[j] = Placement{Offset: curve.CoordFromArray(p.Offset), Block: id}
			ws[j] = Weighted{Placement: ps[j], Weight: p.Weight}
		}
		switch l.Mode {
		case catalogs.ModeConstant:
			b.Constant(ps...)
		case catalogs.ModeAlternating, catalogs.ModeAlternatingSamePosition:
			b.Alternating(ps...)
		case catalogs.ModeRandom, catalogs.ModeRandomSamePosition:
			b.Random(ws...)
		default:
			return nil, fmt.Errorf("design %s layer %d: unknown mode %q", def.ID, i, l.Mode)
		}
	}
	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("design %s: %w", def.ID, err)
	}
	return g, nil
}
