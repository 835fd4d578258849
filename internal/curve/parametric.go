package curve

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// errorThreshold is how much pending displacement an axis must accumulate
// before the voxelizer emits a unit move along it.
const errorThreshold = 1.0 - 0.001

// ParametricSequence voxelizes any ParametricFunction by floating error
// accumulation. The voxel list is computed on first use and cached; every
// iterator afterwards reads from the cached buffer.
type ParametricSequence struct {
	fn   ParametricFunction
	step float64

	once   sync.Once
	voxels []Coord
	evals  atomic.Int64
}

// NewParametricSequence prepares f for voxelization with the given parameter
// step (see StepSizeFromDerivatives). An infinite step means the curve never
// moves and yields only its start voxel.
func NewParametricSequence(f ParametricFunction, step float64) (*ParametricSequence, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(step) || step <= 0 {
		return nil, fmt.Errorf("parametric step size %g must be positive: %w", step, ErrInvalidConfig)
	}
	return &ParametricSequence{fn: f, step: step}, nil
}

func (s *ParametricSequence) Iter() Iterator {
	return &sliceIterator{coords: s.Voxels()}
}

// Voxels returns the cached voxel list. Callers must not modify it.
func (s *ParametricSequence) Voxels() []Coord {
	s.once.Do(func() { s.voxels = s.voxelize() })
	return s.voxels
}

// Evaluations reports how many times the underlying function was evaluated.
func (s *ParametricSequence) Evaluations() int64 { return s.evals.Load() }

func (s *ParametricSequence) eval(t float64) Vec3 {
	s.evals.Add(1)
	return s.fn.Eval(t)
}

func (s *ParametricSequence) voxelize() []Coord {
	startT, endT := s.fn.StartT, s.fn.EndT
	startPos := s.eval(startT)
	cur := startPos.Rounded()
	out := []Coord{cur}

	if startT == endT || math.IsInf(s.step, 1) {
		return out
	}

	span := math.Abs(endT - startT)
	steps := int(math.Ceil(span/s.step - 1e-9))
	if steps < 1 {
		steps = 1
	}
	stride := s.step
	if endT < startT {
		stride = -stride
	}

	prev := startPos
	var pending Vec3
	for i := 1; i <= steps; i++ {
		t := startT + float64(i)*stride
		if i == steps {
			t = endT
		}
		pos := s.eval(t)
		pending = pending.Add(pos.Sub(prev))
		prev = pos

		for {
			abs := pending.Abs()
			if abs.X < errorThreshold && abs.Y < errorThreshold && abs.Z < errorThreshold {
				break
			}
			// Largest pending error wins; ties go X, then Y, then Z.
			switch {
			case abs.X >= abs.Y && abs.X >= abs.Z:
				d := sign(pending.X)
				cur = cur.Offset(d, 0, 0)
				pending.X -= float64(d)
			case abs.Y >= abs.Z:
				d := sign(pending.Y)
				cur = cur.Offset(0, d, 0)
				pending.Y -= float64(d)
			default:
				d := sign(pending.Z)
				cur = cur.Offset(0, 0, d)
				pending.Z -= float64(d)
			}
			out = append(out, cur)
		}
	}

	return walkTo(out, prev.Rounded())
}

// walkTo appends unit moves from the last coordinate of path to end, largest
// remaining distance first.
func walkTo(path []Coord, end Coord) []Coord {
	cur := path[len(path)-1]
	for cur != end {
		d := end.Sub(cur)
		ax, ay, az := absInt(d.X), absInt(d.Y), absInt(d.Z)
		switch {
		case ax >= ay && ax >= az:
			cur = cur.Offset(sign(float64(d.X)), 0, 0)
		case ay >= az:
			cur = cur.Offset(0, sign(float64(d.Y)), 0)
		default:
			cur = cur.Offset(0, 0, sign(float64(d.Z)))
		}
		path = append(path, cur)
	}
	return path
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
