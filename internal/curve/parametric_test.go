package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func helix(radius, rise, turns float64) ParametricFunction {
	return ParametricFunction{
		Var:    VarT,
		X:      func(t float64) float64 { return radius * math.Cos(t) },
		Y:      func(t float64) float64 { return rise * t },
		Z:      func(t float64) float64 { return radius * math.Sin(t) },
		DX:     func(t float64) float64 { return -radius * math.Sin(t) },
		DY:     func(float64) float64 { return rise },
		DZ:     func(t float64) float64 { return radius * math.Cos(t) },
		StartT: 0,
		EndT:   2 * math.Pi * turns,
	}
}

func TestParametricSequence_Helix(t *testing.T) {
	f := helix(6, 1.5, 2)
	step := StepSizeFromDerivatives(f, 0, math.Pi/2)
	seq, err := NewParametricSequence(f, step)
	if err != nil {
		t.Fatalf("NewParametricSequence: %v", err)
	}
	got := Collect(seq)
	checkPath(t, got, f.Start().Rounded(), f.End().Rounded())
}

func TestParametricSequence_ReversedDomain(t *testing.T) {
	f := helix(4, 1, 1)
	f.StartT, f.EndT = f.EndT, f.StartT
	seq, err := NewParametricSequence(f, StepSizeFromDerivatives(f, 0, math.Pi/2))
	if err != nil {
		t.Fatalf("NewParametricSequence: %v", err)
	}
	got := Collect(seq)
	checkPath(t, got, f.Start().Rounded(), f.End().Rounded())
}

func TestParametricSequence_NumericDerivative(t *testing.T) {
	f := helix(5, 2, 1)
	f.DX, f.DY, f.DZ = nil, nil, nil
	d := f.Derivative(math.Pi / 2)
	if math.Abs(d.X+5) > 1e-4 || math.Abs(d.Y-2) > 1e-4 || math.Abs(d.Z) > 1e-4 {
		t.Fatalf("central difference derivative=%v", d)
	}
}

func TestParametricSequence_ZeroLengthDomain(t *testing.T) {
	f := helix(3, 1, 1)
	f.EndT = f.StartT
	seq, err := NewParametricSequence(f, 0.1)
	if err != nil {
		t.Fatalf("NewParametricSequence: %v", err)
	}
	if diff := cmp.Diff([]Coord{{3, 0, 0}}, Collect(seq)); diff != "" {
		t.Fatalf("zero-length domain (-want +got):\n%s", diff)
	}
}

func TestParametricSequence_RejectsBadStep(t *testing.T) {
	f := helix(3, 1, 1)
	for _, step := range []float64{0, -0.5, math.NaN()} {
		if _, err := NewParametricSequence(f, step); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("step %g: expected ErrInvalidConfig, got %v", step, err)
		}
	}
	f.Y = nil
	if _, err := NewParametricSequence(f, 0.1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing component: expected ErrInvalidConfig, got %v", err)
	}
}

func TestParametricSequence_InfiniteStepIsSingleVoxel(t *testing.T) {
	f := ParametricFunction{
		X:    func(float64) float64 { return 2 },
		Y:    func(float64) float64 { return -1 },
		Z:    func(float64) float64 { return 4 },
		EndT: 1,
	}
	step := StepSizeFromDerivatives(f, 0, 1)
	if !math.IsInf(step, 1) {
		t.Fatalf("constant function step=%g want +Inf", step)
	}
	seq, err := NewParametricSequence(f, step)
	if err != nil {
		t.Fatalf("NewParametricSequence: %v", err)
	}
	if diff := cmp.Diff([]Coord{{2, -1, 4}}, Collect(seq)); diff != "" {
		t.Fatalf("constant curve (-want +got):\n%s", diff)
	}
}
