package curve

import (
	"fmt"
	"math"
)

// Variable tags the independent variable a ParametricFunction was written
// against. Rasterizers only carry it along.
type Variable int

const (
	VarT Variable = iota
	VarX
	VarY
	VarZ
)

func (v Variable) String() string {
	switch v {
	case VarX:
		return "x"
	case VarY:
		return "y"
	case VarZ:
		return "z"
	default:
		return "t"
	}
}

type ScalarFunc func(t float64) float64

// ParametricFunction is f(t) = (X(t), Y(t), Z(t)) over [StartT, EndT].
//
// DX, DY and DZ are optional analytic derivatives; when any of them is nil
// Derivative falls back to a central difference for that axis.
type ParametricFunction struct {
	Var     Variable
	X, Y, Z ScalarFunc

	DX, DY, DZ ScalarFunc

	StartT float64
	EndT   float64
}

const derivativeStep = 1e-6

func (f ParametricFunction) Eval(t float64) Vec3 {
	return Vec3{f.X(t), f.Y(t), f.Z(t)}
}

func (f ParametricFunction) Derivative(t float64) Vec3 {
	return Vec3{
		derivative(f.X, f.DX, t),
		derivative(f.Y, f.DY, t),
		derivative(f.Z, f.DZ, t),
	}
}

func derivative(fn, d ScalarFunc, t float64) float64 {
	if d != nil {
		return d(t)
	}
	return (fn(t+derivativeStep) - fn(t-derivativeStep)) / (2 * derivativeStep)
}

func (f ParametricFunction) Start() Vec3 { return f.Eval(f.StartT) }
func (f ParametricFunction) End() Vec3   { return f.Eval(f.EndT) }

// Validate checks that the function can be evaluated over a finite domain.
func (f ParametricFunction) Validate() error {
	if f.X == nil || f.Y == nil || f.Z == nil {
		return fmt.Errorf("parametric function missing a component: %w", ErrInvalidConfig)
	}
	if math.IsNaN(f.StartT) || math.IsNaN(f.EndT) || math.IsInf(f.StartT, 0) || math.IsInf(f.EndT, 0) {
		return fmt.Errorf("parametric domain [%g, %g] is not finite: %w", f.StartT, f.EndT, ErrInvalidConfig)
	}
	return nil
}

// StepSizeFromDerivatives returns the reciprocal of the summed per-axis
// maxima of |f'| over the sample parameters ts. A parameter step of that size
// moves the curve by at most one unit summed over all axes, provided ts
// contains every place |f'| can peak. A zero bound yields +Inf.
func StepSizeFromDerivatives(f ParametricFunction, ts ...float64) float64 {
	var bound Vec3
	for _, t := range ts {
		bound = MaxVec(bound, f.Derivative(t).Abs())
	}
	return 1 / bound.Sum()
}
