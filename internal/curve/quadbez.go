package curve

// QuadraticFunction is the quadratic Bézier through P0, P1, P2 over [0, 1].
func QuadraticFunction(p0, p1, p2 Coord) ParametricFunction {
	a, b, c := p0.Vec(), p1.Vec(), p2.Vec()
	eval := func(a, b, c float64) ScalarFunc {
		return func(t float64) float64 {
			u := 1 - t
			return a*u*u + 2*b*u*t + c*t*t
		}
	}
	deriv := func(a, b, c float64) ScalarFunc {
		return func(t float64) float64 {
			return 2*(1-t)*(b-a) + 2*t*(c-b)
		}
	}
	return ParametricFunction{
		Var:    VarT,
		X:      eval(a.X, b.X, c.X),
		Y:      eval(a.Y, b.Y, c.Y),
		Z:      eval(a.Z, b.Z, c.Z),
		DX:     deriv(a.X, b.X, c.X),
		DY:     deriv(a.Y, b.Y, c.Y),
		DZ:     deriv(a.Z, b.Z, c.Z),
		StartT: 0,
		EndT:   1,
	}
}

// NewQuadraticBezier voxelizes the quadratic Bézier through three control
// points. The derivative is affine, so its per-axis maxima sit at t=0 and
// t=1 and no interior search is needed.
func NewQuadraticBezier(points []Coord) (Sequence, error) {
	if err := checkArity(KindQuadratic, points); err != nil {
		return nil, err
	}
	if allEqual(points) {
		return Single{Pos: points[0]}, nil
	}
	f := QuadraticFunction(points[0], points[1], points[2])
	seq, err := NewParametricSequence(f, StepSizeFromDerivatives(f, 0, 1))
	if err != nil {
		return nil, err
	}
	return seq, nil
}
