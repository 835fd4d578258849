package curve

import "math"

// MaxCubicSubdivisions caps the forward-difference subdivision count so the
// scaled int64 state (which grows like 4·N⁴) cannot overflow. Curves needing
// more subdivisions are voxelized by ParametricSequence instead.
const MaxCubicSubdivisions = 1 << 14

// CubicBezier rasterizes a cubic Bézier with the integer forward-difference
// scheme of Kaufman & Shimony, "3D Scan-Conversion Algorithms for
// Voxel-Based Graphics" (1986). All per-step work is int64 additions.
//
// P0 and P3 are the anchors, P1 and P2 the curvature handles.
type CubicBezier struct {
	P0, P1, P2, P3 Coord

	// N is the number of parameter subdivisions; one subdivision moves the
	// curve by at most one unit summed over all axes.
	N int64
}

// NewCubicBezier validates the four control points and derives the
// subdivision count.
func NewCubicBezier(points []Coord) (Sequence, error) {
	if err := checkArity(KindCubic, points); err != nil {
		return nil, err
	}
	if allEqual(points) {
		return Single{Pos: points[0]}, nil
	}
	c := &CubicBezier{P0: points[0], P1: points[1], P2: points[2], P3: points[3]}
	bound := c.MaxDerivativeAbs()
	n := math.Ceil(bound.Sum())
	if n > MaxCubicSubdivisions {
		f := CubicFunction(c.P0, c.P1, c.P2, c.P3)
		seq, err := NewParametricSequence(f, 1/bound.Sum())
		if err != nil {
			return nil, err
		}
		return seq, nil
	}
	c.N = int64(n)
	return c, nil
}

// CubicFunction is the cubic Bézier through the four points over [0, 1].
func CubicFunction(p0, p1, p2, p3 Coord) ParametricFunction {
	a, b, c, d := p0.Vec(), p1.Vec(), p2.Vec(), p3.Vec()
	eval := func(a, b, c, d float64) ScalarFunc {
		return func(t float64) float64 {
			u := 1 - t
			return a*u*u*u + 3*b*u*u*t + 3*c*u*t*t + d*t*t*t
		}
	}
	deriv := func(a, b, c, d float64) ScalarFunc {
		return func(t float64) float64 {
			u := 1 - t
			return 3*u*u*(b-a) + 6*u*t*(c-b) + 3*t*t*(d-c)
		}
	}
	return ParametricFunction{
		Var:    VarT,
		X:      eval(a.X, b.X, c.X, d.X),
		Y:      eval(a.Y, b.Y, c.Y, d.Y),
		Z:      eval(a.Z, b.Z, c.Z, d.Z),
		DX:     deriv(a.X, b.X, c.X, d.X),
		DY:     deriv(a.Y, b.Y, c.Y, d.Y),
		DZ:     deriv(a.Z, b.Z, c.Z, d.Z),
		StartT: 0,
		EndT:   1,
	}
}

// Derivative evaluates B'(t) with an independent t per axis.
func (c *CubicBezier) Derivative(t Vec3) Vec3 {
	d := func(t, p0, p1, p2, p3 float64) float64 {
		u := 1 - t
		return 3*u*u*(p1-p0) + 6*u*t*(p2-p1) + 3*t*t*(p3-p2)
	}
	a, b, cc, e := c.P0.Vec(), c.P1.Vec(), c.P2.Vec(), c.P3.Vec()
	return Vec3{
		d(t.X, a.X, b.X, cc.X, e.X),
		d(t.Y, a.Y, b.Y, cc.Y, e.Y),
		d(t.Z, a.Z, b.Z, cc.Z, e.Z),
	}
}

// InflectionTimes returns, per axis, the t in [0, 1] where B''(t) = 0. Axes
// whose B'' has no root there (including a constant B'', where the
// denominator vanishes) report 0, so only the endpoints bound |B'|.
func (c *CubicBezier) InflectionTimes() Vec3 {
	root := func(p0, p1, p2, p3 int) float64 {
		num := p0 - 2*p1 + p2
		den := p0 - 3*p1 + 3*p2 - p3
		if den == 0 {
			return 0
		}
		t := float64(num) / float64(den)
		if t < 0 || t > 1 {
			return 0
		}
		return t
	}
	return Vec3{
		root(c.P0.X, c.P1.X, c.P2.X, c.P3.X),
		root(c.P0.Y, c.P1.Y, c.P2.Y, c.P3.Y),
		root(c.P0.Z, c.P1.Z, c.P2.Z, c.P3.Z),
	}
}

// MaxDerivativeAbs is the per-axis maximum of |B'(t)| over [0, 1].
func (c *CubicBezier) MaxDerivativeAbs() Vec3 {
	atZero := c.P1.Sub(c.P0).Vec().Scale(3)
	atOne := c.P3.Sub(c.P2).Vec().Scale(3)
	atRoot := c.Derivative(c.InflectionTimes())
	return MaxVec(atZero.Abs(), atOne.Abs(), atRoot.Abs())
}

// forwardDifferences returns, for one axis, the forward differences of the
// curve at t=0 (value, then first to third order) scaled by 2N³. The curve is
// translated so P0 is the origin, which makes the value term zero.
//
// This is E_N·M·G from the paper with the power-basis coefficients expanded:
// a, b and c are the t³, t² and t coefficients of the translated curve.
func forwardDifferences(n int64, p0, p1, p2, p3 int) [4]int64 {
	q1 := int64(p1 - p0)
	q2 := int64(p2 - p0)
	q3 := int64(p3 - p0)
	a := 3*q1 - 3*q2 + q3
	b := -6*q1 + 3*q2
	c := 3 * q1
	return [4]int64{
		0,
		2*a + 2*n*b + 2*n*n*c,
		12*a + 4*n*b,
		12 * a,
	}
}

func (c *CubicBezier) Iter() Iterator {
	n := c.N
	return &cubicIterator{
		cur:       c.P0,
		end:       c.P3,
		n:         n,
		nCubed:    n * n * n,
		twoNCubed: 2 * n * n * n,
		fd: [3][4]int64{
			forwardDifferences(n, c.P0.X, c.P1.X, c.P2.X, c.P3.X),
			forwardDifferences(n, c.P0.Y, c.P1.Y, c.P2.Y, c.P3.Y),
			forwardDifferences(n, c.P0.Z, c.P1.Z, c.P2.Z, c.P3.Z),
		},
	}
}

type cubicIterator struct {
	cur, end  Coord
	n         int64
	nCubed    int64
	twoNCubed int64

	// fd[axis] holds the scaled forward differences for x, y, z. fd[axis][0]
	// is 2N³ times the offset of the curve from cur along that axis.
	fd [3][4]int64
	k  int64

	started bool
	done    bool
}

func (it *cubicIterator) Next() (Coord, bool) {
	if it.done {
		return Coord{}, false
	}
	if !it.started {
		it.started = true
		if it.n == 0 {
			it.done = true
		}
		return it.cur, true
	}

	prev := it.cur
	for it.cur == prev {
		if it.k < it.n {
			it.move(false)
			it.advance()
			it.k++
			continue
		}
		// After N advances fd[axis][0] is exactly 2N³·(P3 - cur); settle any
		// lag one axis at a time.
		if it.cur == it.end {
			it.done = true
			return Coord{}, false
		}
		it.move(true)
	}
	return it.cur, true
}

// move steps the voxel by one unit along the axis whose leading difference
// has the largest magnitude (ties x, y, z). Outside settle mode the step only
// happens once the curve is more than half a voxel away.
func (it *cubicIterator) move(settle bool) {
	axis := 0
	best := abs64(it.fd[0][0])
	for a := 1; a < 3; a++ {
		if v := abs64(it.fd[a][0]); v > best {
			axis, best = a, v
		}
	}
	threshold := it.nCubed
	if settle {
		threshold = 0
	}
	lead := it.fd[axis][0]
	switch {
	case lead > threshold:
		it.cur = offsetAxis(it.cur, axis, 1)
		it.fd[axis][0] -= it.twoNCubed
	case lead < -threshold:
		it.cur = offsetAxis(it.cur, axis, -1)
		it.fd[axis][0] += it.twoNCubed
	}
}

func (it *cubicIterator) advance() {
	for a := range it.fd {
		d := &it.fd[a]
		d[0] += d[1]
		d[1] += d[2]
		d[2] += d[3]
	}
}

func offsetAxis(c Coord, axis, d int) Coord {
	switch axis {
	case 0:
		return c.Offset(d, 0, 0)
	case 1:
		return c.Offset(0, d, 0)
	default:
		return c.Offset(0, 0, d)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
