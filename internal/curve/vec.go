package curve

import (
	"fmt"
	"math"
)

// Vec3 is a point or displacement in continuous 3D space.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Scale multiplies every component by s.
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

// Mul multiplies componentwise.
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }

func (a Vec3) Abs() Vec3 { return Vec3{math.Abs(a.X), math.Abs(a.Y), math.Abs(a.Z)} }

func (a Vec3) Sum() float64 { return a.X + a.Y + a.Z }

func (a Vec3) MaxComponent() float64 { return math.Max(a.X, math.Max(a.Y, a.Z)) }

// MaxVec returns the componentwise maximum of vs. It returns the zero vector
// when vs is empty.
func MaxVec(vs ...Vec3) Vec3 {
	if len(vs) == 0 {
		return Vec3{}
	}
	out := vs[0]
	for _, v := range vs[1:] {
		out.X = math.Max(out.X, v.X)
		out.Y = math.Max(out.Y, v.Y)
		out.Z = math.Max(out.Z, v.Z)
	}
	return out
}

// Rounded converts to the nearest lattice coordinate, rounding halves up.
func (a Vec3) Rounded() Coord {
	return Coord{roundHalfUp(a.X), roundHalfUp(a.Y), roundHalfUp(a.Z)}
}

func roundHalfUp(v float64) int { return int(math.Floor(v + 0.5)) }

func (a Vec3) String() string { return fmt.Sprintf("(%g, %g, %g)", a.X, a.Y, a.Z) }

// Coord is an integer lattice coordinate (a voxel address).
type Coord struct {
	X int
	Y int
	Z int
}

func (c Coord) Offset(dx, dy, dz int) Coord { return Coord{c.X + dx, c.Y + dy, c.Z + dz} }
func (c Coord) Add(o Coord) Coord           { return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z} }
func (c Coord) Sub(o Coord) Coord           { return Coord{c.X - o.X, c.Y - o.Y, c.Z - o.Z} }
func (c Coord) Vec() Vec3                   { return Vec3{float64(c.X), float64(c.Y), float64(c.Z)} }
func (c Coord) ToArray() [3]int             { return [3]int{c.X, c.Y, c.Z} }
func (c Coord) String() string              { return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z) }

func CoordFromArray(a [3]int) Coord { return Coord{a[0], a[1], a[2]} }

func Manhattan(a, b Coord) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

// Adjacent reports whether a and b share a face: exactly one axis differs,
// by exactly one unit.
func Adjacent(a, b Coord) bool { return Manhattan(a, b) == 1 }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func allEqual(points []Coord) bool {
	if len(points) == 0 {
		return true
	}
	for _, p := range points[1:] {
		if p != points[0] {
			return false
		}
	}
	return true
}
