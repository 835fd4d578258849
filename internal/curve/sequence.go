// Package curve turns parametric curves with integer control points into
// ordered, face-connected runs of lattice coordinates.
//
// Every Sequence produced here starts on its first control point, ends on
// its last control point, and moves exactly one unit along exactly one axis
// between consecutive coordinates.
package curve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when a rasterizer is given the wrong number of
// control points or an unusable parameterisation.
var ErrInvalidConfig = errors.New("invalid curve configuration")

// Sequence is a restartable, deterministic source of lattice coordinates.
// Each call to Iter returns a fresh iterator that yields the same output.
type Sequence interface {
	Iter() Iterator
}

// Iterator is a single-pass cursor over a Sequence. Next returns false once
// the sequence is exhausted.
type Iterator interface {
	Next() (Coord, bool)
}

// Collect drains a fresh iterator of seq.
func Collect(seq Sequence) []Coord {
	var out []Coord
	it := seq.Iter()
	for {
		c, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// CheckConnected returns the index of the first coordinate that is not
// face-adjacent to its predecessor, or -1 if the whole run is connected.
func CheckConnected(coords []Coord) int {
	for i := 1; i < len(coords); i++ {
		if !Adjacent(coords[i-1], coords[i]) {
			return i
		}
	}
	return -1
}

// Single is the sequence holding exactly one coordinate. Every rasterizer
// collapses to it when all of its control points coincide.
type Single struct {
	Pos Coord
}

func (s Single) Iter() Iterator { return &sliceIterator{coords: []Coord{s.Pos}} }

type sliceIterator struct {
	coords []Coord
	i      int
}

func (it *sliceIterator) Next() (Coord, bool) {
	if it.i >= len(it.coords) {
		return Coord{}, false
	}
	c := it.coords[it.i]
	it.i++
	return c, true
}

// Kind identifies a curve shape. The zero value is not a valid kind.
type Kind int

const (
	KindLinear Kind = iota + 1
	KindQuadratic
	KindCubic
)

// Kinds lists every supported kind in mode-cycling order.
var Kinds = []Kind{KindLinear, KindQuadratic, KindCubic}

// Arity is the exact number of control points the kind requires.
func (k Kind) Arity() int {
	switch k {
	case KindLinear:
		return 2
	case KindQuadratic:
		return 3
	case KindCubic:
		return 4
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "Linear"
	case KindQuadratic:
		return "Quadratic Bezier"
	case KindCubic:
		return "Cubic Bezier"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ID is the stable wire/storage name of the kind.
func (k Kind) ID() string {
	switch k {
	case KindLinear:
		return "LINEAR"
	case KindQuadratic:
		return "QUADRATIC"
	case KindCubic:
		return "CUBIC"
	default:
		return ""
	}
}

// Next returns the kind following k in Kinds, wrapping around.
func (k Kind) Next() Kind {
	for i, kk := range Kinds {
		if kk == k {
			return Kinds[(i+1)%len(Kinds)]
		}
	}
	return Kinds[0]
}

// ParseKind accepts the wire id ("CUBIC") or a lower-case alias ("cubic").
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LINEAR", "LINE":
		return KindLinear, nil
	case "QUADRATIC", "QUAD":
		return KindQuadratic, nil
	case "CUBIC":
		return KindCubic, nil
	}
	return 0, fmt.Errorf("unknown curve kind %q: %w", s, ErrInvalidConfig)
}

// New builds the rasterizer for kind from its control points.
func New(kind Kind, points []Coord) (Sequence, error) {
	switch kind {
	case KindLinear:
		l, err := NewLinear(points)
		if err != nil {
			return nil, err
		}
		return l, nil
	case KindQuadratic:
		return NewQuadraticBezier(points)
	case KindCubic:
		return NewCubicBezier(points)
	}
	return nil, fmt.Errorf("unknown curve kind %d: %w", int(kind), ErrInvalidConfig)
}

func checkArity(kind Kind, points []Coord) error {
	if want := kind.Arity(); len(points) != want {
		return fmt.Errorf("%s path requires %d control points, got %d: %w", kind, want, len(points), ErrInvalidConfig)
	}
	return nil
}
