package curve

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLinear_AxisAligned(t *testing.T) {
	got := Collect(mustNew(t, KindLinear, Coord{0, 0, 0}, Coord{5, 0, 0}))
	want := []Coord{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}, {5, 0, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("linear path mismatch (-want +got):\n%s", diff)
	}
}

func TestLinear_PrefersZThenX(t *testing.T) {
	got := Collect(mustNew(t, KindLinear, Coord{0, 0, 0}, Coord{2, 1, 2}))
	want := []Coord{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {1, 1, 1}, {2, 1, 1}, {2, 1, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tie-break order mismatch (-want +got):\n%s", diff)
	}
}

func TestLinear_NegativeDirections(t *testing.T) {
	got := Collect(mustNew(t, KindLinear, Coord{3, 0, 0}, Coord{0, -1, 0}))
	checkPath(t, got, Coord{3, 0, 0}, Coord{0, -1, 0})
	if len(got) != 5 {
		t.Fatalf("len=%d want 5", len(got))
	}
}

func TestLinear_ConnectedOverCube(t *testing.T) {
	start := Coord{0, 0, 0}
	for x := -4; x <= 4; x++ {
		for y := -4; y <= 4; y++ {
			for z := -4; z <= 4; z++ {
				end := Coord{x, y, z}
				got := Collect(mustNew(t, KindLinear, start, end))
				checkPath(t, got, start, end)
				if len(got) != Manhattan(start, end)+1 {
					t.Fatalf("%v->%v: len=%d want %d", start, end, len(got), Manhattan(start, end)+1)
				}
			}
		}
	}
}

func TestLinear_Degenerate(t *testing.T) {
	p := Coord{7, -3, 2}
	got := Collect(mustNew(t, KindLinear, p, p))
	if diff := cmp.Diff([]Coord{p}, got); diff != "" {
		t.Fatalf("degenerate line (-want +got):\n%s", diff)
	}
}

func TestLinear_RestartableIterators(t *testing.T) {
	seq := mustNew(t, KindLinear, Coord{-2, 5, 1}, Coord{9, -4, 6})
	first := Collect(seq)
	second := Collect(seq)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second iterator differs (-first +second):\n%s", diff)
	}
}

func TestLinear_RejectsWrongArity(t *testing.T) {
	l, err := NewLinear([]Coord{{1, 2, 3}})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if l != nil {
		t.Fatalf("expected no sequence on error")
	}
}
