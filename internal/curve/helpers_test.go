package curve

import "testing"

// lcg is a tiny deterministic generator so sweeps are reproducible.
type lcg uint64

func (r *lcg) intn(lo, hi int) int {
	*r = *r*6364136223846793005 + 1442695040888963407
	return lo + int(uint64(*r>>33)%uint64(hi-lo+1))
}

func (r *lcg) coord(lo, hi int) Coord {
	return Coord{r.intn(lo, hi), r.intn(lo, hi), r.intn(lo, hi)}
}

func mustNew(t *testing.T, kind Kind, points ...Coord) Sequence {
	t.Helper()
	seq, err := New(kind, points)
	if err != nil {
		t.Fatalf("New(%s, %v): %v", kind, points, err)
	}
	return seq
}

func checkPath(t *testing.T, got []Coord, first, last Coord) {
	t.Helper()
	if len(got) == 0 {
		t.Fatalf("empty sequence")
	}
	if got[0] != first {
		t.Fatalf("first voxel %v, want %v", got[0], first)
	}
	if got[len(got)-1] != last {
		t.Fatalf("last voxel %v, want %v", got[len(got)-1], last)
	}
	if i := CheckConnected(got); i >= 0 {
		t.Fatalf("not face-connected at %d: %v -> %v", i, got[i-1], got[i])
	}
}

func controlSpan(points []Coord) int {
	span := 0
	for i := 1; i < len(points); i++ {
		span += Manhattan(points[i-1], points[i])
	}
	return span
}
