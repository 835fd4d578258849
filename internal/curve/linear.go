package curve

// Linear is the exact-integer 3D line between two lattice points. It visits
// Manhattan(Start, End)+1 voxels.
//
// When several axes are equally good the path steps along Z first, then X,
// then Y, so consecutive runs stay face-connected along the line direction
// (rail-like structures need that).
type Linear struct {
	Start Coord
	End   Coord
}

// NewLinear validates that exactly two control points were given.
func NewLinear(points []Coord) (*Linear, error) {
	if err := checkArity(KindLinear, points); err != nil {
		return nil, err
	}
	return &Linear{Start: points[0], End: points[1]}, nil
}

func (l *Linear) Iter() Iterator {
	it := &linearIterator{
		start: l.Start,
		distX: absInt(l.End.X - l.Start.X),
		distY: absInt(l.End.Y - l.Start.Y),
		distZ: absInt(l.End.Z - l.Start.Z),
		dirX:  direction(l.Start.X, l.End.X),
		dirY:  direction(l.Start.Y, l.End.Y),
		dirZ:  direction(l.Start.Z, l.End.Z),
	}
	it.total = it.distX + it.distY + it.distZ + 1
	return it
}

func direction(from, to int) int {
	if to > from {
		return 1
	}
	return -1
}

type linearIterator struct {
	start               Coord
	distX, distY, distZ int
	dirX, dirY, dirZ    int

	total      int
	emitted    int
	ix, iy, iz int
}

func (it *linearIterator) Next() (Coord, bool) {
	if it.emitted >= it.total {
		return Coord{}, false
	}
	c := it.start.Offset(it.dirX*it.ix, it.dirY*it.iy, it.dirZ*it.iz)

	// Pick the next counter by comparing how far each axis lags behind the
	// ideal line, scaled to avoid division.
	switch {
	case it.distZ*(2*it.ix+1) > it.distX*(2*it.iz+1) && it.distZ*(2*it.iy+1) > it.distY*(2*it.iz+1):
		it.iz++
	case it.distX*(2*it.iy+1) > it.distY*(2*it.ix+1):
		it.ix++
	default:
		it.iy++
	}
	it.emitted++
	return c, true
}
