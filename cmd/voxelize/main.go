package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"voxelpath.ai/internal/curve"
)

func main() {
	var (
		kindFlag   = flag.String("kind", "linear", "curve kind: linear, quadratic or cubic")
		pointsFlag = flag.String("points", "", `control points, e.g. "0,0,0 4,2,9"`)
		asJSON     = flag.Bool("json", false, "print the sequence as a JSON array of [x,y,z]")
		check      = flag.Bool("check", false, "verify connectivity and endpoints, exit 1 on failure")
	)
	flag.Parse()

	kind, err := curve.ParseKind(*kindFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	pts, err := parsePoints(*pointsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "points:", err)
		os.Exit(2)
	}
	seq, err := curve.New(kind, pts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	coords := curve.Collect(seq)

	if *asJSON {
		out := make([][3]int, len(coords))
		for i, c := range coords {
			out[i] = c.ToArray()
		}
		enc := json.NewEncoder(os.Stdout)
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		for _, c := range coords {
			fmt.Printf("%d %d %d\n", c.X, c.Y, c.Z)
		}
	}

	if *check {
		if err := verify(pts, coords); err != nil {
			fmt.Fprintln(os.Stderr, "check:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "check ok: %s voxels=%d\n", kind, len(coords))
	}
}

// parsePoints reads whitespace separated "x,y,z" triples.
func parsePoints(s string) ([]curve.Coord, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.New("no points given")
	}
	out := make([]curve.Coord, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%q: want x,y,z", f)
		}
		var v [3]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("%q: %w", f, err)
			}
			v[i] = n
		}
		out = append(out, curve.CoordFromArray(v))
	}
	return out, nil
}

func verify(pts, coords []curve.Coord) error {
	if len(coords) == 0 {
		return errors.New("empty sequence")
	}
	if coords[0] != pts[0] {
		return fmt.Errorf("starts at %s, want %s", coords[0], pts[0])
	}
	if last := pts[len(pts)-1]; coords[len(coords)-1] != last {
		return fmt.Errorf("ends at %s, want %s", coords[len(coords)-1], last)
	}
	if i := curve.CheckConnected(coords); i >= 0 {
		return fmt.Errorf("step %d: %s -> %s is not a unit move", i, coords[i-1], coords[i])
	}
	return nil
}
