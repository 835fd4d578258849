package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/mathx"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// rollbackCmd undoes audited draws inside a box by writing every matching
// entry's From block back into a snapshot, newest first.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	actor := fs.String("actor", "", "only undo writes by this player (optional)")
	sinceSeq := fs.Uint64("since_seq", 0, "rollback draws since seq (inclusive)")
	toSeq := fs.Uint64("to_seq", 0, "rollback draws up to seq (inclusive, optional; defaults to snapshot seq)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		var err error
		snapshotToLoad, err = snapshot.Latest(filepath.Join(worldDir, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "find snapshot:", err)
			os.Exit(1)
		}
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	region, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	endSeq := *toSeq
	if endSeq == 0 || endSeq > snap.Header.Seq {
		endSeq = snap.Header.Seq
	}

	recs, err := readAudit(filepath.Join(worldDir, "audit"), auditFilter{
		SinceSeq: *sinceSeq,
		ToSeq:    endSeq,
		Box:      region,
		Actor:    strings.TrimSpace(*actor),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, recs)

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Seq))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s seq=%d aabb=%s since=%d to=%d entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Seq, *aabb, *sinceSeq, endSeq, len(recs), applied, skipped, *outPath)
}

type auditFilter struct {
	SinceSeq, ToSeq uint64
	Box             box
	Actor           string
}

type auditRec struct {
	N     uint64 // read order
	Entry draw.AuditEntry
}

func readAudit(dir string, f auditFilter) ([]auditRec, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]auditRec, 0, 1024)
	var n uint64
	for _, name := range names {
		recs, err := readAuditFile(filepath.Join(dir, name), f, &n)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}

	// Newest first; within a draw, reverse write order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Seq != out[j].Entry.Seq {
			return out[i].Entry.Seq > out[j].Entry.Seq
		}
		return out[i].N > out[j].N
	})
	return out, nil
}

func readAuditFile(path string, f auditFilter, n *uint64) ([]auditRec, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	dec, err := zstd.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []auditRec
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e draw.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		*n++
		if e.Action != "SET_BLOCK" {
			continue
		}
		if e.Seq < f.SinceSeq || e.Seq > f.ToSeq {
			continue
		}
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if !f.Box.contains(e.Pos) {
			continue
		}
		out = append(out, auditRec{N: *n, Entry: e})
	}
	return out, sc.Err()
}

func applyRollback(snap *snapshot.SnapshotV1, recs []auditRec) (applied, skipped int) {
	if snap == nil || len(recs) == 0 {
		return 0, 0
	}
	chunks := map[grid.ChunkKey]*snapshot.ChunkV1{}
	for i := range snap.Chunks {
		ch := &snap.Chunks[i]
		chunks[grid.ChunkKey{CX: ch.CX, CZ: ch.CZ}] = ch
	}

	for _, r := range recs {
		p := r.Entry.Pos
		ch := chunks[grid.ChunkKey{CX: mathx.FloorDiv(p[0], grid.ChunkSize), CZ: mathx.FloorDiv(p[2], grid.ChunkSize)}]
		y := p[1] - snap.MinY
		if ch == nil || y < 0 || y >= ch.Height {
			skipped++
			continue
		}
		i := mathx.Mod(p[0], grid.ChunkSize) + mathx.Mod(p[2], grid.ChunkSize)*grid.ChunkSize + y*grid.ChunkSize*grid.ChunkSize
		if i < 0 || i >= len(ch.Blocks) {
			skipped++
			continue
		}
		ch.Blocks[i] = r.Entry.From
		applied++
	}
	return applied, skipped
}

// box is an inclusive axis-aligned region.
type box struct{ lo, hi curve.Coord }

func (b box) contains(pos [3]int) bool {
	p := curve.CoordFromArray(pos)
	return p.X >= b.lo.X && p.X <= b.hi.X &&
		p.Y >= b.lo.Y && p.Y <= b.hi.Y &&
		p.Z >= b.lo.Z && p.Z <= b.hi.Z
}

// parseAABB reads "x1,y1,z1:x2,y2,z2"; the corners may come in any order.
func parseAABB(s string) (box, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return box{}, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	p, err := parseCoord(a)
	if err != nil {
		return box{}, err
	}
	q, err := parseCoord(b)
	if err != nil {
		return box{}, err
	}
	return box{
		lo: curve.Coord{X: min(p.X, q.X), Y: min(p.Y, q.Y), Z: min(p.Z, q.Z)},
		hi: curve.Coord{X: max(p.X, q.X), Y: max(p.Y, q.Y), Z: max(p.Z, q.Z)},
	}, nil
}

func parseCoord(s string) (curve.Coord, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return curve.Coord{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return curve.Coord{}, err
		}
		v[i] = n
	}
	return curve.CoordFromArray(v), nil
}
