package draw

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/placement"
)

const (
	air   uint16 = 0
	stone uint16 = 1
	glass uint16 = 2
)

func testCatalogs() *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Blocks: catalogs.BlockCatalog{
			Palette: []string{"AIR", "STONE", "GLASS"},
			Index:   map[string]uint16{"AIR": air, "STONE": stone, "GLASS": glass},
		},
		Designs: catalogs.DesignCatalog{ByID: map[string]catalogs.DesignDef{
			"single_stone": {ID: "single_stone", Layers: []catalogs.LayerDef{
				{Mode: catalogs.ModeConstant, Placements: []catalogs.PlacementDef{{Block: "STONE"}}},
			}},
			"post": {ID: "post", Layers: []catalogs.LayerDef{
				{Mode: catalogs.ModeConstant, Placements: []catalogs.PlacementDef{{Block: "STONE"}, {Offset: [3]int{0, 1, 0}, Block: "GLASS"}}},
			}},
		}},
	}
}

func testStore() *grid.Store {
	return grid.NewStore(grid.Config{Height: 16, MinY: -8, BoundaryR: 32, Air: air})
}

type auditRecorder struct{ entries []AuditEntry }

func (a *auditRecorder) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

type drawRecorder struct{ recs []Record }

func (d *drawRecorder) RecordDraw(rec Record) { d.recs = append(d.recs, rec) }

func mustLinear(t *testing.T, a, b curve.Coord) curve.Sequence {
	t.Helper()
	seq, err := curve.New(curve.KindLinear, []curve.Coord{a, b})
	if err != nil {
		t.Fatalf("linear: %v", err)
	}
	return seq
}

func TestDrawCountsPlacements(t *testing.T) {
	s := testStore()
	gen, err := placement.NewBuilder(0).Constant(placement.Placement{Block: stone}, placement.Placement{Offset: curve.Coord{Y: 1}, Block: glass}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	seq := mustLinear(t, curve.Coord{}, curve.Coord{X: 3})

	r := Draw(seq, gen, s)
	if r.Voxels != 4 || r.Placed != 8 || r.Failed != 0 {
		t.Fatalf("first draw: %+v", r)
	}
	if r.First != (curve.Coord{}) || r.Last != (curve.Coord{X: 3}) {
		t.Fatalf("endpoints: first=%v last=%v", r.First, r.Last)
	}
	if got := s.GetBlock(curve.Coord{X: 2, Y: 1}); got != glass {
		t.Fatalf("block above path=%d want glass", got)
	}

	r = Draw(seq, gen, s)
	if r.Placed != 0 || r.Failed != 8 {
		t.Fatalf("redraw should only fail: %+v", r)
	}
}

func TestDrawOutOfBoundsCountsAsFailed(t *testing.T) {
	s := testStore()
	gen, _ := placement.NewConstant(placement.Placement{Block: stone})
	r := Draw(mustLinear(t, curve.Coord{X: 30}, curve.Coord{X: 35}), gen, s)
	if r.Voxels != 6 || r.Placed != 3 || r.Failed != 3 {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestDrawerTruncatesAtMaxVoxels(t *testing.T) {
	var writes []curve.Coord
	w := CellWriterFunc(func(pos curve.Coord, _ uint16) bool {
		writes = append(writes, pos)
		return true
	})
	gen, _ := placement.NewConstant(placement.Placement{Block: stone})
	r := Drawer{MaxVoxels: 5}.Draw(mustLinear(t, curve.Coord{}, curve.Coord{X: 20}), gen, w)
	if !r.Truncated || r.Voxels != 5 || len(writes) != 5 {
		t.Fatalf("unexpected result %+v writes=%d", r, len(writes))
	}
}

func TestDrawResetsGeneratorEachTime(t *testing.T) {
	gen, _ := placement.NewAlternating(placement.Placement{Block: stone}, placement.Placement{Block: glass})
	collect := func() []uint16 {
		var got []uint16
		w := CellWriterFunc(func(_ curve.Coord, b uint16) bool {
			got = append(got, b)
			return true
		})
		Draw(mustLinear(t, curve.Coord{}, curve.Coord{Z: 2}), gen, w)
		return got
	}
	first := collect()
	if diff := cmp.Diff([]uint16{stone, glass, stone}, first); diff != "" {
		t.Fatalf("alternation (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, collect()); diff != "" {
		t.Fatalf("second draw differs (-want +got):\n%s", diff)
	}
}

func TestWorldAuditsEveryPlacedBlock(t *testing.T) {
	w := NewWorld(testStore(), 4)
	audit := &auditRecorder{}
	w.SetAuditLogger(audit)
	gen, _ := placement.NewConstant(placement.Placement{Block: stone})

	r, seq := w.Draw(Drawer{}, "alice", "d1", mustLinear(t, curve.Coord{}, curve.Coord{Y: 2}), gen)
	if seq != 5 || w.Seq() != 5 {
		t.Fatalf("seq=%d world seq=%d want 5", seq, w.Seq())
	}
	if len(audit.entries) != r.Placed || r.Placed != 3 {
		t.Fatalf("audit entries=%d placed=%d", len(audit.entries), r.Placed)
	}
	want := AuditEntry{Seq: 5, Actor: "alice", Action: "SET_BLOCK", Pos: [3]int{0, 1, 0}, From: air, To: stone, Reason: "d1"}
	if diff := cmp.Diff(want, audit.entries[1]); diff != "" {
		t.Fatalf("audit entry (-want +got):\n%s", diff)
	}

	if w.SetBlock("bob", curve.Coord{Y: 1}, stone) {
		t.Fatalf("same block write should be rejected")
	}
	if !w.SetBlock("bob", curve.Coord{Y: 1}, glass) || w.GetBlock(curve.Coord{Y: 1}) != glass {
		t.Fatalf("single write not applied")
	}
	if got := audit.entries[len(audit.entries)-1]; got.From != stone || got.To != glass || got.Actor != "bob" {
		t.Fatalf("unexpected audit %+v", got)
	}
}

func TestWorldSnapshotRestores(t *testing.T) {
	w := NewWorld(testStore(), 0)
	w.SetBlock("a", curve.Coord{X: -20, Y: 3, Z: 9}, glass)
	snap := w.Snapshot("canvas", "pal")
	if snap.Header.Seq != 0 || snap.Height != 16 || snap.MinY != -8 || snap.PaletteDigest != "pal" {
		t.Fatalf("unexpected snapshot header/config: %+v", snap.Header)
	}
	store, err := grid.ImportChunks(w.GridConfig(), snap.Chunks)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	restored := NewWorld(store, snap.Header.Seq)
	if restored.Digest() != w.Digest() {
		t.Fatalf("digest mismatch after restore")
	}
}

func newService(rec Recorder) *Service {
	return &Service{
		World:           NewWorld(testStore(), 0),
		Designs:         CatalogDesigns{Catalogs: testCatalogs(), Seed: 1},
		DefaultDesign:   "single_stone",
		MaxControlCoord: 100,
		Recorder:        rec,
	}
}

func TestServiceDraw(t *testing.T) {
	rec := &drawRecorder{}
	svc := newService(rec)
	var after []uint64
	svc.AfterDraw = func(seq uint64) { after = append(after, seq) }

	got, err := svc.Draw(Request{Actor: "alice", Kind: curve.KindCubic, Points: []curve.Coord{{}, {X: 4, Y: 6}, {X: 8, Y: -6}, {X: 12}}, Design: "post"})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := uuid.Parse(got.ID); err != nil {
		t.Fatalf("draw id %q is not a uuid: %v", got.ID, err)
	}
	if got.Seq != 1 || got.Design != "post" || got.Result.Voxels == 0 {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(rec.recs) != 1 || rec.recs[0].ID != got.ID {
		t.Fatalf("recorder saw %+v", rec.recs)
	}
	if diff := cmp.Diff([]uint64{1}, after); diff != "" {
		t.Fatalf("AfterDraw calls (-want +got):\n%s", diff)
	}

	def, err := svc.Draw(Request{Actor: "bob", Kind: curve.KindLinear, Points: []curve.Coord{{Z: 1}, {Z: 5}}})
	if err != nil {
		t.Fatalf("default design draw: %v", err)
	}
	if def.Design != "single_stone" || def.Seq != 2 {
		t.Fatalf("unexpected record %+v", def)
	}
}

func TestServiceDrawErrors(t *testing.T) {
	rec := &drawRecorder{}
	svc := newService(rec)
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{name: "arity", req: Request{Kind: curve.KindQuadratic, Points: []curve.Coord{{}, {X: 1}}}, want: curve.ErrInvalidConfig},
		{name: "kind", req: Request{Kind: 0, Points: []curve.Coord{{}, {X: 1}}}, want: curve.ErrInvalidConfig},
		{name: "range", req: Request{Kind: curve.KindLinear, Points: []curve.Coord{{}, {Y: -101}}}, want: ErrOutOfRange},
		{name: "design", req: Request{Kind: curve.KindLinear, Points: []curve.Coord{{}, {X: 1}}, Design: "nope"}, want: ErrUnknownDesign},
	}
	for _, c := range cases {
		if _, err := svc.Draw(c.req); !errors.Is(err, c.want) {
			t.Fatalf("%s: got %v want %v", c.name, err, c.want)
		}
	}
	if len(rec.recs) != 0 || svc.World.Seq() != 0 {
		t.Fatalf("failed draws must not be recorded or applied")
	}
}

func TestWandDrawsWhenArityReached(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessions()
	wand := &Wand{Service: newService(nil), Sessions: sessions, DefaultKind: curve.KindLinear}

	res, err := wand.Click(ctx, "alice", curve.Coord{})
	if err != nil || res.Drawn != nil || len(res.Session.Pending) != 1 {
		t.Fatalf("first click: res=%+v err=%v", res, err)
	}
	res, err = wand.Click(ctx, "alice", curve.Coord{X: 4, Z: 2})
	if err != nil {
		t.Fatalf("second click: %v", err)
	}
	if res.Drawn == nil || res.Drawn.Result.Voxels != 7 {
		t.Fatalf("expected a 7-voxel line, got %+v", res.Drawn)
	}
	if len(res.Session.Pending) != 0 {
		t.Fatalf("pending points should be cleared after drawing")
	}
	stored, ok, _ := sessions.LoadSession(ctx, "alice")
	if !ok || stored.Kind != curve.KindLinear || stored.Design != "single_stone" || len(stored.Pending) != 0 {
		t.Fatalf("stored session %+v", stored)
	}
}

func TestWandSetModeCyclesAndClears(t *testing.T) {
	ctx := context.Background()
	wand := &Wand{Service: newService(nil), Sessions: NewMemorySessions(), DefaultKind: curve.KindLinear}

	if _, err := wand.Click(ctx, "bob", curve.Coord{X: 1}); err != nil {
		t.Fatalf("click: %v", err)
	}
	s, err := wand.SetMode(ctx, "bob", 0, "")
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if s.Kind != curve.KindQuadratic || len(s.Pending) != 0 {
		t.Fatalf("after cycle: %+v", s)
	}
	s, err = wand.SetMode(ctx, "bob", curve.KindCubic, "post")
	if err != nil {
		t.Fatalf("set cubic: %v", err)
	}
	if s.Kind != curve.KindCubic || s.Design != "post" {
		t.Fatalf("after set: %+v", s)
	}
	if _, err := wand.SetMode(ctx, "bob", 0, "missing"); !errors.Is(err, ErrUnknownDesign) {
		t.Fatalf("expected ErrUnknownDesign, got %v", err)
	}
	if _, err := wand.SetMode(ctx, "bob", curve.Kind(9), ""); !errors.Is(err, curve.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	pts := []curve.Coord{{}, {X: 3, Y: 5}, {X: 6, Y: -5}, {X: 9}}
	var res ClickResult
	for i, p := range pts {
		res, err = wand.Click(ctx, "bob", p)
		if err != nil {
			t.Fatalf("click %d: %v", i, err)
		}
		if i < 3 && res.Drawn != nil {
			t.Fatalf("cubic drew after %d clicks", i+1)
		}
	}
	if res.Drawn == nil || res.Drawn.Design != "post" {
		t.Fatalf("expected cubic draw with post design, got %+v", res.Drawn)
	}
	if res.Drawn.Result.First != pts[0] || res.Drawn.Result.Last != pts[3] {
		t.Fatalf("cubic endpoints %v..%v", res.Drawn.Result.First, res.Drawn.Result.Last)
	}
}

func TestWandFailedDrawStillClears(t *testing.T) {
	ctx := context.Background()
	wand := &Wand{Service: newService(nil), Sessions: NewMemorySessions()}
	if _, err := wand.Click(ctx, "eve", curve.Coord{}); err != nil {
		t.Fatalf("click: %v", err)
	}
	res, err := wand.Click(ctx, "eve", curve.Coord{X: 500})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if len(res.Session.Pending) != 0 || res.Drawn != nil {
		t.Fatalf("failed draw should clear pending: %+v", res)
	}
	s, err := wand.Clear(ctx, "eve")
	if err != nil || len(s.Pending) != 0 {
		t.Fatalf("clear: %+v %v", s, err)
	}
}
