package main

import (
	"os"
	"path/filepath"
	"testing"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/tuning"
)

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return cats
}

func TestOpenWorldFreshUsesTuning(t *testing.T) {
	cats := loadCatalogs(t)
	tune := tuning.Defaults()
	tune.Grid.FloorY = 4

	w, err := openWorld("w1", "", cats, tune)
	if err != nil {
		t.Fatalf("openWorld: %v", err)
	}
	if w.Seq() != 0 {
		t.Fatalf("seq: got %d want 0", w.Seq())
	}
	if got, want := w.GetBlock(curve.Coord{Y: 3}), cats.Blocks.Index["STONE"]; got != want {
		t.Fatalf("floor block: got %d want %d", got, want)
	}
	if got := w.GetBlock(curve.Coord{Y: 4}); got != 0 {
		t.Fatalf("above floor: got %d want air", got)
	}
}

func TestGridConfigRejectsUnknownFloorBlock(t *testing.T) {
	cats := loadCatalogs(t)
	tune := tuning.Defaults()
	tune.Grid.FloorBlock = "LAVA"
	if _, err := gridConfig(tune, cats); err == nil {
		t.Fatalf("expected error for unknown floor block")
	}
}

func TestSnapshotterCadenceAndResume(t *testing.T) {
	cats := loadCatalogs(t)
	tune := tuning.Defaults()
	dir := t.TempDir()

	w, err := openWorld("w1", "", cats, tune)
	if err != nil {
		t.Fatalf("openWorld: %v", err)
	}
	snaps := newSnapshotter(w, "w1", cats.Blocks.PaletteDigest, dir, 2, nil)
	svc := &draw.Service{
		World:         w,
		Designs:       draw.CatalogDesigns{Catalogs: cats, Seed: tune.Draw.Seed},
		DefaultDesign: "single_stone",
		AfterDraw:     snaps.AfterDraw,
	}

	if _, err := svc.Draw(draw.Request{Actor: "p", Kind: curve.KindLinear, Points: []curve.Coord{{Y: 10}, {X: 5, Y: 12, Z: 3}}}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(snaps.ch) != 0 {
		t.Fatalf("snapshot queued after first draw")
	}
	if _, err := svc.Draw(draw.Request{Actor: "p", Kind: curve.KindLinear, Points: []curve.Coord{{Z: 10, Y: 20}, {X: -5, Y: 20, Z: 10}}}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(snaps.ch) != 1 {
		t.Fatalf("expected one queued snapshot, got %d", len(snaps.ch))
	}
	queued := <-snaps.ch
	if queued.Header.Seq != 2 {
		t.Fatalf("queued seq: got %d want 2", queued.Header.Seq)
	}

	path, err := snaps.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != snapshot.FileName(2) {
		t.Fatalf("path: got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}

	resumed, err := openWorld("w1", path, cats, tune)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Seq() != 2 {
		t.Fatalf("resumed seq: got %d want 2", resumed.Seq())
	}
	if resumed.Digest() != w.Digest() {
		t.Fatalf("digest mismatch after resume")
	}

	if _, err := openWorld("other", path, cats, tune); err == nil {
		t.Fatalf("expected world id mismatch")
	}
}

func TestWelcomeInfo(t *testing.T) {
	cats := loadCatalogs(t)
	cfg, err := gridConfig(tuning.Defaults(), cats)
	if err != nil {
		t.Fatalf("gridConfig: %v", err)
	}
	info := welcomeInfo(cfg, cats)
	if info.Grid.ChunkSize != [3]int{16, 16, 256} {
		t.Fatalf("chunk size: %v", info.Grid.ChunkSize)
	}
	if info.Catalogs.BlockPalette.Count != len(cats.Blocks.Palette) {
		t.Fatalf("palette count: %d", info.Catalogs.BlockPalette.Count)
	}
	if len(info.Designs) != len(cats.Designs.ByID) {
		t.Fatalf("designs: %v", info.Designs)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q): got %v want %v", in, got, want)
		}
	}
}
