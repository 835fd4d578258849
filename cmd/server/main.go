package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelpath.ai/internal/curve"
	persistlog "voxelpath.ai/internal/persistence/log"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/tuning"
	"voxelpath.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (draws/audits + catalogs + snapshot metadata + wand sessions)")
		debug      = flag.Bool("debug", false, "log every failed placement")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad, err = snapshot.Latest(filepath.Join(worldDir, "snapshots"))
		if err != nil {
			logger.Fatalf("find latest snapshot: %v", err)
		}
	}

	// Tuning is required for a fresh world; a resume carries its own grid.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	w, err := openWorld(*worldID, snapshotToLoad, cats, tune)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snapshotToLoad != "" {
		logger.Printf("resumed from snapshot=%s seq=%d", filepath.Base(snapshotToLoad), w.Seq())
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	if idx != nil {
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetAuditLogger(auditLog)
	}

	defaultKind, err := curve.ParseKind(tune.Draw.DefaultKind)
	if err != nil {
		logger.Fatalf("tuning: draw.default_kind: %v", err)
	}
	if _, ok := cats.Designs.ByID[tune.Draw.DefaultDesign]; !ok {
		logger.Fatalf("tuning: draw.default_design %q not in catalog", tune.Draw.DefaultDesign)
	}

	ctx, cancel := signalContext()
	defer cancel()

	snaps := newSnapshotter(w, *worldID, cats.Blocks.PaletteDigest, filepath.Join(worldDir, "snapshots"), tune.SnapshotEveryDraws, logger)
	if idx != nil {
		snaps.index = idx
	}
	go snaps.Run(ctx)

	svc := &draw.Service{
		World:           w,
		Designs:         draw.CatalogDesigns{Catalogs: cats, Seed: tune.Draw.Seed},
		Drawer:          draw.Drawer{Log: logger, Debug: *debug, MaxVoxels: tune.Draw.MaxVoxels},
		DefaultDesign:   tune.Draw.DefaultDesign,
		MaxControlCoord: tune.Draw.MaxControlCoord,
		Log:             logger,
		AfterDraw:       snaps.AfterDraw,
	}
	var sessions draw.SessionStore = draw.NewMemorySessions()
	if idx != nil {
		svc.Recorder = idx
		sessions = idx
	}
	wand := &draw.Wand{Service: svc, Sessions: sessions, DefaultKind: defaultKind}

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("protocol schemas: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP voxelpath_world_draws Completed draws.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_world_draws counter\n")
		fmt.Fprintf(rw, "voxelpath_world_draws{world=%q} %d\n", *worldID, w.Seq())
		fmt.Fprintf(rw, "# HELP voxelpath_audit_lines Audit lines written by this process.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_audit_lines counter\n")
		fmt.Fprintf(rw, "voxelpath_audit_lines{world=%q} %d\n", *worldID, auditLog.Lines())
		if idx != nil {
			fmt.Fprintf(rw, "# HELP voxelpath_index_dropped Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE voxelpath_index_dropped counter\n")
			fmt.Fprintf(rw, "voxelpath_index_dropped{world=%q} %d\n", *worldID, idx.Dropped())
		}
	})
	if envBool("VP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{
				"world_id": *worldID,
				"seq":      w.Seq(),
				"digest":   w.Digest(),
			})
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			path, err := snaps.Save()
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path})
		})
	} else {
		logger.Printf("admin endpoints disabled (VP_ENABLE_ADMIN_HTTP=false)")
	}

	mux.HandleFunc("/v1/ws", ws.NewServer(svc, wand, validator, welcomeInfo(w.GridConfig(), cats), logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	if path, err := snaps.Save(); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else {
		logger.Printf("final snapshot=%s", filepath.Base(path))
	}
}

// openWorld builds a fresh grid from tuning, or resumes the snapshot at
// snapPath when it is set.
func openWorld(worldID, snapPath string, cats *catalogs.Catalogs, tune tuning.Tuning) (*draw.World, error) {
	if snapPath == "" {
		cfg, err := gridConfig(tune, cats)
		if err != nil {
			return nil, err
		}
		return draw.NewWorld(grid.NewStore(cfg), 0), nil
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != worldID {
		return nil, fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", worldID, snap.Header.WorldID)
	}
	if snap.PaletteDigest != "" && snap.PaletteDigest != cats.Blocks.PaletteDigest {
		return nil, fmt.Errorf("snapshot palette digest %s does not match catalog %s", snap.PaletteDigest, cats.Blocks.PaletteDigest)
	}
	store, err := grid.ImportChunks(grid.Config{
		Seed:       snap.Seed,
		Height:     snap.Height,
		MinY:       snap.MinY,
		BoundaryR:  snap.BoundaryR,
		FloorY:     snap.FloorY,
		FloorBlock: snap.FloorBlock,
		Air:        cats.Blocks.Index["AIR"],
	}, snap.Chunks)
	if err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return draw.NewWorld(store, snap.Header.Seq), nil
}

func gridConfig(tune tuning.Tuning, cats *catalogs.Catalogs) (grid.Config, error) {
	floor, ok := cats.Blocks.Index[tune.Grid.FloorBlock]
	if !ok {
		return grid.Config{}, fmt.Errorf("tuning: grid.floor_block %q not in block palette", tune.Grid.FloorBlock)
	}
	return grid.Config{
		Seed:       tune.Draw.Seed,
		Height:     tune.Grid.Height,
		MinY:       tune.Grid.MinY,
		BoundaryR:  tune.Grid.BoundaryR,
		FloorY:     tune.Grid.FloorY,
		FloorBlock: floor,
		Air:        cats.Blocks.Index["AIR"],
	}, nil
}

func welcomeInfo(cfg grid.Config, cats *catalogs.Catalogs) ws.Info {
	return ws.Info{
		Grid: protocol.GridParams{
			ChunkSize: [3]int{grid.ChunkSize, grid.ChunkSize, cfg.Height},
			Height:    cfg.Height,
			MinY:      cfg.MinY,
			BoundaryR: cfg.BoundaryR,
			Seed:      cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette:  protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
			DesignsDigest: cats.Designs.Digest,
		},
		Designs: cats.Designs.DesignIDs(),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiAuditLogger struct {
	a draw.AuditLogger
	b draw.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry draw.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
