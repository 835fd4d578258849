package draw

import (
	"sync"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/grid"
	"voxelpath.ai/internal/sim/placement"
)

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Seq    uint64 `json:"seq"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK"
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// World guards a grid store. Every mutation goes through it so draws from
// concurrent connections never interleave.
type World struct {
	mu    sync.Mutex
	store *grid.Store
	seq   uint64

	// Optional (may be nil). Implemented in internal/persistence/log.
	auditLogger AuditLogger
}

// NewWorld wraps store; seq is the number of draws already applied to it.
func NewWorld(store *grid.Store, seq uint64) *World {
	return &World{store: store, seq: seq}
}

func (w *World) SetAuditLogger(l AuditLogger) {
	w.mu.Lock()
	w.auditLogger = l
	w.mu.Unlock()
}

// Seq returns the number of completed draws.
func (w *World) Seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *World) GetBlock(pos curve.Coord) uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.GetBlock(pos)
}

// SetBlock is a single audited write outside of any draw.
func (w *World) SetBlock(actor string, pos curve.Coord, b uint16) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return (&auditWriter{w: w, actor: actor, reason: "SET"}).SetBlock(pos, b)
}

// Draw applies a whole sequence atomically with respect to other writers.
func (w *World) Draw(d Drawer, actor, reason string, seq curve.Sequence, gen placement.Generator) (Result, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := d.Draw(seq, gen, &auditWriter{w: w, actor: actor, reason: reason})
	w.seq++
	return r, w.seq
}

// ChunkBlocks returns a copy of one chunk column and its digest, generating
// the chunk if needed.
func (w *World) ChunkBlocks(cx, cz int) ([]uint16, [32]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := w.store.GetOrGenChunk(cx, cz)
	return append([]uint16(nil), ch.Blocks...), ch.Digest()
}

func (w *World) GridConfig() grid.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Cfg
}

func (w *World) Digest() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Digest()
}

// Snapshot captures the grid under the lock; writing it to disk is left to
// the caller.
func (w *World) Snapshot(worldID, paletteDigest string) snapshot.SnapshotV1 {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg := w.store.Cfg
	return snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: snapshot.Version, WorldID: worldID, Seq: w.seq},
		Seed:          cfg.Seed,
		Height:        cfg.Height,
		MinY:          cfg.MinY,
		BoundaryR:     cfg.BoundaryR,
		FloorY:        cfg.FloorY,
		FloorBlock:    cfg.FloorBlock,
		PaletteDigest: paletteDigest,
		Chunks:        w.store.ExportChunks(),
	}
}

// auditWriter is only used with w.mu held.
type auditWriter struct {
	w      *World
	actor  string
	reason string
}

func (a *auditWriter) SetBlock(pos curve.Coord, b uint16) bool {
	s := a.w.store
	if !s.InBounds(pos) {
		return false
	}
	from := s.GetBlock(pos)
	if !s.SetBlock(pos, b) {
		return false
	}
	if a.w.auditLogger != nil {
		_ = a.w.auditLogger.WriteAudit(AuditEntry{
			Seq:    a.w.seq + 1,
			Actor:  a.actor,
			Action: "SET_BLOCK",
			Pos:    pos.ToArray(),
			From:   from,
			To:     b,
			Reason: a.reason,
		})
	}
	return true
}
