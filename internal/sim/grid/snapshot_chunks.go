package grid

import (
	"fmt"

	snapv1 "voxelpath.ai/internal/persistence/snapshot"
)

// ExportChunks converts loaded chunk data into snapshot chunks in key order.
func (s *Store) ExportChunks() []snapv1.ChunkV1 {
	keys := s.LoadedChunkKeys()
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := s.Chunks[k]
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		out = append(out, snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: ch.Height,
			Blocks: blocks,
		})
	}
	return out
}

// ImportChunks rebuilds a store from snapshot chunks.
func ImportChunks(cfg Config, chunks []snapv1.ChunkV1) (*Store, error) {
	store := NewStore(cfg)
	want := ChunkSize * ChunkSize * store.Cfg.Height
	for _, ch := range chunks {
		if ch.Height != store.Cfg.Height {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, store.Cfg.Height)
		}
		if len(ch.Blocks) != want {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), want)
		}
		k := ChunkKey{CX: ch.CX, CZ: ch.CZ}
		if _, dup := store.Chunks[k]; dup {
			return nil, fmt.Errorf("snapshot chunk %d,%d appears twice", ch.CX, ch.CZ)
		}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		c := &Chunk{
			CX:     ch.CX,
			CZ:     ch.CZ,
			Height: ch.Height,
			Blocks: blocks,
		}
		_ = c.Digest()
		store.Chunks[k] = c
	}
	return store, nil
}
