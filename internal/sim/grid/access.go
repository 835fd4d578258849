package grid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/sim/mathx"
)

func (s *Store) InBounds(pos curve.Coord) bool {
	if pos.Y < s.Cfg.MinY || pos.Y >= s.Cfg.MinY+s.Cfg.Height {
		return false
	}
	if s.Cfg.BoundaryR > 0 {
		r := s.Cfg.BoundaryR
		if pos.X < -r || pos.X > r || pos.Z < -r || pos.Z > r {
			return false
		}
	}
	return true
}

func (s *Store) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// ChunkOf returns the key of the chunk holding pos.
func ChunkOf(pos curve.Coord) ChunkKey {
	return ChunkKey{CX: mathx.FloorDiv(pos.X, ChunkSize), CZ: mathx.FloorDiv(pos.Z, ChunkSize)}
}

func (s *Store) GetBlock(pos curve.Coord) uint16 {
	if !s.InBounds(pos) {
		return s.Cfg.Air
	}
	k := ChunkOf(pos)
	ch := s.GetOrGenChunk(k.CX, k.CZ)
	return ch.Get(mathx.Mod(pos.X, ChunkSize), pos.Y-s.Cfg.MinY, mathx.Mod(pos.Z, ChunkSize))
}

// SetBlock writes b at pos. It returns false when pos is outside the grid or
// already holds b.
func (s *Store) SetBlock(pos curve.Coord, b uint16) bool {
	if !s.InBounds(pos) {
		return false
	}
	k := ChunkOf(pos)
	ch := s.GetOrGenChunk(k.CX, k.CZ)
	return ch.Set(mathx.Mod(pos.X, ChunkSize), pos.Y-s.Cfg.MinY, mathx.Mod(pos.Z, ChunkSize), b)
}

func (s *Store) GetOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.Chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.Cfg.Height,
		Blocks: make([]uint16, ChunkSize*ChunkSize*s.Cfg.Height),
	}
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[k] = ch
	return ch
}

// Digest hashes every loaded chunk in key order. Chunks that were generated
// but never written still contribute, so the value depends on what was read.
func (s *Store) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	for _, k := range s.LoadedChunkKeys() {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k.CX)))
		h.Write(tmp[:])
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k.CZ)))
		h.Write(tmp[:])
		d := s.Chunks[k].Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
