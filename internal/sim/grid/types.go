package grid

import (
	"crypto/sha256"
	"encoding/binary"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is one 16x16 column of Height layers; Blocks is indexed x, z, then y.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

// Set reports whether the cell changed.
func (c *Chunk) Set(x, y, z int, b uint16) bool {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return false
	}
	c.Blocks[i] = b
	c.dirty = true
	return true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type Config struct {
	Seed      int64
	Height    int // layers per column
	MinY      int // lowest addressable y
	BoundaryR int // blocks; 0 means unbounded on x/z

	// Cells with y < FloorY are generated as FloorBlock.
	FloorY     int
	FloorBlock uint16

	Air uint16
}

type Store struct {
	Cfg    Config
	Chunks map[ChunkKey]*Chunk
}

func NewStore(cfg Config) *Store {
	if cfg.Height <= 0 {
		cfg.Height = 1
	}
	return &Store{
		Cfg:    cfg,
		Chunks: map[ChunkKey]*Chunk{},
	}
}
