package grid

func (s *Store) GenerateChunk(ch *Chunk) {
	fill := s.Cfg.FloorY - s.Cfg.MinY
	if fill <= 0 {
		if s.Cfg.Air != 0 {
			for i := range ch.Blocks {
				ch.Blocks[i] = s.Cfg.Air
			}
		}
		return
	}
	if fill > ch.Height {
		fill = ch.Height
	}
	layer := ChunkSize * ChunkSize
	for y := 0; y < ch.Height; y++ {
		b := s.Cfg.Air
		if y < fill {
			b = s.Cfg.FloorBlock
		}
		for i := y * layer; i < (y+1)*layer; i++ {
			ch.Blocks[i] = b
		}
	}
}
