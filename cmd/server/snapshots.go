package main

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/draw"
)

type snapshotIndex interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

// snapshotter writes a grid snapshot every N draws. Capture happens on the
// drawing goroutine; compression and disk writes happen in Run.
type snapshotter struct {
	world         *draw.World
	worldID       string
	paletteDigest string
	dir           string
	every         uint64
	log           *log.Logger

	// Optional.
	index snapshotIndex

	ch chan snapshot.SnapshotV1
	mu sync.Mutex // serializes file writes
}

func newSnapshotter(w *draw.World, worldID, paletteDigest, dir string, everyDraws int, logger *log.Logger) *snapshotter {
	s := &snapshotter{
		world:         w,
		worldID:       worldID,
		paletteDigest: paletteDigest,
		dir:           dir,
		log:           logger,
		ch:            make(chan snapshot.SnapshotV1, 2),
	}
	if everyDraws > 0 {
		s.every = uint64(everyDraws)
	}
	return s
}

// AfterDraw is installed as draw.Service.AfterDraw.
func (s *snapshotter) AfterDraw(seq uint64) {
	if s.every == 0 || seq%s.every != 0 {
		return
	}
	snap := s.world.Snapshot(s.worldID, s.paletteDigest)
	select {
	case s.ch <- snap:
	default:
		if s.log != nil {
			s.log.Printf("snapshot seq=%d skipped: writer busy", seq)
		}
	}
}

func (s *snapshotter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.ch:
			if _, err := s.write(snap); err != nil && s.log != nil {
				s.log.Printf("snapshot write: %v", err)
			}
		}
	}
}

// Save captures and writes a snapshot synchronously.
func (s *snapshotter) Save() (string, error) {
	return s.write(s.world.Snapshot(s.worldID, s.paletteDigest))
}

func (s *snapshotter) write(snap snapshot.SnapshotV1) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, snapshot.FileName(snap.Header.Seq))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if s.index != nil {
		s.index.RecordSnapshot(path, snap)
	}
	return path, nil
}
