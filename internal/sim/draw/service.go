package draw

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/mathx"
	"voxelpath.ai/internal/sim/placement"
)

var (
	ErrUnknownDesign = errors.New("unknown design")
	ErrOutOfRange    = errors.New("control point out of range")
)

// Designs resolves a design id to a fresh generator.
type Designs interface {
	Generator(designID string) (placement.Generator, error)
}

// CatalogDesigns builds generators from the loaded design catalog.
type CatalogDesigns struct {
	Catalogs *catalogs.Catalogs
	Seed     int64
}

func (c CatalogDesigns) Generator(designID string) (placement.Generator, error) {
	def, ok := c.Catalogs.Designs.ByID[designID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDesign, designID)
	}
	return placement.FromDesign(def, c.Catalogs.Blocks.Index, c.Seed)
}

type Request struct {
	Actor  string
	Kind   curve.Kind
	Points []curve.Coord
	Design string
}

type Record struct {
	ID     string        `json:"id"`
	Seq    uint64        `json:"seq"`
	Actor  string        `json:"actor"`
	Kind   curve.Kind    `json:"-"`
	Points []curve.Coord `json:"-"`
	Design string        `json:"design"`
	Result Result        `json:"result"`
	At     time.Time     `json:"at"`
}

// Recorder receives every completed draw. Implemented in
// internal/persistence/indexdb.
type Recorder interface {
	RecordDraw(rec Record)
}

type Service struct {
	World   *World
	Designs Designs
	Drawer  Drawer

	DefaultDesign string
	// Zero disables the check.
	MaxControlCoord int

	// Optional.
	Recorder Recorder
	Log      *log.Logger
	// AfterDraw runs outside the world lock with the new draw count.
	AfterDraw func(seq uint64)

	now func() time.Time
}

// Draw validates the request, rasterizes it and writes it into the world.
func (s *Service) Draw(req Request) (Record, error) {
	design := req.Design
	if design == "" {
		design = s.DefaultDesign
	}
	if s.MaxControlCoord > 0 {
		for i, p := range req.Points {
			if mathx.AbsInt(p.X) > s.MaxControlCoord || mathx.AbsInt(p.Y) > s.MaxControlCoord || mathx.AbsInt(p.Z) > s.MaxControlCoord {
				return Record{}, fmt.Errorf("point %d %s: %w (limit %d)", i, p, ErrOutOfRange, s.MaxControlCoord)
			}
		}
	}
	seq, err := curve.New(req.Kind, req.Points)
	if err != nil {
		return Record{}, err
	}
	gen, err := s.Designs.Generator(design)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:     uuid.NewString(),
		Actor:  req.Actor,
		Kind:   req.Kind,
		Points: append([]curve.Coord(nil), req.Points...),
		Design: design,
	}
	rec.Result, rec.Seq = s.World.Draw(s.Drawer, req.Actor, rec.ID, seq, gen)
	rec.At = s.clock()

	if s.Log != nil {
		s.Log.Printf("draw %s actor=%s kind=%s design=%s voxels=%d placed=%d failed=%d",
			rec.ID, rec.Actor, rec.Kind.ID(), design, rec.Result.Voxels, rec.Result.Placed, rec.Result.Failed)
	}
	if s.Recorder != nil {
		s.Recorder.RecordDraw(rec)
	}
	if s.AfterDraw != nil {
		s.AfterDraw(rec.Seq)
	}
	return rec, nil
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
