package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Grid Grid `yaml:"grid"`
	Draw Draw `yaml:"draw"`

	SnapshotEveryDraws int `yaml:"snapshot_every_draws"`
}

type Grid struct {
	Height     int    `yaml:"height"`
	MinY       int    `yaml:"min_y"`
	BoundaryR  int    `yaml:"boundary_r"`
	FloorY     int    `yaml:"floor_y"`
	FloorBlock string `yaml:"floor_block"`
}

type Draw struct {
	DefaultKind   string `yaml:"default_kind"`
	DefaultDesign string `yaml:"default_design"`
	Seed          int64  `yaml:"seed"`
	// Control points with any |coordinate| above this are rejected.
	MaxControlCoord int `yaml:"max_control_coord"`
	// Voxels pulled per draw before the path is cut short.
	MaxVoxels int `yaml:"max_voxels"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Grid: Grid{
			Height:     256,
			MinY:       -64,
			BoundaryR:  4096,
			FloorY:     0,
			FloorBlock: "STONE",
		},
		Draw: Draw{
			DefaultKind:     "LINEAR",
			DefaultDesign:   "single_stone",
			Seed:            1337,
			MaxControlCoord: 30000,
			MaxVoxels:       200000,
		},
		SnapshotEveryDraws: 50,
	}
}

// Load reads path on top of Defaults, so a partial file only overrides the
// keys it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.Grid.Height <= 0:
		return fmt.Errorf("grid.height must be positive, got %d", t.Grid.Height)
	case t.Grid.BoundaryR < 0:
		return fmt.Errorf("grid.boundary_r must not be negative, got %d", t.Grid.BoundaryR)
	case t.Draw.MaxControlCoord <= 0:
		return fmt.Errorf("draw.max_control_coord must be positive, got %d", t.Draw.MaxControlCoord)
	case t.Draw.MaxVoxels <= 0:
		return fmt.Errorf("draw.max_voxels must be positive, got %d", t.Draw.MaxVoxels)
	case t.SnapshotEveryDraws < 0:
		return fmt.Errorf("snapshot_every_draws must not be negative, got %d", t.SnapshotEveryDraws)
	}
	return nil
}
