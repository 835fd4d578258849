package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Catalogs struct {
	Blocks  BlockCatalog
	Designs DesignCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
}

// Design layer modes.
const (
	ModeConstant                = "CONSTANT"
	ModeAlternating             = "ALTERNATING"
	ModeAlternatingSamePosition = "ALTERNATING_SAME_POSITION"
	ModeRandom                  = "RANDOM"
	ModeRandomSamePosition      = "RANDOM_SAME_POSITION"
)

type DesignCatalog struct {
	ByID   map[string]DesignDef
	Digest string
}

// DesignDef describes what gets placed around every voxel of a drawn path.
// Each layer becomes one placement generator.
type DesignDef struct {
	ID          string     `json:"id"`
	Description string     `json:"description,omitempty"`
	Layers      []LayerDef `json:"layers"`
}

type LayerDef struct {
	Mode       string         `json:"mode"`
	Placements []PlacementDef `json:"placements"`
}

type PlacementDef struct {
	Offset [3]int  `json:"offset"`
	Block  string  `json:"block"`
	Weight float64 `json:"weight,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadDesigns(filepath.Join(configDir, "designs"), &c.Blocks, &c.Designs); err != nil {
		return nil, err
	}
	return &c, nil
}

// DesignIDs returns the loaded design ids in sorted order.
func (c *DesignCatalog) DesignIDs() []string {
	ids := make([]string, 0, len(c.ByID))
	for id := range c.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)
	if len(ids) > 0xFFFF {
		return fmt.Errorf("blocks.json: %d blocks exceed the palette size", len(ids))
	}

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadDesigns(dir string, blocks *BlockCatalog, out *DesignCatalog) error {
	out.ByID = map[string]DesignDef{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var d DesignDef
		if err := json.Unmarshal(b, &d); err != nil {
			return fmt.Errorf("design %s: %w", filepath.Base(p), err)
		}
		if d.ID == "" {
			return fmt.Errorf("design %s: missing id", filepath.Base(p))
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("design %s: duplicate id %s", filepath.Base(p), d.ID)
		}
		if err := validateDesign(d, blocks); err != nil {
			return fmt.Errorf("design %s: %w", filepath.Base(p), err)
		}
		out.ByID[d.ID] = d
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func validateDesign(d DesignDef, blocks *BlockCatalog) error {
	if len(d.Layers) == 0 {
		return fmt.Errorf("no layers")
	}
	for i, l := range d.Layers {
		if len(l.Placements) == 0 {
			return fmt.Errorf("layer %d: no placements", i)
		}
		switch l.Mode {
		case ModeConstant, ModeAlternating:
		case ModeAlternatingSamePosition, ModeRandomSamePosition:
			for _, p := range l.Placements[1:] {
				if p.Offset != l.Placements[0].Offset {
					return fmt.Errorf("layer %d: %s placements must share one offset", i, l.Mode)
				}
			}
		case ModeRandom:
		default:
			return fmt.Errorf("layer %d: unknown mode %q", i, l.Mode)
		}
		random := l.Mode == ModeRandom || l.Mode == ModeRandomSamePosition
		for _, p := range l.Placements {
			if _, ok := blocks.Index[p.Block]; !ok {
				return fmt.Errorf("layer %d: unknown block %q", i, p.Block)
			}
			if random && !(p.Weight > 0) {
				return fmt.Errorf("layer %d: block %s needs a positive weight", i, p.Block)
			}
		}
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
