package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxelpath.ai/internal/persistence/indexdb"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	draw.AuditLogger
	draw.Recorder
	draw.SessionStore
	Close() error
	Dropped() uint64
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VP_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
