package indexdb

import "voxelpath.ai/internal/sim/grid"

func gridForTest() *grid.Store {
	return grid.NewStore(grid.Config{Height: 8, MinY: -4})
}
