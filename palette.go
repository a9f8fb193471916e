package worldsync

import "github.com/Tnze/go-mc/save"

var airBlocks = map[string]struct{}{
	"minecraft:air":      {},
	"minecraft:cave_air": {},
	"minecraft:void_air": {},
}

func isAirBlock(block string) bool {
	_, ok := airBlocks[block]
	return ok
}

// solidPaletteEntries returns, per palette index, whether that block state is
// something other than air.
func solidPaletteEntries(palette []save.BlockState) ([]bool, bool) {
	solid := make([]bool, len(palette))
	found := false
	for idx, state := range palette {
		if !isAirBlock(state.Name) {
			solid[idx] = true
			found = true
		}
	}
	return solid, found
}

func calcBitsPerValue(length, longs int) (bits int) {
	if longs == 0 || length == 0 {
		return 0
	}
	valuePerLong := (length + longs - 1) / longs
	return 64 / valuePerLong
}
