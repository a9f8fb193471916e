package worldsync

import (
	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/save"
)

const blocksPerSection = 16 * 16 * 16

type sectionCache struct {
	chunk *save.Chunk
	cache map[int]*sectionCacheItem
}

type sectionCacheItem struct {
	section  save.Section
	solid    []bool
	anySolid bool
	storage  *level.BitStorage
}

func newSectionCache(chunk *save.Chunk) *sectionCache {
	return &sectionCache{
		chunk: chunk,
		cache: make(map[int]*sectionCacheItem),
	}
}

func (c *sectionCache) get(index int) *sectionCacheItem {
	sc, ok := c.cache[index]
	if !ok {
		if len(c.chunk.Sections) <= index {
			return nil
		}

		section := c.chunk.Sections[index]
		solid, anySolid := solidPaletteEntries(section.BlockStates.Palette)

		sc = &sectionCacheItem{
			section:  section,
			solid:    solid,
			anySolid: anySolid,
		}

		data := section.BlockStates.Data
		if v := calcBitsPerValue(blocksPerSection, len(data)); v > 0 && storageFits(v, len(data)) {
			sc.storage = level.NewBitStorage(v, blocksPerSection, data)
		}

		c.cache[index] = sc
	}
	return sc
}

// hasBlocks reports whether the section at index stores at least one
// non-air block.
func (c *sectionCache) hasBlocks(index int) bool {
	sc := c.get(index)
	if sc == nil {
		return false
	}

	if !sc.anySolid {
		return false
	}

	// single-entry palettes carry no data array
	if len(sc.section.BlockStates.Palette) == 1 || sc.storage == nil {
		return true
	}

	for i := 0; i < blocksPerSection; i++ {
		idx := sc.storage.Get(i)
		if idx < len(sc.solid) && sc.solid[idx] {
			return true
		}
	}
	return false
}

func storageFits(bits, longs int) bool {
	valuesPerLong := 64 / bits
	return (blocksPerSection+valuesPerLong-1)/valuesPerLong == longs
}

// IsEmpty reports whether the chunk carries no block data at all. A chunk
// cleared to air still has block data and is not empty.
func (c *Chunk) IsEmpty() bool {
	if c == nil || c.Data == nil {
		return true
	}
	for _, section := range c.Data.Sections {
		if len(section.BlockStates.Palette) > 0 {
			return false
		}
	}
	return true
}

// HasBlocks reports whether any section holds a block other than air.
func (c *Chunk) HasBlocks() bool {
	if c.IsEmpty() {
		return false
	}

	cache := newSectionCache(c.Data)
	for idx := range c.Data.Sections {
		if cache.hasBlocks(idx) {
			return true
		}
	}
	return false
}
