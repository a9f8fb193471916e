package worldsync

import (
	"fmt"

	"go.uber.org/zap"
)

// MergeObserver is told the running number of copied chunks after every copy.
type MergeObserver interface {
	ChunkMerged(count int)
}

type MergeObserverFunc func(count int)

func (f MergeObserverFunc) ChunkMerged(count int) {
	f(count)
}

// Merger copies non-empty chunks from one world into another. The copy is a
// plain overwrite: whatever the source holds wins.
type Merger struct {
	aliasFrom string
	aliasTo   string
	log       *zap.Logger
}

func NewMerger(cfg *MergeConfigBlock, log *zap.Logger) *Merger {
	m := &Merger{log: log.Named("merge")}
	if cfg != nil {
		m.aliasFrom = cfg.DimensionAliasFrom
		m.aliasTo = cfg.DimensionAliasTo
	}
	return m
}

// refDimension maps a source dimension onto the identifier reported in
// ChunkRefs. The two world producers disagree on one dimension's name.
func (m *Merger) refDimension(dim string) string {
	if m.aliasFrom != "" && dim == m.aliasFrom {
		return m.aliasTo
	}
	return dim
}

// CountChunks returns the number of chunks Merge would copy out of src.
func (m *Merger) CountChunks(src World) (int, error) {
	total := 0
	for _, dim := range src.Dimensions() {
		coords, err := src.ChunkCoords(dim)
		if err != nil {
			return 0, fmt.Errorf("list chunks of %s: %w", dim, err)
		}

		for _, pos := range coords {
			chunk, err := src.ReadChunk(dim, pos.X, pos.Z)
			if err != nil {
				continue
			}
			if !chunk.IsEmpty() {
				total++
			}
		}
	}
	return total, nil
}

// Merge copies every readable, non-empty chunk of src into dst, creating
// missing dimensions on the way. Unreadable chunks are skipped. Chunks holding
// only air are copied like any other so cleared areas stay cleared.
func (m *Merger) Merge(src, dst World, observer MergeObserver) ([]ChunkRef, error) {
	refs := []ChunkRef{}
	for _, dim := range src.Dimensions() {
		if !dst.HasDimension(dim) {
			if err := dst.CreateDimension(dim); err != nil {
				return refs, fmt.Errorf("create dimension %s: %w", dim, err)
			}
			m.log.Info("created dimension", zap.String("dimension", dim))
		}

		coords, err := src.ChunkCoords(dim)
		if err != nil {
			return refs, fmt.Errorf("list chunks of %s: %w", dim, err)
		}

		skipped, cleared := 0, 0
		for _, pos := range coords {
			chunk, err := src.ReadChunk(dim, pos.X, pos.Z)
			if err != nil {
				skipped++
				m.log.Debug("skipping unreadable chunk",
					zap.String("dimension", dim),
					zap.Int("x", pos.X),
					zap.Int("z", pos.Z),
					zap.Error(err),
				)
				continue
			}

			if chunk.IsEmpty() {
				continue
			}
			if !chunk.HasBlocks() {
				cleared++
			}

			if err := dst.WriteChunk(dim, chunk); err != nil {
				return refs, fmt.Errorf("write chunk %d,%d of %s: %w", pos.X, pos.Z, dim, err)
			}

			refs = append(refs, ChunkRef{
				Dimension: m.refDimension(dim),
				X:         pos.X,
				Z:         pos.Z,
			})
			if observer != nil {
				observer.ChunkMerged(len(refs))
			}
		}

		m.log.Debug("merged dimension",
			zap.String("dimension", dim),
			zap.Int("chunks", len(coords)),
			zap.Int("skipped", skipped),
			zap.Int("cleared", cleared),
		)
	}

	return refs, nil
}
