package worldsync

import (
	"errors"
	"fmt"

	"github.com/Tnze/go-mc/save"
)

const (
	DimensionOverworld  = "minecraft:overworld"
	DimensionNether     = "minecraft:the_nether"
	DimensionEnd        = "minecraft:the_end"
	DimensionUltraSpace = "pixelmon:ultra_space"
)

var (
	ErrChunkNotFound     = errors.New("chunk does not exist")
	ErrDimensionNotFound = errors.New("dimension does not exist")
)

// ChunkPos addresses a chunk column inside a dimension.
type ChunkPos struct {
	X int
	Z int
}

// ChunkRef identifies a chunk copied by a merge.
type ChunkRef struct {
	Dimension string
	X         int
	Z         int
}

func (r ChunkRef) String() string {
	return fmt.Sprintf("%s(%d,%d)", r.Dimension, r.X, r.Z)
}

// Chunk is a loaded chunk. Raw is the on-disk sector payload including the
// leading compression byte, Data the decoded form.
type Chunk struct {
	X    int
	Z    int
	Raw  []byte
	Data *save.Chunk
}

// World is an open world that chunks can be enumerated, read and written on.
type World interface {
	Dimensions() []string
	HasDimension(dim string) bool
	CreateDimension(dim string) error
	ChunkCoords(dim string) ([]ChunkPos, error)
	ReadChunk(dim string, x, z int) (*Chunk, error)
	WriteChunk(dim string, chunk *Chunk) error
	Save() error
	Close() error
}
