// Package worldtest provides an in-memory world for tests.
package worldtest

import (
	"errors"
	"sort"
	"sync"

	"github.com/Tnze/go-mc/save"
	"github.com/b1naryth1ef/worldsync"
)

var ErrCorrupt = errors.New("corrupt chunk")

type MemWorld struct {
	sync.Mutex

	dims   map[string]*memDimension
	Saves  int
	Closed bool

	// WriteErr is returned by every WriteChunk when set.
	WriteErr error
}

type memDimension struct {
	order  []worldsync.ChunkPos
	chunks map[worldsync.ChunkPos]*worldsync.Chunk
	broken map[worldsync.ChunkPos]struct{}
}

var _ worldsync.World = (*MemWorld)(nil)

func New() *MemWorld {
	return &MemWorld{dims: make(map[string]*memDimension)}
}

func (w *MemWorld) dim(name string) *memDimension {
	d, ok := w.dims[name]
	if !ok {
		d = &memDimension{
			chunks: make(map[worldsync.ChunkPos]*worldsync.Chunk),
			broken: make(map[worldsync.ChunkPos]struct{}),
		}
		w.dims[name] = d
	}
	return d
}

func (d *memDimension) track(pos worldsync.ChunkPos) {
	if _, ok := d.chunks[pos]; ok {
		return
	}
	if _, ok := d.broken[pos]; ok {
		return
	}
	d.order = append(d.order, pos)
}

// Put stores chunk under dim, keeping insertion order for enumeration.
func (w *MemWorld) Put(dim string, chunk *worldsync.Chunk) *MemWorld {
	w.Lock()
	defer w.Unlock()

	d := w.dim(dim)
	pos := worldsync.ChunkPos{X: chunk.X, Z: chunk.Z}
	d.track(pos)
	d.chunks[pos] = chunk
	return w
}

// PutBroken registers a chunk that is listed but cannot be read.
func (w *MemWorld) PutBroken(dim string, x, z int) *MemWorld {
	w.Lock()
	defer w.Unlock()

	d := w.dim(dim)
	pos := worldsync.ChunkPos{X: x, Z: z}
	d.track(pos)
	d.broken[pos] = struct{}{}
	return w
}

// Get returns the stored chunk or nil.
func (w *MemWorld) Get(dim string, x, z int) *worldsync.Chunk {
	w.Lock()
	defer w.Unlock()

	d, ok := w.dims[dim]
	if !ok {
		return nil
	}
	return d.chunks[worldsync.ChunkPos{X: x, Z: z}]
}

func (w *MemWorld) Dimensions() []string {
	w.Lock()
	defer w.Unlock()

	dims := make([]string, 0, len(w.dims))
	for name := range w.dims {
		dims = append(dims, name)
	}
	sort.Strings(dims)
	return dims
}

func (w *MemWorld) HasDimension(dim string) bool {
	w.Lock()
	defer w.Unlock()
	_, ok := w.dims[dim]
	return ok
}

func (w *MemWorld) CreateDimension(dim string) error {
	w.Lock()
	defer w.Unlock()
	w.dim(dim)
	return nil
}

func (w *MemWorld) ChunkCoords(dim string) ([]worldsync.ChunkPos, error) {
	w.Lock()
	defer w.Unlock()

	d, ok := w.dims[dim]
	if !ok {
		return nil, worldsync.ErrDimensionNotFound
	}
	return append([]worldsync.ChunkPos{}, d.order...), nil
}

func (w *MemWorld) ReadChunk(dim string, x, z int) (*worldsync.Chunk, error) {
	w.Lock()
	defer w.Unlock()

	d, ok := w.dims[dim]
	if !ok {
		return nil, worldsync.ErrDimensionNotFound
	}
	pos := worldsync.ChunkPos{X: x, Z: z}
	if _, broken := d.broken[pos]; broken {
		return nil, ErrCorrupt
	}
	chunk, ok := d.chunks[pos]
	if !ok {
		return nil, worldsync.ErrChunkNotFound
	}
	return chunk, nil
}

func (w *MemWorld) WriteChunk(dim string, chunk *worldsync.Chunk) error {
	if w.WriteErr != nil {
		return w.WriteErr
	}
	if !w.HasDimension(dim) {
		return worldsync.ErrDimensionNotFound
	}

	raw := append([]byte{}, chunk.Raw...)
	w.Put(dim, &worldsync.Chunk{X: chunk.X, Z: chunk.Z, Raw: raw, Data: chunk.Data})
	return nil
}

func (w *MemWorld) Save() error {
	w.Lock()
	defer w.Unlock()
	w.Saves++
	return nil
}

func (w *MemWorld) Close() error {
	w.Lock()
	defer w.Unlock()
	w.Closed = true
	return nil
}

// Section builds a section whose palette holds the given block names and no
// data array.
func Section(blocks ...string) save.Section {
	var section save.Section
	for _, name := range blocks {
		section.BlockStates.Palette = append(section.BlockStates.Palette, save.BlockState{Name: name})
	}
	return section
}

// SolidChunk is a chunk with one stone section.
func SolidChunk(x, z int) *worldsync.Chunk {
	return &worldsync.Chunk{
		X:    x,
		Z:    z,
		Raw:  []byte{2, byte(x), byte(z), 0x5a},
		Data: &save.Chunk{Sections: []save.Section{Section("minecraft:stone")}},
	}
}

// AirChunk is a chunk whose only section is air.
func AirChunk(x, z int) *worldsync.Chunk {
	return &worldsync.Chunk{
		X:    x,
		Z:    z,
		Raw:  []byte{2, byte(x), byte(z), 0x00},
		Data: &save.Chunk{Sections: []save.Section{Section("minecraft:air")}},
	}
}

// ProtoChunk is a chunk that has not been generated yet: it has no block data.
func ProtoChunk(x, z int) *worldsync.Chunk {
	return &worldsync.Chunk{
		X:    x,
		Z:    z,
		Raw:  []byte{2, byte(x), byte(z), 0x01},
		Data: &save.Chunk{Status: "minecraft:structure_starts", Sections: []save.Section{{}}},
	}
}
