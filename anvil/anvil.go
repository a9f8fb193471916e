// Package anvil stores worlds in the Anvil region format used by Java
// edition servers.
package anvil

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Tnze/go-mc/save"
	"github.com/Tnze/go-mc/save/region"
	"github.com/b1naryth1ef/worldsync"
)

var vanillaDimensions = map[string]string{
	worldsync.DimensionOverworld: "",
	worldsync.DimensionNether:    "DIM-1",
	worldsync.DimensionEnd:       "DIM1",
}

// World is an on-disk Anvil world. It is not safe for concurrent use.
type World struct {
	path       string
	dimensions map[string]struct{}
	regions    map[string]*region.Region
}

var _ worldsync.World = (*World)(nil)

// Open opens the world rooted at path and discovers its dimensions.
func Open(path string) (*World, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	w := &World{
		path:       path,
		dimensions: make(map[string]struct{}),
		regions:    make(map[string]*region.Region),
	}

	for dim := range vanillaDimensions {
		if isDir(w.regionDir(dim)) {
			w.dimensions[dim] = struct{}{}
		}
	}

	root := filepath.Join(path, "dimensions")
	if isDir(root) {
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() || d.Name() != "region" {
				return nil
			}

			rel, err := filepath.Rel(root, filepath.Dir(p))
			if err != nil {
				return err
			}
			parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
			if len(parts) == 2 {
				w.dimensions[parts[0]+":"+parts[1]] = struct{}{}
			}
			return filepath.SkipDir
		})
		if err != nil {
			return nil, fmt.Errorf("scan dimensions: %w", err)
		}
	}

	return w, nil
}

// DimensionDir returns the directory holding a dimension's data, relative to
// the world root.
func DimensionDir(dim string) string {
	if dir, ok := vanillaDimensions[dim]; ok {
		return dir
	}
	ns, name, found := strings.Cut(dim, ":")
	if !found {
		ns, name = "minecraft", dim
	}
	return filepath.Join("dimensions", ns, filepath.FromSlash(name))
}

func (w *World) Path() string {
	return w.path
}

func (w *World) regionDir(dim string) string {
	return filepath.Join(w.path, DimensionDir(dim), "region")
}

func (w *World) Dimensions() []string {
	dims := make([]string, 0, len(w.dimensions))
	for dim := range w.dimensions {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

func (w *World) HasDimension(dim string) bool {
	_, ok := w.dimensions[dim]
	return ok
}

func (w *World) CreateDimension(dim string) error {
	if err := os.MkdirAll(w.regionDir(dim), os.ModePerm); err != nil {
		return err
	}
	w.dimensions[dim] = struct{}{}
	return nil
}

// ChunkCoords lists every chunk stored in the dimension's region files.
func (w *World) ChunkCoords(dim string) ([]worldsync.ChunkPos, error) {
	if !w.HasDimension(dim) {
		return nil, worldsync.ErrDimensionNotFound
	}

	entries, err := os.ReadDir(w.regionDir(dim))
	if err != nil {
		return nil, err
	}

	coords := []worldsync.ChunkPos{}
	for _, e := range entries {
		rx, rz, ok := parseRegionName(e.Name())
		if !ok {
			continue
		}

		reg, err := w.region(filepath.Join(w.regionDir(dim), e.Name()), false)
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open region %s: %w", e.Name(), err)
		}

		for x := 0; x < 32; x++ {
			for z := 0; z < 32; z++ {
				if reg.ExistSector(x, z) {
					coords = append(coords, worldsync.ChunkPos{X: rx*32 + x, Z: rz*32 + z})
				}
			}
		}
	}
	return coords, nil
}

// ReadChunk loads and decodes one chunk. Missing chunks return
// worldsync.ErrChunkNotFound; undecodable ones return the decode error.
func (w *World) ReadChunk(dim string, x, z int) (chunk *worldsync.Chunk, err error) {
	path := filepath.Join(w.regionDir(dim), regionName(x>>5, z>>5))
	reg, err := w.region(path, false)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, io.EOF) {
		return nil, worldsync.ErrChunkNotFound
	}
	if err != nil {
		return nil, err
	}

	sector, err := reg.ReadSector(x&31, z&31)
	if errors.Is(err, region.ErrNoSector) {
		return nil, worldsync.ErrChunkNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(sector) == 0 {
		return nil, fmt.Errorf("chunk %d,%d: empty sector", x, z)
	}

	defer func() {
		if r := recover(); r != nil {
			chunk, err = nil, fmt.Errorf("chunk %d,%d: decode panic: %v", x, z, r)
		}
	}()

	var data save.Chunk
	if err := data.Load(sector); err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", x, z, err)
	}

	return &worldsync.Chunk{X: x, Z: z, Raw: sector, Data: &data}, nil
}

// WriteChunk stores the chunk's raw sector, replacing whatever was there.
func (w *World) WriteChunk(dim string, chunk *worldsync.Chunk) error {
	if len(chunk.Raw) == 0 {
		return fmt.Errorf("chunk %d,%d has no raw data", chunk.X, chunk.Z)
	}
	if !w.HasDimension(dim) {
		return worldsync.ErrDimensionNotFound
	}

	path := filepath.Join(w.regionDir(dim), regionName(chunk.X>>5, chunk.Z>>5))
	reg, err := w.region(path, true)
	if err != nil {
		return err
	}
	return reg.WriteSector(chunk.X&31, chunk.Z&31, chunk.Raw)
}

// Save flushes every open region file to disk. The world stays usable.
func (w *World) Save() error {
	var errs []error
	for path, reg := range w.regions {
		if err := reg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close region %s: %w", path, err))
		}
		delete(w.regions, path)
	}
	return errors.Join(errs...)
}

func (w *World) Close() error {
	return w.Save()
}

func (w *World) region(path string, create bool) (*region.Region, error) {
	if reg, ok := w.regions[path]; ok {
		return reg, nil
	}

	reg, err := region.Open(path)
	if errors.Is(err, fs.ErrNotExist) && create {
		reg, err = region.Create(path)
	}
	if err != nil {
		return nil, err
	}

	w.regions[path] = reg
	return reg, nil
}

func regionName(rx, rz int) string {
	return fmt.Sprintf("r.%d.%d.mca", rx, rz)
}

func parseRegionName(name string) (int, int, bool) {
	var rx, rz int
	if !strings.HasSuffix(name, ".mca") {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(name, "r.%d.%d.mca", &rx, &rz); err != nil {
		return 0, 0, false
	}
	return rx, rz, true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// LevelInfo is what we care about from level.dat.
type LevelInfo struct {
	Name    string
	Version string
}

// ReadLevel decodes the world's level.dat.
func ReadLevel(path string) (*LevelInfo, error) {
	fd, err := os.Open(filepath.Join(path, "level.dat"))
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	r, err := gzip.NewReader(fd)
	if err != nil {
		return nil, err
	}

	level, err := save.ReadLevel(r)
	if err != nil {
		return nil, err
	}
	return &LevelInfo{Name: level.Data.LevelName, Version: level.Data.Version.Name}, nil
}
