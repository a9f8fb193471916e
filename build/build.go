package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/b1naryth1ef/worldsync"
	"github.com/b1naryth1ef/worldsync/anvil"
	"github.com/b1naryth1ef/worldsync/worldlock"
	"go.uber.org/zap"
)

type Renderer interface {
	Run(onProgress func(worldsync.RenderProgress)) (*worldsync.RenderResult, error)
}

type Lighting interface {
	Recalculate(ctx context.Context, refs []worldsync.ChunkRef) worldsync.LightingResult
}

type Mapping interface {
	Stop(ctx context.Context)
	Start(ctx context.Context)
	Reload(ctx context.Context)
}

type PipelineOpts struct {
	WorldPath string
	Status    *worldsync.StatusTracker
	Lock      *worldlock.Lock
	Merger    *worldsync.Merger
	Lighting  Lighting
	Renderer  Renderer
	Mapping   Mapping

	// OpenWorld defaults to opening an Anvil world.
	OpenWorld func(path string) (worldsync.World, error)
}

// Pipeline merges one uploaded archive into the local world, relights the
// merged chunks and re-renders the map.
type Pipeline struct {
	opts PipelineOpts
	log  *zap.Logger
}

func NewPipeline(opts PipelineOpts, log *zap.Logger) *Pipeline {
	if opts.OpenWorld == nil {
		opts.OpenWorld = openAnvil
	}
	return &Pipeline{
		opts: opts,
		log:  log.Named("pipeline"),
	}
}

func openAnvil(path string) (worldsync.World, error) {
	return anvil.Open(path)
}

func ensureDirectory(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModePerm)
	}
	return err
}

// Process runs merge, lighting and render for job while holding the world
// lock. The mapping plugin is stopped from the first world write until the
// render is done.
func (p *Pipeline) Process(ctx context.Context, job *worldsync.Job) error {
	log := p.log.With(zap.String("job_id", job.ID.String()), zap.String("archive", job.ArchivePath))

	err := ensureDirectory(p.opts.WorldPath)
	if err != nil {
		return fmt.Errorf("world dir: %w", err)
	}

	return p.opts.Lock.With(func() error {
		tmpDir, err := os.MkdirTemp("", "worldsync-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		worldRoot, err := extractArchive(job.ArchivePath, filepath.Join(tmpDir, "extracted_world"))
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		if level, err := anvil.ReadLevel(worldRoot); err == nil {
			log.Info("extracted world", zap.String("level", level.Name), zap.String("version", level.Version))
		} else {
			log.Warn("unreadable level.dat", zap.Error(err))
		}

		p.opts.Mapping.Stop(ctx)
		defer func() {
			p.opts.Mapping.Start(ctx)
			p.opts.Mapping.Reload(ctx)
		}()

		refs, err := p.merge(log, worldRoot)
		if err != nil {
			return err
		}

		p.opts.Status.SetStage(worldsync.StageLighting)
		p.opts.Lighting.Recalculate(ctx, refs)

		p.opts.Status.SetStage(worldsync.StageRendering)
		result, err := p.opts.Renderer.Run(p.opts.Status.SetRenderProgress)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}

		log.Info("render complete", zap.Int("pid", result.PID), zap.Bool("completed", result.Completed))
		return nil
	})
}

// merge copies the uploaded world into the local one and saves it before
// returning the copied chunks.
func (p *Pipeline) merge(log *zap.Logger, srcPath string) ([]worldsync.ChunkRef, error) {
	src, err := p.opts.OpenWorld(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open uploaded world: %w", err)
	}
	defer src.Close()

	dst, err := p.opts.OpenWorld(p.opts.WorldPath)
	if err != nil {
		return nil, fmt.Errorf("open local world: %w", err)
	}
	defer dst.Close()

	total, err := p.opts.Merger.CountChunks(src)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	p.opts.Status.SetTotalChunks(total)

	refs, err := p.opts.Merger.Merge(src, dst, worldsync.MergeObserverFunc(p.opts.Status.SetCurrentChunk))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	err = dst.Save()
	if err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}

	log.Info("merged", zap.Int("chunks", len(refs)), zap.Int("total", total))
	return refs, nil
}
