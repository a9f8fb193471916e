package worldsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Commander sends one command to the server console and returns its reply.
type Commander interface {
	Run(ctx context.Context, command string) (string, error)
}

// LightingDriver asks the running server to recalculate light for merged
// chunks, one console command per chunk.
type LightingDriver struct {
	console Commander
	command string
	radius  int
	worlds  map[string]string
	log     *zap.Logger
}

type LightingResult struct {
	Sent    int
	Failed  int
	Skipped int
}

func NewLightingDriver(console Commander, cfg *LightingConfigBlock, log *zap.Logger) *LightingDriver {
	return &LightingDriver{
		console: console,
		command: cfg.Command,
		radius:  cfg.Radius,
		worlds:  cfg.Worlds,
		log:     log.Named("lighting"),
	}
}

// Command builds the console command for a chunk. ok is false when the
// chunk's dimension has no world folder configured.
func (d *LightingDriver) Command(ref ChunkRef) (string, bool) {
	folder, ok := d.worlds[ref.Dimension]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %d %d %d %s", d.command, ref.X, ref.Z, d.radius, folder), true
}

// Recalculate issues the lighting command for each ref in order. A failing
// command is logged and the remaining chunks are still processed.
func (d *LightingDriver) Recalculate(ctx context.Context, refs []ChunkRef) LightingResult {
	var result LightingResult
	warned := map[string]struct{}{}

	for _, ref := range refs {
		cmd, ok := d.Command(ref)
		if !ok {
			result.Skipped++
			if _, seen := warned[ref.Dimension]; !seen {
				warned[ref.Dimension] = struct{}{}
				d.log.Warn("no world folder for dimension, skipping lighting", zap.String("dimension", ref.Dimension))
			}
			continue
		}

		resp, err := d.console.Run(ctx, cmd)
		if err != nil {
			result.Failed++
			d.log.Warn("lighting command failed", zap.String("command", cmd), zap.Error(err))
			continue
		}

		result.Sent++
		d.log.Debug("lighting command", zap.String("command", cmd), zap.String("response", resp))
	}

	d.log.Info("lighting recalculated",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result
}
