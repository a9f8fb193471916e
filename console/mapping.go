package console

import (
	"context"

	"github.com/b1naryth1ef/worldsync"
	"go.uber.org/zap"
)

// MappingService controls the server's map plugin through the console.
// Failures are logged, never returned.
type MappingService struct {
	console worldsync.Commander
	cfg     *worldsync.MappingConfigBlock
	log     *zap.Logger
}

func NewMappingService(console worldsync.Commander, cfg *worldsync.MappingConfigBlock, log *zap.Logger) *MappingService {
	return &MappingService{
		console: console,
		cfg:     cfg,
		log:     log.Named("mapping"),
	}
}

func (m *MappingService) Stop(ctx context.Context) {
	m.send(ctx, m.cfg.StopCommand)
}

func (m *MappingService) Start(ctx context.Context) {
	m.send(ctx, m.cfg.StartCommand)
}

func (m *MappingService) Reload(ctx context.Context) {
	m.send(ctx, m.cfg.ReloadCommand)
}

func (m *MappingService) send(ctx context.Context, command string) {
	resp, err := m.console.Run(ctx, command)
	if err != nil {
		m.log.Warn("mapping command failed", zap.String("command", command), zap.Error(err))
		return
	}
	m.log.Info("mapping command", zap.String("command", command), zap.String("response", resp))
}
