package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/b1naryth1ef/worldsync"
	"github.com/b1naryth1ef/worldsync/build"
	"github.com/b1naryth1ef/worldsync/console"
	"github.com/b1naryth1ef/worldsync/dl"
	"github.com/b1naryth1ef/worldsync/web"
	"github.com/b1naryth1ef/worldsync/worldlock"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configFlag := &cli.PathFlag{
		Name:    "config",
		Usage:   "path to the configuration file",
		Value:   "config.hcl",
		EnvVars: []string{"WORLDSYNC_CONFIG"},
	}

	app := &cli.App{
		Name:        "worldsync",
		Description: "merges uploaded minecraft worlds into a server world and re-renders its map",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "accept uploads over HTTP and merge them in the background",
				Action: commandServe,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:      "merge",
				Usage:     "merge the given world archives and exit",
				ArgsUsage: "ARCHIVE...",
				Action:    commandMerge,
				Flags:     []cli.Flag{configFlag},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func newLogger(cfg *worldsync.LoggingConfigBlock) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

type service struct {
	config *worldsync.Config
	log    *zap.Logger
	worker *build.Worker
}

func newService(ctx *cli.Context) (*service, error) {
	config, err := worldsync.LoadConfig(ctx.Path("config"))
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(config.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if jar := config.Renderer.JarPath(); jar != "" && config.Renderer.DownloadURL != "" {
		fetched, err := dl.Ensure(config.Renderer.DownloadURL, config.Renderer.DownloadSHA1, jar)
		if err != nil {
			return nil, fmt.Errorf("fetch renderer: %w", err)
		}
		if fetched {
			logger.Info("downloaded renderer", zap.String("path", jar))
		}
	}

	renderer, err := worldsync.NewRenderSupervisor(config.Renderer, logger)
	if err != nil {
		return nil, err
	}

	rcon := console.New(config.Console, logger)
	status := worldsync.NewStatusTracker()
	pipeline := build.NewPipeline(build.PipelineOpts{
		WorldPath: config.WorldPath,
		Status:    status,
		Lock:      worldlock.New(config.LockPath(), logger),
		Merger:    worldsync.NewMerger(config.Merge, logger),
		Lighting:  worldsync.NewLightingDriver(rcon, config.Lighting, logger),
		Renderer:  renderer,
		Mapping:   console.NewMappingService(rcon, config.Mapping, logger),
	}, logger)

	return &service{
		config: config,
		log:    logger,
		worker: build.NewWorker(build.NewQueue(), status, pipeline, logger),
	}, nil
}

func commandServe(ctx *cli.Context) error {
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.log.Sync()

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              svc.config.HTTP.Listen,
		Handler:           web.NewServer(svc.worker, svc.config.UploadDir, svc.log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- svc.worker.Run(workerCtx)
	}()

	serverDone := make(chan error, 1)
	go func() {
		svc.log.Info("listening", zap.String("addr", server.Addr), zap.String("world", svc.config.WorldPath))
		serverDone <- server.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
	case err := <-serverDone:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	svc.log.Info("shutting down, waiting for the current job")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		svc.log.Warn("http shutdown", zap.Error(err))
	}

	cancelWorker()
	err = <-workerDone
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func commandMerge(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no archives given")
	}

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.log.Sync()

	// the worker deletes archives once processed, so it gets copies
	err = os.MkdirAll(svc.config.UploadDir, os.ModePerm)
	if err != nil {
		return err
	}
	spool, err := os.MkdirTemp(svc.config.UploadDir, build.CLISpoolPrefix)
	if err != nil {
		return err
	}
	defer os.RemoveAll(spool)

	for idx, archive := range ctx.Args().Slice() {
		dst := filepath.Join(spool, fmt.Sprintf("%03d-%s", idx, filepath.Base(archive)))
		if err := copyFile(archive, dst); err != nil {
			return fmt.Errorf("spool %s: %w", archive, err)
		}
		svc.worker.Enqueue(dst)
	}
	svc.worker.Shutdown()

	return svc.worker.Run(ctx.Context)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
