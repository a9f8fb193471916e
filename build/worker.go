package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/b1naryth1ef/worldsync"
	"go.uber.org/zap"
)

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, job *worldsync.Job) error
}

// Worker drains the queue one archive at a time.
type Worker struct {
	queue     *Queue
	status    *worldsync.StatusTracker
	processor Processor
	log       *zap.Logger
}

func NewWorker(queue *Queue, status *worldsync.StatusTracker, processor Processor, log *zap.Logger) *Worker {
	return &Worker{
		queue:     queue,
		status:    status,
		processor: processor,
		log:       log.Named("worker"),
	}
}

func (w *Worker) Enqueue(path string) {
	w.queue.Enqueue(path)
	w.log.Info("queued", zap.String("archive", path))
}

func (w *Worker) Shutdown() {
	w.queue.Shutdown()
}

// Status returns a consistent snapshot of the current and pending jobs.
func (w *Worker) Status() worldsync.Status {
	var status worldsync.Status
	w.queue.snapshot(func(pending []string) {
		status = w.status.Snapshot(pending)
	})
	return status
}

// Run processes queued archives until the shutdown marker is reached or ctx
// is cancelled. Cancellation is only observed between jobs.
func (w *Worker) Run(ctx context.Context) error {
	for {
		var job *worldsync.Job
		item, err := w.queue.next(ctx, func(path string) {
			job = w.status.Begin(path)
		})
		if err != nil {
			return err
		}
		if item.stop {
			w.log.Info("shutdown requested")
			return nil
		}

		w.runJob(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *worldsync.Job) {
	log := w.log.With(zap.String("job_id", job.ID.String()), zap.String("archive", job.ArchivePath))
	log.Info("job started")

	err := w.process(ctx, job)
	if err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(job.StartedAt)))
	} else {
		log.Info("job finished", zap.Duration("elapsed", time.Since(job.StartedAt)))
	}

	if err := os.Remove(job.ArchivePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to delete archive", zap.Error(err))
	}
	removeSpoolDir(log, filepath.Dir(job.ArchivePath))
	w.status.Reset()
}

// Directory prefixes used when spooling archives for the worker.
const (
	UploadSpoolPrefix = "upload_"
	CLISpoolPrefix    = "cli_"
)

// removeSpoolDir deletes a spool directory once its last archive is gone.
// Directories still holding files are left alone.
func removeSpoolDir(log *zap.Logger, dir string) {
	name := filepath.Base(dir)
	if !strings.HasPrefix(name, UploadSpoolPrefix) && !strings.HasPrefix(name, CLISpoolPrefix) {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		log.Warn("failed to delete spool dir", zap.String("dir", dir), zap.Error(err))
	}
}

func (w *Worker) process(ctx context.Context, job *worldsync.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return w.processor.Process(ctx, job)
}
