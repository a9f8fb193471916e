package worldsync

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusTracker holds the current job. Writers are the worker goroutine only;
// readers get copies.
type StatusTracker struct {
	sync.Mutex

	job *Job
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// Begin starts tracking a new job in the merging stage.
func (t *StatusTracker) Begin(archivePath string) *Job {
	t.Lock()
	defer t.Unlock()

	t.job = &Job{
		ID:          uuid.New(),
		ArchivePath: archivePath,
		Stage:       StageMerging,
		StartedAt:   time.Now(),
	}
	return t.job.clone()
}

func (t *StatusTracker) SetStage(stage Stage) {
	t.Lock()
	defer t.Unlock()

	if t.job == nil {
		return
	}
	t.job.Stage = stage
	if stage != StageRendering {
		t.job.RenderProgress = nil
	}
}

func (t *StatusTracker) SetTotalChunks(total int) {
	t.Lock()
	defer t.Unlock()

	if t.job == nil {
		return
	}
	t.job.TotalChunks = total
}

// SetCurrentChunk records merge progress. Values lower than the current one
// are ignored.
func (t *StatusTracker) SetCurrentChunk(current int) {
	t.Lock()
	defer t.Unlock()

	if t.job == nil || current < t.job.CurrentChunk {
		return
	}
	t.job.CurrentChunk = current
}

func (t *StatusTracker) SetRenderProgress(progress RenderProgress) {
	t.Lock()
	defer t.Unlock()

	if t.job == nil || t.job.Stage != StageRendering {
		return
	}
	t.job.RenderProgress = &progress
}

// Reset forgets the current job.
func (t *StatusTracker) Reset() {
	t.Lock()
	defer t.Unlock()
	t.job = nil
}

// Current returns a copy of the current job, or nil when idle.
func (t *StatusTracker) Current() *Job {
	t.Lock()
	defer t.Unlock()

	if t.job == nil {
		return nil
	}
	return t.job.clone()
}

// Snapshot builds the read model. Chunk counters are only reported while
// merging and render progress only while rendering.
func (t *StatusTracker) Snapshot(pending []string) Status {
	status := Status{
		PendingJobPaths: append([]string{}, pending...),
		QueueSize:       len(pending),
	}

	job := t.Current()
	if job == nil {
		return status
	}

	path := job.ArchivePath
	stage := job.Stage
	status.CurrentJobID = job.ID.String()
	status.CurrentJobPath = &path
	status.Stage = &stage

	switch job.Stage {
	case StageMerging:
		total, current := job.TotalChunks, job.CurrentChunk
		status.TotalChunks = &total
		status.CurrentChunk = &current
	case StageRendering:
		status.RenderProgress = job.RenderProgress
	}
	return status
}
