package worldsync

import (
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageMerging   Stage = "merging"
	StageLighting  Stage = "lighting"
	StageRendering Stage = "rendering"
)

// RenderProgress is the last progress line seen from the map renderer.
type RenderProgress struct {
	Map     string  `json:"map"`
	Percent float64 `json:"percent"`
	ETA     string  `json:"eta"`
}

// Job is the in-flight merge. Only the worker mutates it.
type Job struct {
	ID             uuid.UUID
	ArchivePath    string
	Stage          Stage
	TotalChunks    int
	CurrentChunk   int
	RenderProgress *RenderProgress
	StartedAt      time.Time
}

func (j *Job) clone() *Job {
	c := *j
	if j.RenderProgress != nil {
		p := *j.RenderProgress
		c.RenderProgress = &p
	}
	return &c
}

// Status is the read model served to API clients.
type Status struct {
	CurrentJobID    string          `json:"current_job_id,omitempty"`
	CurrentJobPath  *string         `json:"current_job_path"`
	Stage           *Stage          `json:"stage"`
	TotalChunks     *int            `json:"total_chunks"`
	CurrentChunk    *int            `json:"current_chunk"`
	RenderProgress  *RenderProgress `json:"render_progress"`
	PendingJobPaths []string        `json:"pending_job_paths"`
	QueueSize       int             `json:"queue_size"`
}
