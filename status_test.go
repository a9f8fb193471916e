package worldsync_test

import (
	"encoding/json"
	"testing"

	"github.com/b1naryth1ef/worldsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIdle(t *testing.T) {
	status := worldsync.NewStatusTracker().Snapshot([]string{"a.zip", "b.zip"})

	assert.Nil(t, status.CurrentJobPath)
	assert.Nil(t, status.Stage)
	assert.Nil(t, status.TotalChunks)
	assert.Nil(t, status.RenderProgress)
	assert.Equal(t, []string{"a.zip", "b.zip"}, status.PendingJobPaths)
	assert.Equal(t, 2, status.QueueSize)
}

func TestStatusStagesAreExclusive(t *testing.T) {
	tracker := worldsync.NewStatusTracker()
	job := tracker.Begin("upload.zip")
	assert.Equal(t, worldsync.StageMerging, job.Stage)

	tracker.SetTotalChunks(10)
	tracker.SetCurrentChunk(4)
	tracker.SetRenderProgress(worldsync.RenderProgress{Map: "world", Percent: 5})

	status := tracker.Snapshot(nil)
	require.NotNil(t, status.Stage)
	assert.Equal(t, worldsync.StageMerging, *status.Stage)
	assert.Equal(t, 10, *status.TotalChunks)
	assert.Equal(t, 4, *status.CurrentChunk)
	assert.Nil(t, status.RenderProgress)

	tracker.SetStage(worldsync.StageLighting)
	status = tracker.Snapshot(nil)
	assert.Nil(t, status.TotalChunks)
	assert.Nil(t, status.CurrentChunk)
	assert.Nil(t, status.RenderProgress)

	tracker.SetStage(worldsync.StageRendering)
	tracker.SetCurrentChunk(9)
	tracker.SetRenderProgress(worldsync.RenderProgress{Map: "world", Percent: 55, ETA: "10s"})
	status = tracker.Snapshot(nil)
	assert.Nil(t, status.TotalChunks)
	assert.Nil(t, status.CurrentChunk)
	require.NotNil(t, status.RenderProgress)
	assert.Equal(t, 55.0, status.RenderProgress.Percent)
	assert.Equal(t, "upload.zip", *status.CurrentJobPath)
	assert.Equal(t, job.ID.String(), status.CurrentJobID)
}

func TestStatusCurrentChunkNeverDecreases(t *testing.T) {
	tracker := worldsync.NewStatusTracker()
	tracker.Begin("upload.zip")

	tracker.SetCurrentChunk(5)
	tracker.SetCurrentChunk(3)
	assert.Equal(t, 5, tracker.Current().CurrentChunk)

	tracker.Reset()
	assert.Nil(t, tracker.Current())

	tracker.Begin("next.zip")
	assert.Equal(t, 0, tracker.Current().CurrentChunk)
}

func TestStatusSnapshotIsACopy(t *testing.T) {
	tracker := worldsync.NewStatusTracker()
	tracker.Begin("upload.zip")
	tracker.SetStage(worldsync.StageRendering)
	tracker.SetRenderProgress(worldsync.RenderProgress{Map: "world", Percent: 10})

	status := tracker.Snapshot(nil)
	status.RenderProgress.Percent = 99

	job := tracker.Current()
	assert.Equal(t, 10.0, job.RenderProgress.Percent)
}

func TestStatusJSON(t *testing.T) {
	tracker := worldsync.NewStatusTracker()
	tracker.Begin("upload.zip")
	tracker.SetTotalChunks(3)

	data, err := json.Marshal(tracker.Snapshot([]string{"next.zip"}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "upload.zip", decoded["current_job_path"])
	assert.Equal(t, "merging", decoded["stage"])
	assert.Equal(t, 3.0, decoded["total_chunks"])
	assert.Equal(t, 0.0, decoded["current_chunk"])
	assert.Nil(t, decoded["render_progress"])
	assert.Equal(t, []any{"next.zip"}, decoded["pending_job_paths"])
	assert.Equal(t, 1.0, decoded["queue_size"])
}
