//go:build unix

package worldsync_test

import (
	"os/exec"
	"syscall"
	"testing"

	"github.com/b1naryth1ef/worldsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newScriptSupervisor(t *testing.T, script string) *worldsync.RenderSupervisor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	cfg := &worldsync.Config{
		Renderer: &worldsync.RendererConfigBlock{
			Command:            []string{"sh", "-c", script, "renderer"},
			StopTimeoutSeconds: 1,
		},
	}
	cfg.ApplyDefaults()

	supervisor, err := worldsync.NewRenderSupervisor(cfg.Renderer, zaptest.NewLogger(t))
	require.NoError(t, err)
	return supervisor
}

func assertNotRunning(t *testing.T, pid int) {
	t.Helper()
	assert.Error(t, syscall.Kill(pid, 0), "renderer process %d still running", pid)
}

func TestRenderStopsAtCompletionPhrase(t *testing.T) {
	supervisor := newScriptSupervisor(t, `
echo "[INFO] Loading maps"
echo "[INFO] world: 10.00% (ETA: 2m 5s)"
echo "[INFO] world: 55.00% (ETA: 10s)"
echo "[INFO] Your maps are now all up-to-date, watching for changes"
exec sleep 30
`)

	var seen []worldsync.RenderProgress
	result, err := supervisor.Run(func(p worldsync.RenderProgress) {
		seen = append(seen, p)
	})
	require.NoError(t, err)

	assert.True(t, result.Completed)
	require.NotNil(t, result.Progress)
	assert.Equal(t, worldsync.RenderProgress{Map: "world", Percent: 55, ETA: "10s"}, *result.Progress)
	require.Len(t, seen, 2)
	assert.Equal(t, 10.0, seen[0].Percent)
	assertNotRunning(t, result.PID)
}

func TestRenderKillsProcessIgnoringStop(t *testing.T) {
	supervisor := newScriptSupervisor(t, `
trap '' TERM
echo "Your maps are now all up-to-date"
while true; do sleep 1; done
`)

	result, err := supervisor.Run(nil)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assertNotRunning(t, result.PID)
}

func TestRenderReportsEarlyExit(t *testing.T) {
	supervisor := newScriptSupervisor(t, `
echo "world: 12.5% (ETA: 1h)"
exit 3
`)

	result, err := supervisor.Run(nil)
	require.Error(t, err)
	assert.False(t, result.Completed)
	require.NotNil(t, result.Progress)
	assert.Equal(t, 12.5, result.Progress.Percent)
	assertNotRunning(t, result.PID)
}

func TestRenderOutputEndsCleanly(t *testing.T) {
	supervisor := newScriptSupervisor(t, `echo "nothing to render"`)

	result, err := supervisor.Run(nil)
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Nil(t, result.Progress)
}

func TestRenderStartFailure(t *testing.T) {
	cfg := &worldsync.Config{
		Renderer: &worldsync.RendererConfigBlock{Command: []string{"/nonexistent/renderer"}},
	}
	cfg.ApplyDefaults()

	supervisor, err := worldsync.NewRenderSupervisor(cfg.Renderer, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = supervisor.Run(nil)
	assert.Error(t, err)
}
