package worldsync_test

import (
	"testing"

	"github.com/b1naryth1ef/worldsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderArgs(t *testing.T) {
	supervisor, err := worldsync.NewRenderSupervisor(&worldsync.RendererConfigBlock{
		Command:          []string{"java", "-jar", "bluemap-cli.jar"},
		ConfigDir:        "bluemap",
		Version:          "1.20.1",
		ModsDir:          "mods",
		Maps:             []string{"world", "world_the_nether"},
		ProgressPattern:  worldsync.DefaultProgressPattern,
		CompletionPhrase: worldsync.DefaultCompletionPhrase,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-jar", "bluemap-cli.jar",
		"-c", "bluemap",
		"-v", "1.20.1",
		"-n", "mods",
		"-m", "world,world_the_nether",
		"-w", "-r",
	}, supervisor.Args())
}

func TestParseProgress(t *testing.T) {
	supervisor, err := worldsync.NewRenderSupervisor(&worldsync.RendererConfigBlock{
		Command:         []string{"renderer"},
		ProgressPattern: worldsync.DefaultProgressPattern,
	}, zap.NewNop())
	require.NoError(t, err)

	cases := []struct {
		line     string
		ok       bool
		expected worldsync.RenderProgress
	}{
		{"[INFO] world: 45.20% (ETA: 3m 12s)", true, worldsync.RenderProgress{Map: "world", Percent: 45.2, ETA: "3m 12s"}},
		{"world_the_end: 100% (ETA: 0s)", true, worldsync.RenderProgress{Map: "world_the_end", Percent: 100, ETA: "0s"}},
		{"[INFO] Loading resources", false, worldsync.RenderProgress{}},
		{"world: 450% (ETA: 1s)", false, worldsync.RenderProgress{}},
	}

	for _, tc := range cases {
		progress, ok := supervisor.ParseProgress(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.Equal(t, tc.expected, progress, tc.line)
	}
}

func TestRenderRejectsPatternWithoutGroups(t *testing.T) {
	_, err := worldsync.NewRenderSupervisor(&worldsync.RendererConfigBlock{
		Command:         []string{"renderer"},
		ProgressPattern: `(\d+)%`,
	}, zap.NewNop())
	assert.Error(t, err)
}
