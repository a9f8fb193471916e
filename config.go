package worldsync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type Config struct {
	WorldPath string `hcl:"world_path,optional"`
	LockFile  string `hcl:"lock_file,optional"`
	UploadDir string `hcl:"upload_dir,optional"`

	Console  *ConsoleConfigBlock  `hcl:"console,block"`
	Mapping  *MappingConfigBlock  `hcl:"mapping,block"`
	Merge    *MergeConfigBlock    `hcl:"merge,block"`
	Lighting *LightingConfigBlock `hcl:"lighting,block"`
	Renderer *RendererConfigBlock `hcl:"renderer,block"`
	HTTP     *HTTPConfigBlock     `hcl:"http,block"`
	Logging  *LoggingConfigBlock  `hcl:"logging,block"`
}

type ConsoleConfigBlock struct {
	Address        string `hcl:"address,optional"`
	Password       string `hcl:"password,optional"`
	TimeoutSeconds int    `hcl:"timeout_seconds,optional"`
}

func (c *ConsoleConfigBlock) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MappingConfigBlock holds the verbatim console commands controlling the
// in-server mapping plugin.
type MappingConfigBlock struct {
	StopCommand   string `hcl:"stop_command,optional"`
	StartCommand  string `hcl:"start_command,optional"`
	ReloadCommand string `hcl:"reload_command,optional"`
}

type MergeConfigBlock struct {
	DimensionAliasFrom string `hcl:"dimension_alias_from,optional"`
	DimensionAliasTo   string `hcl:"dimension_alias_to,optional"`
}

type LightingConfigBlock struct {
	Command string            `hcl:"command,optional"`
	Radius  int               `hcl:"radius,optional"`
	Worlds  map[string]string `hcl:"worlds,optional"`
}

type RendererConfigBlock struct {
	Command            []string `hcl:"command,optional"`
	ConfigDir          string   `hcl:"config_dir,optional"`
	Version            string   `hcl:"version,optional"`
	ModsDir            string   `hcl:"mods_dir,optional"`
	Maps               []string `hcl:"maps,optional"`
	ProgressPattern    string   `hcl:"progress_pattern,optional"`
	CompletionPhrase   string   `hcl:"completion_phrase,optional"`
	StopTimeoutSeconds int      `hcl:"stop_timeout_seconds,optional"`
	DownloadURL        string   `hcl:"download_url,optional"`
	DownloadSHA1       string   `hcl:"download_sha1,optional"`
}

func (r *RendererConfigBlock) StopTimeout() time.Duration {
	return time.Duration(r.StopTimeoutSeconds) * time.Second
}

// JarPath returns the jar passed with -jar in the renderer command, if any.
func (r *RendererConfigBlock) JarPath() string {
	for i, arg := range r.Command {
		if arg == "-jar" && i+1 < len(r.Command) {
			return r.Command[i+1]
		}
	}
	return ""
}

type HTTPConfigBlock struct {
	Listen string `hcl:"listen,optional"`
}

type LoggingConfigBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"` // "json" or "console"
}

// DefaultProgressPattern matches renderer lines like
// "[INFO] world: 45.20% (ETA: 3m 12s)".
const DefaultProgressPattern = `(?P<map>[\w\-]+):\s*(?P<percent>\d{1,3}(?:\.\d+)?)%\s*\(ETA:\s*(?P<eta>[^)]*)\)`

const DefaultCompletionPhrase = "Your maps are now all up-to-date"

var envFunction = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"env": envFunction,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.DecodeFile(path, evalCtx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field. Missing blocks are allocated.
func (c *Config) ApplyDefaults() {
	if c.WorldPath == "" {
		c.WorldPath = "local_world"
	}
	if c.LockFile == "" {
		c.LockFile = ".worldsync.lock"
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(os.TempDir(), "worldsync-uploads")
	}

	if c.Console == nil {
		c.Console = &ConsoleConfigBlock{}
	}
	if c.Console.Address == "" {
		c.Console.Address = "127.0.0.1:25575"
	}
	if c.Console.TimeoutSeconds == 0 {
		c.Console.TimeoutSeconds = 10
	}

	if c.Mapping == nil {
		c.Mapping = &MappingConfigBlock{}
	}
	if c.Mapping.StopCommand == "" {
		c.Mapping.StopCommand = "bluemap stop"
	}
	if c.Mapping.StartCommand == "" {
		c.Mapping.StartCommand = "bluemap start"
	}
	if c.Mapping.ReloadCommand == "" {
		c.Mapping.ReloadCommand = "bluemap reload"
	}

	if c.Merge == nil {
		c.Merge = &MergeConfigBlock{}
	}
	if c.Merge.DimensionAliasFrom == "" && c.Merge.DimensionAliasTo == "" {
		c.Merge.DimensionAliasFrom = "minecraft:ultra_space"
		c.Merge.DimensionAliasTo = DimensionUltraSpace
	}

	if c.Lighting == nil {
		c.Lighting = &LightingConfigBlock{}
	}
	if c.Lighting.Command == "" {
		c.Lighting.Command = "lightfix"
	}
	if c.Lighting.Radius == 0 {
		c.Lighting.Radius = 1
	}
	if c.Lighting.Worlds == nil {
		c.Lighting.Worlds = map[string]string{
			DimensionOverworld:  "world",
			DimensionNether:     "world/DIM-1",
			DimensionEnd:        "world/DIM1",
			DimensionUltraSpace: "world/dimensions/pixelmon/ultra_space",
		}
	}

	if c.Renderer == nil {
		c.Renderer = &RendererConfigBlock{}
	}
	if len(c.Renderer.Command) == 0 {
		c.Renderer.Command = []string{"java", "-jar", "bluemap-cli.jar"}
	}
	if c.Renderer.ConfigDir == "" {
		c.Renderer.ConfigDir = "bluemap"
	}
	if c.Renderer.ModsDir == "" {
		c.Renderer.ModsDir = "mods"
	}
	if len(c.Renderer.Maps) == 0 {
		c.Renderer.Maps = []string{"world"}
	}
	if c.Renderer.ProgressPattern == "" {
		c.Renderer.ProgressPattern = DefaultProgressPattern
	}
	if c.Renderer.CompletionPhrase == "" {
		c.Renderer.CompletionPhrase = DefaultCompletionPhrase
	}
	if c.Renderer.StopTimeoutSeconds == 0 {
		c.Renderer.StopTimeoutSeconds = 10
	}

	if c.HTTP == nil {
		c.HTTP = &HTTPConfigBlock{}
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = "0.0.0.0:5001"
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfigBlock{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// LockPath is the lock file location. Relative names live inside the world
// directory so every tool touching the world sees the same file.
func (c *Config) LockPath() string {
	if filepath.IsAbs(c.LockFile) {
		return c.LockFile
	}
	return filepath.Join(c.WorldPath, c.LockFile)
}
