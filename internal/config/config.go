package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/uganh16/lua51vm/internal/loader"
	"github.com/uganh16/lua51vm/internal/state"
	"gopkg.in/yaml.v3"
)

type Config struct {
	VM     VM     `toml:"vm" yaml:"vm"`
	Loader Loader `toml:"loader" yaml:"loader"`
	Log    Log    `toml:"log" yaml:"log"`
	Debug  Debug  `toml:"debug" yaml:"debug"`
}

type VM struct {
	MaxCallDepth int `toml:"max_call_depth" yaml:"max_call_depth"`
	JITThreshold int `toml:"jit_threshold" yaml:"jit_threshold"`
}

type Loader struct {
	Path  string `toml:"path" yaml:"path"`
	Cache string `toml:"cache" yaml:"cache"` /* SQLite file; empty disables the cache */
	Async bool   `toml:"async" yaml:"async"`
}

type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	File      string `toml:"file" yaml:"file"`
}

type Debug struct {
	Breakpoints []string `toml:"breakpoints" yaml:"breakpoints"` /* "chunk:line" */
}

func Default() *Config {
	return &Config{
		VM: VM{
			MaxCallDepth: state.DEFAULT_MAX_CALL_DEPTH,
			JITThreshold: state.DEFAULT_COMPILE_THRESHOLD,
		},
		Loader: Loader{
			Path:  loader.DEFAULT_PATH,
			Async: true,
		},
	}
}

/**
 * Load reads a configuration file over the defaults. The format follows the
 * extension: .toml, or .yaml/.yml.
 */
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unknown configuration format %q", path, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.VM.MaxCallDepth <= 0 {
		return fmt.Errorf("vm.max_call_depth must be positive, got %d", c.VM.MaxCallDepth)
	}
	if c.VM.JITThreshold < 0 {
		return fmt.Errorf("vm.jit_threshold must not be negative, got %d", c.VM.JITThreshold)
	}
	for _, bp := range c.Debug.Breakpoints {
		if i := strings.LastIndexByte(bp, ':'); i <= 0 || i == len(bp)-1 {
			return fmt.Errorf("bad breakpoint %q, want chunk:line", bp)
		}
	}
	return nil
}

/* VMOptions maps the vm section onto state options */
func (c *Config) VMOptions() state.Options {
	return state.Options{
		MaxCallDepth:     c.VM.MaxCallDepth,
		CompileThreshold: c.VM.JITThreshold,
	}
}
