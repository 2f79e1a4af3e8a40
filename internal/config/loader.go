package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// IndexFile is the snapshot path; relative paths are resolved against ModelsDir.
	IndexFile string `json:"index_file" yaml:"index_file" toml:"index_file"`

	// Device placement: auto (prefer accelerator), cuda or cpu.
	Device      string `json:"device" yaml:"device" toml:"device"`
	ForceCPU    bool   `json:"force_cpu" yaml:"force_cpu" toml:"force_cpu"`
	DType       string `json:"dtype" yaml:"dtype" toml:"dtype"`
	UseXformers bool   `json:"use_xformers" yaml:"use_xformers" toml:"use_xformers"`

	// Plugins lists directory-bundle loaders in dispatch order.
	Plugins       []string `json:"plugins" yaml:"plugins" toml:"plugins"`
	TranslatorDir string   `json:"translator_dir" yaml:"translator_dir" toml:"translator_dir"`

	// BusyPolicy decides what a load does while another transition runs: block or fail.
	BusyPolicy     string `json:"busy_policy" yaml:"busy_policy" toml:"busy_policy"`
	DrainTimeoutMS int    `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`
	MaxWaitMS      int    `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`

	SkipInitialScan bool `json:"skip_initial_scan" yaml:"skip_initial_scan" toml:"skip_initial_scan"`
	Watch           bool `json:"watch" yaml:"watch" toml:"watch"`

	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile     string   `json:"log_file" yaml:"log_file" toml:"log_file"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	// Generation defaults and limits.
	MaxResolution   int     `json:"max_resolution" yaml:"max_resolution" toml:"max_resolution"`
	DefaultSteps    int     `json:"default_steps" yaml:"default_steps" toml:"default_steps"`
	DefaultGuidance float64 `json:"default_guidance" yaml:"default_guidance" toml:"default_guidance"`
	DefaultWidth    int     `json:"default_width" yaml:"default_width" toml:"default_width"`
	DefaultHeight   int     `json:"default_height" yaml:"default_height" toml:"default_height"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
