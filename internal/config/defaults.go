package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imaged/internal/common/fsutil"
)

// Busy policies.
const (
	PolicyBlock = "block"
	PolicyFail  = "fail"
)

// Device preferences.
const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

const (
	defaultAddr          = ":5000"
	defaultModelsDir     = "models"
	defaultIndexFile     = "models.index"
	defaultDType         = "float16"
	defaultMaxResolution = 2048
	defaultSteps         = 25
	defaultGuidance      = 7.5
	defaultSide          = 512
	defaultMaxWaitMS     = 30_000
	defaultLogLevel      = "info"
	translatorDirName    = "opus-mt-ru-en"
)

// Defaults returns a Config with every field set to its default.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = defaultModelsDir
	}
	if c.IndexFile == "" {
		c.IndexFile = defaultIndexFile
	}
	if c.Device == "" {
		c.Device = DeviceAuto
	}
	if c.DType == "" {
		c.DType = defaultDType
	}
	if len(c.Plugins) == 0 {
		c.Plugins = []string{"kandinsky22"}
	}
	if c.BusyPolicy == "" {
		c.BusyPolicy = PolicyBlock
	}
	if c.MaxWaitMS <= 0 {
		c.MaxWaitMS = defaultMaxWaitMS
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.MaxResolution <= 0 {
		c.MaxResolution = defaultMaxResolution
	}
	if c.DefaultSteps <= 0 {
		c.DefaultSteps = defaultSteps
	}
	if c.DefaultGuidance <= 0 {
		c.DefaultGuidance = defaultGuidance
	}
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = defaultSide
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = defaultSide
	}
}

// ApplyEnv overrides fields from IMAGED_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("IMAGED_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("IMAGED_MODELS_DIR"); v != "" {
		c.ModelsDir = v
	}
	if v := os.Getenv("IMAGED_DEVICE"); v != "" {
		c.Device = v
	}
	if v := os.Getenv("IMAGED_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks enumerated fields. Call after ApplyDefaults.
func (c *Config) Validate() error {
	switch c.BusyPolicy {
	case PolicyBlock, PolicyFail:
	default:
		return fmt.Errorf("invalid busy_policy %q (want block|fail)", c.BusyPolicy)
	}
	switch strings.ToLower(c.Device) {
	case DeviceAuto, DeviceCUDA, DeviceCPU:
	default:
		return fmt.Errorf("invalid device %q (want auto|cuda|cpu)", c.Device)
	}
	if c.DrainTimeoutMS < 0 {
		return fmt.Errorf("drain_timeout_ms must be >= 0")
	}
	return nil
}

// ResolveModelsDir expands '~' and makes the models directory absolute.
func (c *Config) ResolveModelsDir() (string, error) {
	p, err := fsutil.ExpandHome(c.ModelsDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}

// IndexPath returns the snapshot path, resolved against modelsDir when relative.
func (c *Config) IndexPath(modelsDir string) string {
	p, err := fsutil.ExpandHome(c.IndexFile)
	if err != nil || p == "" {
		p = defaultIndexFile
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(modelsDir, p)
}

// ResolveTranslatorDir returns the translator directory, defaulting to
// <modelsDir>/opus-mt-ru-en.
func (c *Config) ResolveTranslatorDir(modelsDir string) string {
	if c.TranslatorDir == "" {
		return filepath.Join(modelsDir, translatorDirName)
	}
	p, err := fsutil.ExpandHome(c.TranslatorDir)
	if err != nil {
		return c.TranslatorDir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(modelsDir, p)
}
