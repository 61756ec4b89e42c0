// Package config loads persisted application settings. Settings live in
// a YAML file under the user config directory; the PHOTOGRAPH_PREVIEW_BACKEND
// environment variable overrides the configured backend at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/encode"
)

// AppConfig holds persisted settings. Zero values mean "use the default".
type AppConfig struct {
	// PreviewBackend selects the render backend: auto, gpu or cpu.
	PreviewBackend string `yaml:"preview_backend,omitempty"`

	// BrowsePath is the directory opened on startup.
	BrowsePath string `yaml:"browse_path,omitempty"`

	// Export defaults.
	ExportDir     string `yaml:"export_dir,omitempty"`
	ExportFormat  string `yaml:"export_format,omitempty"`
	ExportQuality int    `yaml:"export_quality,omitempty"`
	ExportWorkers int    `yaml:"export_workers,omitempty"`

	// PreviewCacheSize caps the in-memory preview cache entry count.
	PreviewCacheSize int `yaml:"preview_cache_size,omitempty"`
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: no user config dir: %w", err)
	}
	return filepath.Join(dir, "photograph", "config.yaml"), nil
}

// Load reads the config file. A missing file yields the zero config; a
// malformed file is an error so typos do not silently reset settings.
func Load() (AppConfig, error) {
	p, err := Path()
	if err != nil {
		return AppConfig{}, nil
	}
	return LoadFrom(p)
}

// LoadFrom reads a config file at an explicit path.
func LoadFrom(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config, creating the directory as needed.
func (c *AppConfig) Save() error {
	p, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(p)
}

// SaveTo writes the config to an explicit path.
func (c *AppConfig) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", filepath.Dir(path), err)
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Mode resolves the effective backend mode: the environment override
// wins over the configured value, which wins over auto.
func (c *AppConfig) Mode() backend.Mode {
	configured, err := backend.ParseMode(c.PreviewBackend)
	if err != nil {
		configured = backend.ModeAuto
	}
	return backend.ModeFromEnv(configured)
}

// Format resolves the export format, defaulting to JPEG.
func (c *AppConfig) Format() encode.Format {
	f, err := encode.ParseFormat(c.ExportFormat)
	if err != nil {
		return encode.FormatJPEG
	}
	return f
}
