package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/fieldlines/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Defaults used when a field is absent from the loaded file.
const (
	DefaultGradMagnitude = 1.8
	DefaultMaxIterations = 500
	DefaultMinLength     = 10.0
	DefaultMaxLength     = 50.0
	DefaultMinGradMag    = 0.0001
	DefaultMaxGradMag    = 5.0
)

// TuningConfig represents the field-line tuning parameters.
// Every field is optional; the Get* methods supply the defaults.
type TuningConfig struct {
	// Seed selection
	GradMagnitude *float64 `json:"grad_magnitude,omitempty"`

	// Integration
	MaxIterations *int     `json:"max_iterations,omitempty"`
	MinGradMag    *float64 `json:"min_grad_mag,omitempty"`
	MaxGradMag    *float64 `json:"max_grad_mag,omitempty"`

	// Length filter
	MinLength *float64 `json:"min_length,omitempty"`
	MaxLength *float64 `json:"max_length,omitempty"`

	// Execution
	Workers *int    `json:"workers,omitempty"` // 0 means GOMAXPROCS
	Timeout *string `json:"timeout,omitempty"` // duration string like "30s"; empty means none
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// with its default value.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		GradMagnitude: ptrFloat64(DefaultGradMagnitude),
		MaxIterations: ptrInt(DefaultMaxIterations),
		MinGradMag:    ptrFloat64(DefaultMinGradMag),
		MaxGradMag:    ptrFloat64(DefaultMaxGradMag),
		MinLength:     ptrFloat64(DefaultMinLength),
		MaxLength:     ptrFloat64(DefaultMaxLength),
		Workers:       ptrInt(0),
		Timeout:       ptrString(""),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	return LoadTuningConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadTuningConfigFS is LoadTuningConfig reading through fsys.
func LoadTuningConfigFS(fsys fsutil.FileSystem, path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	fsys := fsutil.OSFileSystem{}
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if !fsys.Exists(path) {
			continue
		}
		if cfg, err := LoadTuningConfigFS(fsys, path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GradMagnitude != nil && *c.GradMagnitude < 0 {
		return fmt.Errorf("grad_magnitude must be non-negative, got %f", *c.GradMagnitude)
	}

	if c.MaxIterations != nil && *c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", *c.MaxIterations)
	}

	if c.MinGradMag != nil && *c.MinGradMag < 0 {
		return fmt.Errorf("min_grad_mag must be non-negative, got %f", *c.MinGradMag)
	}
	if c.GetMinGradMag() > c.GetMaxGradMag() {
		return fmt.Errorf("min_grad_mag (%f) exceeds max_grad_mag (%f)", c.GetMinGradMag(), c.GetMaxGradMag())
	}

	if c.MinLength != nil && *c.MinLength < 0 {
		return fmt.Errorf("min_length must be non-negative, got %f", *c.MinLength)
	}
	if c.GetMinLength() > c.GetMaxLength() {
		return fmt.Errorf("min_length (%f) exceeds max_length (%f)", c.GetMinLength(), c.GetMaxLength())
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if c.Timeout != nil && *c.Timeout != "" {
		d, err := time.ParseDuration(*c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must be non-negative, got %s", *c.Timeout)
		}
	}

	return nil
}

// GetGradMagnitude returns the seed threshold or the default.
func (c *TuningConfig) GetGradMagnitude() float64 {
	if c.GradMagnitude == nil {
		return DefaultGradMagnitude
	}
	return *c.GradMagnitude
}

// GetMaxIterations returns the per-line iteration cap or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetMinGradMag returns the weak-gradient stop threshold or the default.
func (c *TuningConfig) GetMinGradMag() float64 {
	if c.MinGradMag == nil {
		return DefaultMinGradMag
	}
	return *c.MinGradMag
}

// GetMaxGradMag returns the strong-gradient stop threshold or the default.
func (c *TuningConfig) GetMaxGradMag() float64 {
	if c.MaxGradMag == nil {
		return DefaultMaxGradMag
	}
	return *c.MaxGradMag
}

// GetMinLength returns the shortest accepted arc length or the default.
func (c *TuningConfig) GetMinLength() float64 {
	if c.MinLength == nil {
		return DefaultMinLength
	}
	return *c.MinLength
}

// GetMaxLength returns the longest accepted arc length or the default.
func (c *TuningConfig) GetMaxLength() float64 {
	if c.MaxLength == nil {
		return DefaultMaxLength
	}
	return *c.MaxLength
}

// GetWorkers returns the worker count; 0 means use GOMAXPROCS.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetTimeout parses and returns the Timeout as a time.Duration.
// Zero means no deadline.
func (c *TuningConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}
