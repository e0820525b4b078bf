// Package config loads gridfill's JSON or YAML configuration.
//
// Every field is optional. Fields omitted from the file stay nil and the
// Get* accessors return the built-in default, so partial configs are safe.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/gridfill/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/gridfill.defaults.json"

// Built-in defaults, mirrored by DefaultConfigPath.
const (
	DefaultMissingToken     = "nan"
	DefaultPrecision        = -1
	DefaultOutputSuffix     = "_interpolated"
	DefaultPlotWidthInches  = 8.0
	DefaultPlotHeightInches = 6.0
	DefaultChartTheme       = "dark"
	DefaultHistoryLimit     = 20
)

// maxFileSize bounds the config file read.
const maxFileSize = 1 * 1024 * 1024

// Config holds the tunable parameters of a gridfill run.
type Config struct {
	// Input and output format
	MissingToken *string `json:"missing_token,omitempty" yaml:"missing_token,omitempty"`
	Precision    *int    `json:"precision,omitempty" yaml:"precision,omitempty"` // -1 = shortest exact
	OutputSuffix *string `json:"output_suffix,omitempty" yaml:"output_suffix,omitempty"`

	// Rendering
	PlotWidthInches  *float64 `json:"plot_width_inches,omitempty" yaml:"plot_width_inches,omitempty"`
	PlotHeightInches *float64 `json:"plot_height_inches,omitempty" yaml:"plot_height_inches,omitempty"`
	ChartTheme       *string  `json:"chart_theme,omitempty" yaml:"chart_theme,omitempty"`

	// Run history
	HistoryLimit *int `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with all fields set to nil.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		MissingToken:     ptrString(DefaultMissingToken),
		Precision:        ptrInt(DefaultPrecision),
		OutputSuffix:     ptrString(DefaultOutputSuffix),
		PlotWidthInches:  ptrFloat64(DefaultPlotWidthInches),
		PlotHeightInches: ptrFloat64(DefaultPlotHeightInches),
		ChartTheme:       ptrString(DefaultChartTheme),
		HistoryLimit:     ptrInt(DefaultHistoryLimit),
	}
}

// LoadConfig loads a Config from a JSON (.json) or YAML (.yaml, .yml) file
// on the local filesystem. The file must be under 1MB.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadConfigFS is LoadConfig reading through fsys.
func LoadConfigFS(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.MissingToken != nil {
		tok := *c.MissingToken
		if tok == "" {
			return fmt.Errorf("missing_token must not be empty")
		}
		if tok != strings.TrimSpace(tok) || strings.ContainsAny(tok, ",\"\r\n") {
			return fmt.Errorf("missing_token %q must not contain whitespace padding, commas, quotes or newlines", tok)
		}
	}

	if c.Precision != nil && (*c.Precision < -1 || *c.Precision > 17) {
		return fmt.Errorf("precision must be between -1 and 17, got %d", *c.Precision)
	}

	if c.OutputSuffix != nil && strings.ContainsAny(*c.OutputSuffix, `/\`) {
		return fmt.Errorf("output_suffix must not contain path separators, got %q", *c.OutputSuffix)
	}

	if c.PlotWidthInches != nil && *c.PlotWidthInches <= 0 {
		return fmt.Errorf("plot_width_inches must be positive, got %f", *c.PlotWidthInches)
	}
	if c.PlotHeightInches != nil && *c.PlotHeightInches <= 0 {
		return fmt.Errorf("plot_height_inches must be positive, got %f", *c.PlotHeightInches)
	}

	if c.ChartTheme != nil {
		theme := *c.ChartTheme
		if theme != "light" && theme != "dark" && !types.PresetTheme(theme) {
			return fmt.Errorf("chart_theme %q is not a known echarts theme", theme)
		}
	}

	if c.HistoryLimit != nil && *c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", *c.HistoryLimit)
	}

	return nil
}

// GetMissingToken returns the missing_token value or the default.
func (c *Config) GetMissingToken() string {
	if c.MissingToken == nil {
		return DefaultMissingToken
	}
	return *c.MissingToken
}

// GetPrecision returns the precision value or the default.
func (c *Config) GetPrecision() int {
	if c.Precision == nil {
		return DefaultPrecision
	}
	return *c.Precision
}

// GetOutputSuffix returns the output_suffix value or the default.
func (c *Config) GetOutputSuffix() string {
	if c.OutputSuffix == nil {
		return DefaultOutputSuffix
	}
	return *c.OutputSuffix
}

// GetPlotWidthInches returns the plot_width_inches value or the default.
func (c *Config) GetPlotWidthInches() float64 {
	if c.PlotWidthInches == nil {
		return DefaultPlotWidthInches
	}
	return *c.PlotWidthInches
}

// GetPlotHeightInches returns the plot_height_inches value or the default.
func (c *Config) GetPlotHeightInches() float64 {
	if c.PlotHeightInches == nil {
		return DefaultPlotHeightInches
	}
	return *c.PlotHeightInches
}

// GetChartTheme returns the chart_theme value or the default.
func (c *Config) GetChartTheme() string {
	if c.ChartTheme == nil {
		return DefaultChartTheme
	}
	return *c.ChartTheme
}

// GetHistoryLimit returns the history_limit value or the default.
func (c *Config) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.HistoryLimit
}
