package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"articulate/internal/meshrepair"
	"articulate/internal/pipeline"
)

// Config is the batch run configuration, settable from flags or a config
// file (YAML or JSON).
type Config struct {
	// Workers bounds the pool; zero means NumCPU.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// DegreeLimits marks revolute limits in the descriptions as degrees.
	DegreeLimits bool `json:"degree_limits,omitempty" yaml:"degree_limits,omitempty"`

	// ToMJCF and ToScene are the external converter command lines.
	ToMJCF  []string `json:"to_mjcf,omitempty" yaml:"to_mjcf,omitempty"`
	ToScene []string `json:"to_scene,omitempty" yaml:"to_scene,omitempty"`

	// ConverterTimeout is a duration string ("90s", "2m"); empty means the
	// pipeline default.
	ConverterTimeout string `json:"converter_timeout,omitempty" yaml:"converter_timeout,omitempty"`

	// Repair overrides the mesh repair thresholds; zero fields keep defaults.
	Repair meshrepair.Config `json:"repair,omitempty" yaml:"repair,omitempty"`

	timeout time.Duration
}

// LoadConfig reads a config file, detecting YAML vs JSON by extension or
// content.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch config: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".json" || strings.HasPrefix(strings.TrimSpace(string(data)), "{"):
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse batch config: %w", err)
	}

	if cfg.ConverterTimeout != "" {
		d, err := time.ParseDuration(cfg.ConverterTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse converter_timeout: %w", err)
		}
		cfg.timeout = d
	}
	return &cfg, nil
}

// SetTimeout overrides the converter timeout (flag takes precedence over the
// config file).
func (c *Config) SetTimeout(d time.Duration) { c.timeout = d }

// PipelineOptions maps the batch config onto per-object pipeline options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Repair:           c.Repair,
		DegreeLimits:     c.DegreeLimits,
		ToMJCF:           c.ToMJCF,
		ToScene:          c.ToScene,
		ConverterTimeout: c.timeout,
	}
}
