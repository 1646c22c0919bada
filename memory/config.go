package memory

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage backend selectors.
const (
	// StoragePersistent is the append-only file-backed store.
	StoragePersistent = "persistent"
	// StorageTransient is the process-lifetime in-memory store.
	StorageTransient = "transient"
	// StorageIndexed is the in-memory store with a chromem-go
	// similarity index for candidate ranking.
	StorageIndexed = "indexed"
)

// Decay reference points. "created" decays from record creation; "accessed"
// decays from the last retrieval hit, so recalled memories stay fresh.
const (
	FadeFromCreation = "created"
	FadeFromAccess   = "accessed"
)

// Config holds the engine configuration. It is read once at construction and
// immutable thereafter, so independently configured engines can coexist in
// one process.
type Config struct {
	// Enabled toggles the memory system. When false, Remember and Recall
	// are no-ops.
	Enabled bool `yaml:"enabled"`

	// StorageType selects the backend: "persistent", "transient" or
	// "indexed".
	StorageType string `yaml:"storage_type"`

	// Path is the log file for the persistent backend.
	Path string `yaml:"path,omitempty"`

	// SimilarityThreshold is the minimum decayed score [0,100] for a
	// record to be eligible for recall.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxContextWindow caps the number of records returned per query.
	MaxContextWindow int `yaml:"max_context_window"`

	// DecayRate is the per-second relevance falloff. 0 disables decay.
	DecayRate float64 `yaml:"decay_rate"`

	// FadeMode selects the decay reference point: "created" (default)
	// or "accessed".
	FadeMode string `yaml:"fade_mode,omitempty"`
}

// DefaultConfig returns the stock configuration: persistent storage,
// threshold 40, a five-record window and a gentle 0.0001/s decay.
func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		StorageType:         StoragePersistent,
		Path:                "interaction_history.jsonl",
		SimilarityThreshold: 40,
		MaxContextWindow:    5,
		DecayRate:           0.0001,
		FadeMode:            FadeFromCreation,
	}
}

// LoadConfig reads and validates a Config from a YAML file. Unknown keys
// are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, &ConfigError{Field: path, Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field. Out-of-range or unknown values fail with
// *ConfigError rather than being clamped.
func (c *Config) Validate() error {
	switch c.StorageType {
	case StoragePersistent:
		if c.Path == "" {
			return &ConfigError{Field: "path", Reason: "required for persistent storage"}
		}
	case StorageTransient, StorageIndexed:
	default:
		return &ConfigError{Field: "storage_type", Reason: fmt.Sprintf("unknown value %q", c.StorageType)}
	}

	if !(c.SimilarityThreshold >= 0 && c.SimilarityThreshold <= 100) {
		return &ConfigError{Field: "similarity_threshold", Reason: fmt.Sprintf("%v outside [0,100]", c.SimilarityThreshold)}
	}
	if c.MaxContextWindow < 1 {
		return &ConfigError{Field: "max_context_window", Reason: fmt.Sprintf("%d is not positive", c.MaxContextWindow)}
	}
	if !(c.DecayRate >= 0) || math.IsInf(c.DecayRate, 1) {
		return &ConfigError{Field: "decay_rate", Reason: fmt.Sprintf("%v is not a non-negative finite number", c.DecayRate)}
	}

	switch c.FadeMode {
	case "", FadeFromCreation, FadeFromAccess:
	default:
		return &ConfigError{Field: "fade_mode", Reason: fmt.Sprintf("unknown value %q", c.FadeMode)}
	}

	return nil
}
