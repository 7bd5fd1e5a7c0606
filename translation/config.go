package translation

import (
	"encoding/json"
	"os"

	"tlog.app/go/errors"
)

// Config controls how guest functions are translated and cached.
type Config struct {
	// Optimize runs the optimizer pipeline on the SSA form.
	// Default: true.
	Optimize bool `json:"optimize"`

	// EmitSynchronization inserts counter checks at function entry and
	// before backward branches so interrupts and halts are observed.
	// Default: true.
	EmitSynchronization bool `json:"emit_synchronization"`

	// TieredCompilation makes the translator compile functions without the
	// optimizer first and retranslate them with it once they were called
	// MinCallsForRejit times. When false every function is translated once,
	// optimized according to Optimize.
	// Default: true.
	TieredCompilation bool `json:"tiered_compilation"`

	// MaxInstructions bounds the number of guest instructions decoded into
	// one function. Default: 4096.
	MaxInstructions int `json:"max_instructions"`

	// CacheSets and CacheWays shape the translation cache.
	// Default: 1024 sets of 4 ways.
	CacheSets int `json:"cache_sets"`
	CacheWays int `json:"cache_ways"`

	// TraceIR dumps each stage of the IR to the log.
	// Default: false.
	TraceIR bool `json:"trace_ir"`
}

// DefaultConfig returns the default translation settings.
func DefaultConfig() *Config {
	return &Config{
		Optimize:            true,
		EmitSynchronization: true,
		TieredCompilation:   true,
		MaxInstructions:     4096,
		CacheSets:           1024,
		CacheWays:           4,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read translation config")
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "parse translation config")
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "serialize translation config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write translation config")
	}

	return nil
}

// Validate checks that the sizes are usable.
func (c *Config) Validate() error {
	if c.MaxInstructions <= 0 {
		return errors.New("max_instructions must be > 0")
	}
	if c.CacheSets <= 0 {
		return errors.New("cache_sets must be > 0")
	}
	if c.CacheWays <= 0 {
		return errors.New("cache_ways must be > 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
