// Package config defines the TOML-decodable settings shared by the
// pipeline components.
package config

import (
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
)

// Config carries the tunable settings for the client, store, checker,
// and resolver. Zero values mean "use the component default".
type Config struct {
	// IndexURL is the package index base URL.
	IndexURL string `toml:"index_url"`

	// Timeout bounds each index request.
	Timeout duration `toml:"timeout"`

	// MaxRetries bounds retry attempts per request.
	MaxRetries int `toml:"max_retries"`

	// ConcurrentLimit bounds simultaneous index requests.
	ConcurrentLimit int `toml:"concurrent_limit"`

	// MaxIterations caps the conflict-resolution loop.
	MaxIterations int `toml:"max_iterations"`

	// AllowPrereleases includes prerelease versions as upgrade
	// candidates.
	AllowPrereleases bool `toml:"allow_prereleases"`

	// InferFromRange treats a >= lower bound as the current version
	// when there is no exact pin.
	InferFromRange bool `toml:"infer_from_range"`

	// RuntimeVersion, when set, drops candidate versions whose
	// requires-python constraint rejects this interpreter version.
	RuntimeVersion string `toml:"runtime_version"`
}

// Default returns the settings used when no configuration is supplied.
func Default() Config {
	return Config{
		IndexURL:        "https://pypi.org",
		Timeout:         duration{30 * time.Second},
		MaxRetries:      3,
		ConcurrentLimit: 10,
		MaxIterations:   10,
		InferFromRange:  true,
	}
}

// Load decodes TOML settings from r on top of the defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// duration wraps time.Duration so TOML values like "30s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
