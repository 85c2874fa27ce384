package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] values and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Signaling
	if cfg.Signaling.URL == "" {
		errs = append(errs, errors.New("signaling.url is required"))
	} else if u, err := url.Parse(cfg.Signaling.URL); err != nil {
		errs = append(errs, fmt.Errorf("signaling.url %q is not a valid URL: %v", cfg.Signaling.URL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("signaling.url %q must use http or https", cfg.Signaling.URL))
	}

	// Transport
	for i, s := range cfg.Transport.STUNServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "stuns:") {
			errs = append(errs, fmt.Errorf("transport.stun_servers[%d] %q must start with stun: or stuns:", i, s))
		}
	}

	// Audio
	if cfg.Audio.ChunkSamples <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_samples %d must be positive", cfg.Audio.ChunkSamples))
	}
	if cfg.Audio.TargetRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.target_rate %d must be positive", cfg.Audio.TargetRate))
	} else if cfg.Audio.TargetRate != 16000 {
		slog.Warn("audio.target_rate differs from the 16000 Hz the transcription server expects",
			"target_rate", cfg.Audio.TargetRate,
		)
	}

	return errors.Join(errs...)
}
