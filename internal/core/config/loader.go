package config

import (
	"os"
	"strings"

	"pybundle/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML configuration file. Keys absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeConfiguration, "read config"),
			errors.CtxPath, path,
		)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeConfiguration, "decode config"),
			errors.CtxPath, path,
		)
	}

	applyDefaults(cfg)
	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Obfuscate.Mode) == "" {
		cfg.Obfuscate.Mode = ModeMD5
	}
	if strings.TrimSpace(cfg.Bundle.EntryPlacement) == "" {
		cfg.Bundle.EntryPlacement = DefaultEntryPlacement
	}
}

func normalize(cfg *Config) {
	cfg.Obfuscate.Mode = strings.ToLower(strings.TrimSpace(cfg.Obfuscate.Mode))
	cfg.Bundle.EntryPlacement = strings.TrimSpace(cfg.Bundle.EntryPlacement)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	cfg.Observability.MetricsFile = strings.TrimSpace(cfg.Observability.MetricsFile)
	cfg.Bundle.Exclude = trimNonEmpty(cfg.Bundle.Exclude)
}

func trimNonEmpty(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
