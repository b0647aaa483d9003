package config

import (
	"log/slog"
	"os"
	"strings"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PYBUNDLE_[SECTION]_[KEY] (e.g., PYBUNDLE_OBFUSCATE_SEED).
func ApplyEnvOverrides(cfg *Config) {
	// Obfuscate
	setEnvString(&cfg.Obfuscate.Mode, "PYBUNDLE_OBFUSCATE_MODE")
	setEnvString(&cfg.Obfuscate.Seed, "PYBUNDLE_OBFUSCATE_SEED")
	setEnvList(&cfg.Obfuscate.IDsInclude, "PYBUNDLE_OBFUSCATE_IDS_INCLUDE")
	setEnvList(&cfg.Obfuscate.DocstringExclude, "PYBUNDLE_OBFUSCATE_DOCSTRING_EXCLUDE")

	// Bundle
	setEnvString(&cfg.Bundle.EntryPlacement, "PYBUNDLE_BUNDLE_ENTRY_PLACEMENT")

	// Observability
	setEnvString(&cfg.Observability.OTLPEndpoint, "PYBUNDLE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.MetricsFile, "PYBUNDLE_OBSERVABILITY_METRICS_FILE")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		// The seed is a secret; never echo values.
		slog.Debug("applying env override", "key", key)
		*target = val
	}
}

// setEnvList splits on newlines so regular expressions may contain commas.
func setEnvList(target *[]string, key string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	slog.Debug("applying env override", "key", key)
	parts := strings.Split(val, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	*target = out
}
