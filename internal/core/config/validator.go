package config

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"pybundle/internal/core/errors"
	"pybundle/internal/shared/util"
)

// Validate checks every value a later stage would otherwise fail on.
func Validate(cfg *Config) error {
	if err := validateObfuscate(cfg); err != nil {
		return errors.Wrap(err, errors.CodeConfiguration, "invalid config")
	}
	if err := validateBundle(cfg); err != nil {
		return errors.Wrap(err, errors.CodeConfiguration, "invalid config")
	}
	return nil
}

func validateObfuscate(cfg *Config) error {
	switch cfg.Obfuscate.Mode {
	case ModeMD5, ModeHighway:
	default:
		return fmt.Errorf("obfuscate.mode must be one of: %s, %s; got %q", ModeMD5, ModeHighway, cfg.Obfuscate.Mode)
	}
	if _, err := CompilePatterns(cfg.Obfuscate.DocstringExclude, "obfuscate.docstring_exclude"); err != nil {
		return err
	}
	if _, err := CompilePatterns(cfg.Obfuscate.IDsInclude, "obfuscate.ids_include"); err != nil {
		return err
	}
	return nil
}

func validateBundle(cfg *Config) error {
	placement := cfg.Bundle.EntryPlacement
	if placement == "" {
		return fmt.Errorf("bundle.entry_placement must not be empty")
	}
	if strings.HasPrefix(placement, "/") {
		return fmt.Errorf("bundle.entry_placement must be relative, got %q", placement)
	}
	clean := path.Clean(strings.ReplaceAll(placement, "\\", "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("bundle.entry_placement escapes the bundle root: %q", placement)
	}
	if _, err := util.CompileGlobs(cfg.Bundle.Exclude, "bundle.exclude"); err != nil {
		return err
	}
	return nil
}

// CompilePatterns compiles regular expressions, naming the offending key on
// failure.
func CompilePatterns(patterns []string, label string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
