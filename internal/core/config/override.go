package config

import (
	"strings"

	"pybundle/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Override is a partial configuration embedded in a module. Nil fields were
// not set by the module and leave the running configuration untouched.
type Override struct {
	Obfuscate ObfuscateOverride `toml:"obfuscate"`
	Bundle    BundleOverride    `toml:"bundle"`
}

type ObfuscateOverride struct {
	Mode             *string   `toml:"mode"`
	Seed             *string   `toml:"seed"`
	DocstringExclude *[]string `toml:"docstring_exclude"`
	IDsInclude       *[]string `toml:"ids_include"`
}

type BundleOverride struct {
	Exclude *[]string `toml:"exclude"`
}

// DecodeOverride parses TOML text into an Override. Unknown keys are
// rejected so a typo in an inline block does not silently do nothing.
func DecodeOverride(text string) (*Override, error) {
	var o Override
	md, err := toml.Decode(text, &o)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "decode inline config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Newf(errors.CodeConfiguration, "unknown inline config keys: %s", strings.Join(keys, ", "))
	}
	return &o, nil
}

// Empty reports whether the override sets no key at all.
func (o *Override) Empty() bool {
	if o == nil {
		return true
	}
	return o.Obfuscate.Mode == nil &&
		o.Obfuscate.Seed == nil &&
		o.Obfuscate.DocstringExclude == nil &&
		o.Obfuscate.IDsInclude == nil &&
		o.Bundle.Exclude == nil
}

// Merge overlays o onto c in place. Every key present in o replaces the
// current value.
func (c *Config) Merge(o *Override) {
	if o == nil {
		return
	}
	if o.Obfuscate.Mode != nil {
		c.Obfuscate.Mode = strings.ToLower(strings.TrimSpace(*o.Obfuscate.Mode))
	}
	if o.Obfuscate.Seed != nil {
		c.Obfuscate.Seed = *o.Obfuscate.Seed
	}
	if o.Obfuscate.DocstringExclude != nil {
		c.Obfuscate.DocstringExclude = cloneStrings(*o.Obfuscate.DocstringExclude)
	}
	if o.Obfuscate.IDsInclude != nil {
		c.Obfuscate.IDsInclude = cloneStrings(*o.Obfuscate.IDsInclude)
	}
	if o.Bundle.Exclude != nil {
		c.Bundle.Exclude = trimNonEmpty(*o.Bundle.Exclude)
	}
}
