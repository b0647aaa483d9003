package config

// Config is the bundler configuration. The same schema is accepted from the
// configuration file and, partially, from inline module overrides.
type Config struct {
	Obfuscate     Obfuscate     `toml:"obfuscate"`
	Bundle        Bundle        `toml:"bundle"`
	Observability Observability `toml:"observability"`
}

type Obfuscate struct {
	Mode             string   `toml:"mode"`
	Seed             string   `toml:"seed"`
	DocstringExclude []string `toml:"docstring_exclude"`
	IDsInclude       []string `toml:"ids_include"`
}

type Bundle struct {
	Exclude        []string `toml:"exclude"`
	EntryPlacement string   `toml:"entry_placement"`
}

type Observability struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	MetricsFile  string `toml:"metrics_file"`
}

const (
	ModeMD5     = "md5"
	ModeHighway = "highway"

	DefaultEntryPlacement = "__main__.py"
)

// SeedBytes returns the obfuscation seed as raw bytes.
func (o Obfuscate) SeedBytes() []byte {
	return []byte(o.Seed)
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Clone returns a deep copy so per-run merges never alias the caller's slices.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Obfuscate.DocstringExclude = cloneStrings(c.Obfuscate.DocstringExclude)
	out.Obfuscate.IDsInclude = cloneStrings(c.Obfuscate.IDsInclude)
	out.Bundle.Exclude = cloneStrings(c.Bundle.Exclude)
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
