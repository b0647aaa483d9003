// Package obfuscate computes the project-wide rename table.
package obfuscate

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"log/slog"
	"regexp"
	"sort"

	"pybundle/internal/core/config"
	"pybundle/internal/core/errors"
	"pybundle/internal/shared/observability"

	"github.com/minio/highwayhash"
)

const (
	AliasPrefix = "O"
	aliasDigits = 10
)

// Reserved names are renamed whether or not an include pattern selects them.
var Reserved = []string{"FLASH_ADDR"}

var highwayKey = []byte("pybundle.obfuscate.highway.key.0")

// Collision records two names that received the same alias, or an alias that
// equals an identifier already present in the project.
type Collision struct {
	Alias string
	Names []string
}

// Table maps selected identifiers to their aliases. The zero value and a nil
// *Table rename nothing.
type Table struct {
	aliases    map[string]string
	Collisions []Collision
}

func (t *Table) Alias(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	alias, ok := t.aliases[name]
	return alias, ok
}

// Names returns the selected identifiers, sorted.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.aliases))
	for name := range t.aliases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the name to alias mapping.
func (t *Table) Map() map[string]string {
	out := make(map[string]string, t.Len())
	if t == nil {
		return out
	}
	for name, alias := range t.aliases {
		out[name] = alias
	}
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.aliases)
}

// BuildRenameTable selects the reserved names plus every identifier matched
// by an include pattern at its first character, and aliases each of them.
// It is a pure function of its inputs.
func BuildRenameTable(identifiers []string, cfg config.Obfuscate) (*Table, error) {
	include, err := config.CompilePatterns(cfg.IDsInclude, "obfuscate.ids_include")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "build rename table")
	}
	digest, err := newDigest(cfg.Mode)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]struct{}, len(Reserved))
	for _, name := range Reserved {
		selected[name] = struct{}{}
	}
	for _, name := range identifiers {
		if matchesAtStart(include, name) {
			selected[name] = struct{}{}
		}
	}

	t := &Table{aliases: make(map[string]string, len(selected))}
	seed := cfg.SeedBytes()
	for name := range selected {
		t.aliases[name] = AliasFor(digest, seed, name)
	}
	t.Collisions = findCollisions(t.aliases, identifiers)
	for _, c := range t.Collisions {
		observability.AliasCollisions.Inc()
		slog.Warn("alias collision", "alias", c.Alias, "names", c.Names)
	}
	return t, nil
}

// Digest is a fresh hash.Hash per alias.
type Digest func() hash.Hash

func newDigest(mode string) (Digest, error) {
	switch mode {
	case "", config.ModeMD5:
		return md5.New, nil
	case config.ModeHighway:
		if _, err := highwayhash.New(highwayKey); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "init highwayhash")
		}
		return func() hash.Hash {
			h, _ := highwayhash.New(highwayKey)
			return h
		}, nil
	}
	return nil, errors.Newf(errors.CodeConfiguration, "unknown obfuscate mode %q", mode)
}

// AliasFor returns the alias of name: the prefix followed by the first ten
// hex digits of digest(seed || name).
func AliasFor(digest Digest, seed []byte, name string) string {
	h := digest()
	h.Write(seed)
	h.Write([]byte(name))
	sum := hex.EncodeToString(h.Sum(nil))
	return AliasPrefix + sum[:aliasDigits]
}

// matchesAtStart mirrors an anchored match: a pattern selects name when a
// match begins at offset 0. Leftmost matching guarantees that the first
// match found starts at 0 whenever any match does.
func matchesAtStart(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if loc := re.FindStringIndex(name); loc != nil && loc[0] == 0 {
			return true
		}
	}
	return false
}

func findCollisions(aliases map[string]string, identifiers []string) []Collision {
	byAlias := make(map[string][]string, len(aliases))
	for name, alias := range aliases {
		byAlias[alias] = append(byAlias[alias], name)
	}
	existing := make(map[string]struct{}, len(identifiers))
	for _, name := range identifiers {
		existing[name] = struct{}{}
	}

	var out []Collision
	for alias, names := range byAlias {
		if _, clash := existing[alias]; clash {
			if _, renamed := aliases[alias]; !renamed {
				names = append(names, alias)
			}
		}
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		out = append(out, Collision{Alias: alias, Names: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}
