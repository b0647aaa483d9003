// Package project holds the state of one bundling run: the discovered source
// units in discovery order, the project-wide identifier set, the merged
// configuration and, once resolution is complete, the rename table.
package project

import (
	"sort"

	"pybundle/internal/core/config"
	"pybundle/internal/core/errors"
	"pybundle/internal/engine/obfuscate"
	"pybundle/internal/engine/parser"
)

// Unit is one parsed module.
type Unit struct {
	// Path is the canonical, absolute source path. It is the unit's key.
	Path string
	// Placement is the slash-separated path inside the bundle root.
	Placement string
	Tree      *parser.Tree
	// Marker is the interpreter directive line, without newline, or "".
	Marker   string
	Override *config.Override
	Imports  []parser.Import
	// Unresolved lists the imports that did not name a local file.
	Unresolved []parser.Import
	// Dependencies holds the placements of the bundled modules this unit
	// imports, in import order.
	Dependencies []string
	Identifiers  map[string]struct{}
	Entry        bool
}

// Render returns the unit's current source text.
func (u *Unit) Render() []byte {
	return parser.Render(u.Tree)
}

type Project struct {
	units       []*Unit
	byPath      map[string]*Unit
	byPlacement map[string]*Unit
	identifiers map[string]struct{}
	config      *config.Config

	// Renames is set once, after every unit has been added.
	Renames *obfuscate.Table
}

// New starts an empty project from a base configuration. The base is copied;
// inline overrides never leak back to the caller.
func New(base *config.Config) *Project {
	if base == nil {
		base = config.Default()
	}
	return &Project{
		byPath:      make(map[string]*Unit),
		byPlacement: make(map[string]*Unit),
		identifiers: make(map[string]struct{}),
		config:      base.Clone(),
	}
}

// AddUnit appends u in discovery order. The first unit added is the entry.
// Its override is merged into the running configuration, so later units win
// on conflicting keys.
func (p *Project) AddUnit(u *Unit) error {
	if u == nil || u.Tree == nil {
		return errors.New(errors.CodeInternal, "unit without tree")
	}
	if _, exists := p.byPath[u.Path]; exists {
		return errors.AddContext(
			errors.New(errors.CodeInternal, "unit already added"),
			errors.CtxPath, u.Path,
		)
	}
	if other, exists := p.byPlacement[u.Placement]; exists {
		err := errors.Newf(errors.CodeResolution, "placement %q already used by %s", u.Placement, other.Path)
		err = errors.AddContext(err, errors.CtxPath, u.Path)
		return errors.AddContext(err, errors.CtxPlacement, u.Placement)
	}

	if !u.Override.Empty() {
		merged := p.config.Clone()
		merged.Merge(u.Override)
		if err := config.Validate(merged); err != nil {
			return errors.AddContext(err, errors.CtxPath, u.Path)
		}
		p.config = merged
	}

	u.Entry = len(p.units) == 0
	p.units = append(p.units, u)
	p.byPath[u.Path] = u
	p.byPlacement[u.Placement] = u
	for name := range u.Identifiers {
		p.identifiers[name] = struct{}{}
	}
	return nil
}

// Entry returns the entry unit, or nil for an empty project.
func (p *Project) Entry() *Unit {
	if len(p.units) == 0 {
		return nil
	}
	return p.units[0]
}

// Units returns the units in discovery order.
func (p *Project) Units() []*Unit {
	return p.units
}

func (p *Project) Len() int {
	return len(p.units)
}

// Lookup finds a unit by canonical path.
func (p *Project) Lookup(path string) (*Unit, bool) {
	u, ok := p.byPath[path]
	return u, ok
}

// PlacementOwner returns the unit already placed at placement, if any.
func (p *Project) PlacementOwner(placement string) (*Unit, bool) {
	u, ok := p.byPlacement[placement]
	return u, ok
}

// Identifiers returns the project-wide identifier set, sorted.
func (p *Project) Identifiers() []string {
	out := make([]string, 0, len(p.identifiers))
	for name := range p.identifiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Config returns the running configuration. Callers must not mutate it.
func (p *Project) Config() *config.Config {
	return p.config
}

// Unresolved counts the import references left to the runtime.
func (p *Project) Unresolved() int {
	n := 0
	for _, u := range p.units {
		n += len(u.Unresolved)
	}
	return n
}
