package resolver

import "pybundle/internal/engine/parser"

func parserImport(module string, level int, items ...string) parser.Import {
	return parser.Import{Module: module, Level: level, Items: items}
}
