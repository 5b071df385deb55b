// Package printer renders evaluation results and compiled-program
// introspection for cmd/xpvm, built in the same character-buffer style
// core/values.go uses for its own String methods (golang-stringbuilder
// rather than strings.Builder), just with more structure than an
// item's default String(): one line per item, tagged with its kind.
package printer

import (
	"fmt"

	Text "github.com/linkdotnet/golang-stringbuilder"

	"github.com/sderkacs/xpvm/core"
)

// Sequence renders every item of s on its own line, prefixed with a
// tag naming its XDM item kind (atomic/node/function/map/array), the
// form the eval subcommand prints a program's result in, so the reader
// need not guess what came back from a bare s.String().
func Sequence(s core.Sequence) string {
	var b Text.StringBuilder
	for i, it := range s {
		if i > 0 {
			b.Append("\n")
		}
		b.Append(fmt.Sprintf("[%d] %s: %s", i, kindTag(it), it.String()))
	}
	return b.ToString()
}

func kindTag(it core.Item) string {
	switch it.ItemKind() {
	case core.ItemKindAtomic:
		return "atomic"
	case core.ItemKindNode:
		return "node"
	case core.ItemKindFunction:
		return "function"
	case core.ItemKindMap:
		return "map"
	case core.ItemKindArray:
		return "array"
	default:
		return "item"
	}
}

// Program renders a compiled program's instruction listing, one
// instruction per line, numbered by offset, for the compile subcommand
// to print when asked to show bytecode instead of running it.
func Program(p *core.Program) string {
	var b Text.StringBuilder
	for _, fn := range p.Functions {
		b.Append(fmt.Sprintf("func %s entry=%d params=%d locals=%d\n", fn.Name, fn.Entry, fn.NumParams, fn.NumLocals))
	}
	for i, ins := range p.Instructions {
		b.Append(fmt.Sprintf("%4d  %-14s a=%d b=%d\n", i, ins.Op.String(), ins.A, ins.B))
	}
	return b.ToString()
}
