// Package queryexpr evaluates boolean filter expressions against the
// per-node field context built by the query matcher. Expressions use
// CEL syntax, e.g.
//
//	name == "openssl" && version.startsWith("3.")
//	"pkg:npm/foo@1.0.0" in purl
//
// Fields that are not present in a node's context never match: the
// evaluation error is swallowed and the node is simply not selected.
package queryexpr

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// fieldNames is the full evaluable field set across all node variants.
// Base fields are always bound; package and external nodes bind their
// variant fields on top.
var fieldNames = []string{
	"sbom_id",
	"node_id",
	"name",
	"version",
	"purl",
	"cpe",
	"external_document_reference",
	"external_node_id",
}

var envOnce = sync.OnceValues(func() (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(fieldNames))
	for _, name := range fieldNames {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	return cel.NewEnv(opts...)
})

// Expression is a compiled filter expression
type Expression struct {
	text string
	prog cel.Program
}

// Parse compiles an expression. Referencing a name outside the
// evaluable field set is a parse error.
func Parse(text string) (*Expression, error) {
	env, err := envOnce()
	if err != nil {
		return nil, fmt.Errorf("expression environment: %w", err)
	}

	ast, issues := env.Compile(text)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse expression %q: %w", text, issues.Err())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", text, err)
	}

	return &Expression{text: text, prog: prog}, nil
}

// String returns the original expression text
func (e *Expression) String() string {
	return e.text
}

// Apply evaluates the expression against one node's field context.
// Any evaluation failure, including a field missing from the context,
// means no match.
func (e *Expression) Apply(fields map[string]any) bool {
	out, _, err := e.prog.Eval(fields)
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
