package compiledag

import (
	"errors"

	"github.com/vectorq/exprjit/internal/column"
)

// ErrNullInput is returned by callers of EvalScalar that need a definite
// result (such as a compiled function's CompileInto) when the root evaluates
// to null. EvalScalar itself reports a null root through its isNull result.
var ErrNullInput = errors.New("compiledag: evaluation produced null")

// EvalScalar interprets dag against the given per-Input argument values (in
// Input-node order) and returns the root's value and whether it is null.
// This is the single authoritative row/scalar evaluator for a CompileDAG:
// ReferenceBackend.evalDAGOverBatch calls it once per batch row, and a
// CompiledFunction re-embedded as a Function node inside a larger, later
// extraction (a compiled node can itself be compilable) calls it through its
// own CompileInto, so both paths agree on semantics by construction rather
// than by two independent implementations.
func EvalScalar(dag *DAG, inputArgs []float64, inputNulls []bool) (value float64, isNull bool, err error) {
	values := make([]float64, dag.Len())
	nulls := make([]bool, dag.Len())
	inputIdx := 0

	for i := 0; i < dag.Len(); i++ {
		node := dag.Index(i)
		switch node.Kind {
		case NodeInput:
			if inputIdx >= len(inputArgs) {
				return 0, false, errors.New("compiledag: fewer input arguments than Input nodes")
			}
			values[i] = inputArgs[inputIdx]
			if inputIdx < len(inputNulls) {
				nulls[i] = inputNulls[inputIdx]
			}
			inputIdx++
		case NodeConstant:
			if node.Column != nil && node.Column.IsConst() {
				nulls[i] = node.Column.ConstNull()
				if !nulls[i] {
					values[i] = column.DecodeScalar(node.ResultType, node.Column.ConstValue())
				}
			}
		case NodeFunction:
			args := make([]float64, len(node.Arguments))
			isNullArg := false
			for j, pos := range node.Arguments {
				args[j] = values[pos]
				isNullArg = isNullArg || nulls[pos]
			}
			if isNullArg {
				nulls[i] = true
				continue
			}
			v, cerr := node.Function.CompileInto(args)
			if cerr != nil {
				return 0, false, cerr
			}
			values[i] = v
		}
	}

	last := dag.Len() - 1
	return values[last], nulls[last], nil
}
