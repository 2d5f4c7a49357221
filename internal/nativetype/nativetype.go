// Package nativetype implements the pure classifier that decides whether a
// logical type has a native machine representation, and whether a node or
// function qualifies for compilation on that basis. It consults no global
// state and has no side effects.
package nativetype

import "github.com/vectorq/exprjit/types"

// IsNativeType reports whether t has a direct machine representation:
// fixed-width signed/unsigned integers, float32/float64, their nullable
// variants, and fixed-point date/time kinds exposed as integers. Composite
// kinds (arrays, tuples, maps, strings) are never native.
func IsNativeType(t types.Type) bool {
	switch t.Kind {
	case types.KindInt8, types.KindInt16, types.KindInt32, types.KindInt64,
		types.KindUint8, types.KindUint16, types.KindUint32, types.KindUint64,
		types.KindFloat32, types.KindFloat64,
		types.KindDate, types.KindDateTime:
		return true
	default:
		return false
	}
}

// ScalarFunction is the minimal surface of a scalar function descriptor this
// predicate needs. actions.ScalarFunction satisfies it.
type ScalarFunction interface {
	IsCompilable() bool
	ResultType() types.Type
	ArgumentTypes() []types.Type
}

// IsCompilableFunction reports whether f declares itself compilable and both
// its result type and every argument type are native.
func IsCompilableFunction(f ScalarFunction) bool {
	if f == nil || !f.IsCompilable() {
		return false
	}
	if !IsNativeType(f.ResultType()) {
		return false
	}
	for _, arg := range f.ArgumentTypes() {
		if !IsNativeType(arg) {
			return false
		}
	}
	return true
}

// ConstantNode is the minimal surface of an actions-graph node needed to
// decide whether it is a compilable constant.
type ConstantNode interface {
	HasConstantColumn() bool
	NodeResultType() types.Type
}

// IsCompilableConstant reports whether node carries a materialized constant
// column whose type is native.
func IsCompilableConstant(node ConstantNode) bool {
	return node.HasConstantColumn() && IsNativeType(node.NodeResultType())
}
