// Package monotonicity implements the composition of monotonicity
// information across a chain of nested unary functions.
package monotonicity

import (
	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/types"
)

// ComposeChain composes the monotonicity of a linear chain of unary
// functions f1∘f2∘...∘fk, evaluated left to right, over the half-open
// interval (left, right) of argType. It returns the first non-monotonic
// result it finds, short-circuiting the remaining chain, exactly as the
// original only accumulates is_positive/is_always_monotonic while every
// step so far reported monotonic.
//
// Between steps the interval endpoints are advanced by applying each
// intermediate function to each endpoint, skipping null endpoints, both
// behaviors carried over from ExpressionJIT.cpp's applyFunction.
func ComposeChain(chain []actions.ScalarFunction, argType types.Type, left, right *actions.Field) actions.Monotonicity {
	result := actions.Monotonicity{IsMonotonic: true, IsPositive: true, IsAlwaysMonotonic: true}

	curType := argType
	curLeft, curRight := left, right

	for i, fn := range chain {
		m := fn.GetMonotonicityForRange(curType, curLeft, curRight)
		if !m.IsMonotonic {
			return m
		}

		result.IsPositive = result.IsPositive != !m.IsPositive // XOR of each "!is_positive"
		result.IsAlwaysMonotonic = result.IsAlwaysMonotonic && m.IsAlwaysMonotonic

		if i+1 < len(chain) {
			if curLeft != nil && !curLeft.Null {
				v := applyUnary(fn, curLeft.Value)
				curLeft = &actions.Field{Value: v}
			}
			if curRight != nil && !curRight.Null {
				v := applyUnary(fn, curRight.Value)
				curRight = &actions.Field{Value: v}
			}
			if !m.IsPositive {
				curLeft, curRight = curRight, curLeft
			}
			curType = fn.ResultType()
		}
	}

	return result
}

// applyUnary evaluates fn on a single constant value by preparing it against
// a one-row constant column and executing, exactly the way
// ExpressionJIT.cpp's applyFunction advances an interval endpoint through an
// intermediate chain function.
func applyUnary(fn actions.ScalarFunction, value float64) float64 {
	argType := fn.ArgumentTypes()[0]
	arg := column.NewConst(argType, 1, column.EncodeScalar(argType, value), false).MaterializeFull()

	exec, err := fn.Prepare(nil)
	if err != nil {
		return value
	}
	result, err := exec.Execute([]*column.Column{arg}, fn.ResultType(), 1)
	if err != nil {
		return value
	}
	return column.DecodeScalar(fn.ResultType(), result.RawData()[:fn.ResultType().ByteWidth()])
}

// IsDeterministic, IsDeterministicInScopeOfQuery, IsSuitableForConstantFolding,
// and IsInjective are each the AND of the respective flag across chain,
// matching the LLVMFunction capability composition in ExpressionJIT.cpp.

// IsDeterministic reports whether every function in chain is deterministic.
func IsDeterministic(chain []actions.ScalarFunction) bool {
	for _, fn := range chain {
		if !fn.IsDeterministic() {
			return false
		}
	}
	return true
}

// IsDeterministicInScopeOfQuery reports whether every function in chain is.
func IsDeterministicInScopeOfQuery(chain []actions.ScalarFunction) bool {
	for _, fn := range chain {
		if !fn.IsDeterministicInScopeOfQuery() {
			return false
		}
	}
	return true
}

// IsSuitableForConstantFolding reports whether every function in chain is.
func IsSuitableForConstantFolding(chain []actions.ScalarFunction) bool {
	for _, fn := range chain {
		if !fn.IsSuitableForConstantFolding() {
			return false
		}
	}
	return true
}

// IsInjective reports whether every function in chain is injective over the
// given sample columns.
func IsInjective(chain []actions.ScalarFunction, sampleColumns []*column.Column) bool {
	for _, fn := range chain {
		if !fn.IsInjective(sampleColumns) {
			return false
		}
	}
	return true
}

// HasMonotonicityInformation reports whether every function in chain has it.
func HasMonotonicityInformation(chain []actions.ScalarFunction) bool {
	for _, fn := range chain {
		if !fn.HasMonotonicityInformation() {
			return false
		}
	}
	return true
}
