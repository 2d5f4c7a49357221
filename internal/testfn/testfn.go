// Package testfn provides small, deterministic ScalarFunction
// implementations shared by this module's tests: arithmetic functions over
// native types operate the entry-point ABI end to end
// without needing the real query engine's function registry.
package testfn

import (
	"fmt"

	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/types"
)

// Binary is a two-argument native function, e.g. plus/minus/multiply,
// parameterized by its CompileInto logic.
type Binary struct {
	FnName string
	Typ    types.Type
	Apply  func(a, b float64) float64

	// Monotonic, when set, is returned verbatim by GetMonotonicityForRange;
	// tests that don't exercise monotonicity can leave this nil.
	Monotonic *actions.Monotonicity
}

func (f *Binary) Name() string                  { return f.FnName }
func (f *Binary) ArgumentTypes() []types.Type    { return []types.Type{f.Typ, f.Typ} }
func (f *Binary) ResultType() types.Type         { return f.Typ }
func (f *Binary) IsCompilable() bool             { return true }
func (f *Binary) IsDeterministic() bool          { return true }
func (f *Binary) IsDeterministicInScopeOfQuery() bool { return true }
func (f *Binary) IsSuitableForConstantFolding() bool  { return true }
func (f *Binary) IsInjective(sampleColumns []*column.Column) bool { return false }
func (f *Binary) HasMonotonicityInformation() bool    { return f.Monotonic != nil }

func (f *Binary) CompileInto(args []float64) (float64, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("testfn: %s expects 2 arguments, got %d", f.FnName, len(args))
	}
	return f.Apply(args[0], args[1]), nil
}

func (f *Binary) GetMonotonicityForRange(argType types.Type, left, right *actions.Field) actions.Monotonicity {
	if f.Monotonic != nil {
		return *f.Monotonic
	}
	return actions.Monotonicity{}
}

func (f *Binary) Prepare(arguments []*actions.Node) (actions.Executable, error) {
	return &rowExecutable{apply2: f.Apply}, nil
}

// Unary is a single-argument native function, e.g. negate/is_positive.
type Unary struct {
	FnName string
	ArgTyp types.Type
	RetTyp types.Type
	Apply  func(a float64) float64

	Monotonic *actions.Monotonicity
}

func (f *Unary) Name() string                  { return f.FnName }
func (f *Unary) ArgumentTypes() []types.Type    { return []types.Type{f.ArgTyp} }
func (f *Unary) ResultType() types.Type         { return f.RetTyp }
func (f *Unary) IsCompilable() bool             { return true }
func (f *Unary) IsDeterministic() bool          { return true }
func (f *Unary) IsDeterministicInScopeOfQuery() bool { return true }
func (f *Unary) IsSuitableForConstantFolding() bool  { return true }
func (f *Unary) IsInjective(sampleColumns []*column.Column) bool { return true }
func (f *Unary) HasMonotonicityInformation() bool    { return f.Monotonic != nil }

func (f *Unary) CompileInto(args []float64) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("testfn: %s expects 1 argument, got %d", f.FnName, len(args))
	}
	return f.Apply(args[0]), nil
}

func (f *Unary) GetMonotonicityForRange(argType types.Type, left, right *actions.Field) actions.Monotonicity {
	if f.Monotonic != nil {
		return *f.Monotonic
	}
	return actions.Monotonicity{}
}

func (f *Unary) Prepare(arguments []*actions.Node) (actions.Executable, error) {
	return &rowExecutable{apply1: f.Apply}, nil
}

// rowExecutable is a row-at-a-time actions.Executable used by both Binary
// and Unary, for tests that exercise actions-level Prepare/Execute directly
// rather than going through the compiled backend.
type rowExecutable struct {
	apply1 func(a float64) float64
	apply2 func(a, b float64) float64
}

func (e *rowExecutable) Execute(args []*column.Column, resultType types.Type, rowCount int) (*column.Column, error) {
	result := column.New(resultType, rowCount)
	width := resultType.ByteWidth()
	dense := make([]*column.Column, len(args))
	for i, a := range args {
		dense[i] = a.MaterializeFull()
	}
	for row := 0; row < rowCount; row++ {
		var v float64
		switch {
		case e.apply1 != nil:
			argType := dense[0].Type()
			argWidth := argType.ByteWidth()
			v = e.apply1(column.DecodeScalar(argType, dense[0].RawData()[row*argWidth:(row+1)*argWidth]))
		case e.apply2 != nil:
			aType := dense[0].Type()
			aWidth := aType.ByteWidth()
			bType := dense[1].Type()
			bWidth := bType.ByteWidth()
			v = e.apply2(
				column.DecodeScalar(aType, dense[0].RawData()[row*aWidth:(row+1)*aWidth]),
				column.DecodeScalar(bType, dense[1].RawData()[row*bWidth:(row+1)*bWidth]),
			)
		}
		encoded := column.EncodeScalar(resultType, v)
		copy(result.RawData()[row*width:(row+1)*width], encoded)
	}
	return result, nil
}

// Plus, Multiply, and Negate are ready-made instances exercising the S1/S2
// scenarios: "a + b * c" and unary negation.
func Plus(typ types.Type) *Binary {
	return &Binary{FnName: "plus", Typ: typ, Apply: func(a, b float64) float64 { return a + b }}
}

func Multiply(typ types.Type) *Binary {
	return &Binary{FnName: "multiply", Typ: typ, Apply: func(a, b float64) float64 { return a * b }}
}

func Negate(typ types.Type) *Unary {
	return &Unary{FnName: "negate", ArgTyp: typ, RetTyp: typ, Apply: func(a float64) float64 { return -a }}
}
