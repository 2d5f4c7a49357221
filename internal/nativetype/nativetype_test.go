package nativetype_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorq/exprjit/internal/nativetype"
	"github.com/vectorq/exprjit/types"
)

func TestIsNativeTypeAcceptsFixedWidthKinds(t *testing.T) {
	for _, kind := range []byte{
		types.KindInt8, types.KindInt16, types.KindInt32, types.KindInt64,
		types.KindUint8, types.KindUint16, types.KindUint32, types.KindUint64,
		types.KindFloat32, types.KindFloat64, types.KindDate, types.KindDateTime,
	} {
		require.True(t, nativetype.IsNativeType(types.Type{Kind: kind}), "kind %d must be native", kind)
	}
}

func TestIsNativeTypeRejectsCompositeKinds(t *testing.T) {
	require.False(t, nativetype.IsNativeType(types.Type{Kind: types.KindString}))
}

type fakeScalarFunction struct {
	compilable bool
	resultType types.Type
	argTypes   []types.Type
}

func (f *fakeScalarFunction) IsCompilable() bool          { return f.compilable }
func (f *fakeScalarFunction) ResultType() types.Type      { return f.resultType }
func (f *fakeScalarFunction) ArgumentTypes() []types.Type { return f.argTypes }

func TestIsCompilableFunctionRequiresNativeResultAndArguments(t *testing.T) {
	i32 := types.Type{Kind: types.KindInt32}
	str := types.Type{Kind: types.KindString}

	require.True(t, nativetype.IsCompilableFunction(&fakeScalarFunction{compilable: true, resultType: i32, argTypes: []types.Type{i32, i32}}))
	require.False(t, nativetype.IsCompilableFunction(&fakeScalarFunction{compilable: false, resultType: i32, argTypes: []types.Type{i32}}), "IsCompilable()==false must reject regardless of types")
	require.False(t, nativetype.IsCompilableFunction(&fakeScalarFunction{compilable: true, resultType: str, argTypes: []types.Type{i32}}), "non-native result type must reject")
	require.False(t, nativetype.IsCompilableFunction(&fakeScalarFunction{compilable: true, resultType: i32, argTypes: []types.Type{str}}), "a single non-native argument must reject the whole function")
}

func TestIsCompilableFunctionRejectsNilDescriptor(t *testing.T) {
	require.False(t, nativetype.IsCompilableFunction(nil))
}

type fakeConstantNode struct {
	hasColumn  bool
	resultType types.Type
}

func (n *fakeConstantNode) HasConstantColumn() bool { return n.hasColumn }
func (n *fakeConstantNode) NodeResultType() types.Type { return n.resultType }

func TestIsCompilableConstantRequiresMaterializedNativeColumn(t *testing.T) {
	i32 := types.Type{Kind: types.KindInt32}
	str := types.Type{Kind: types.KindString}

	require.True(t, nativetype.IsCompilableConstant(&fakeConstantNode{hasColumn: true, resultType: i32}))
	require.False(t, nativetype.IsCompilableConstant(&fakeConstantNode{hasColumn: false, resultType: i32}), "a node without a materialized constant column is never compilable")
	require.False(t, nativetype.IsCompilableConstant(&fakeConstantNode{hasColumn: true, resultType: str}), "a non-native constant type is never compilable")
}
