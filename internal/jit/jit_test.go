package jit_test

import (
	"context"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/internal/compiledag"
	"github.com/vectorq/exprjit/internal/jit"
	"github.com/vectorq/exprjit/internal/testfn"
	"github.com/vectorq/exprjit/types"
)

var i32 = types.Type{Kind: types.KindInt32}

func buildPlusDAG(t *testing.T) *compiledag.DAG {
	t.Helper()
	dag := compiledag.New()
	_, err := dag.AddNode(compiledag.Node{Kind: compiledag.NodeInput, ResultType: i32})
	require.NoError(t, err)
	_, err = dag.AddNode(compiledag.Node{Kind: compiledag.NodeInput, ResultType: i32})
	require.NoError(t, err)
	_, err = dag.AddNode(compiledag.Node{Kind: compiledag.NodeFunction, ResultType: i32, Function: testfn.Plus(i32), Arguments: []int{0, 1}})
	require.NoError(t, err)
	return dag
}

func TestReferenceBackendCompileAndExecute(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dag := buildPlusDAG(t)

	info, err := backend.Compile(context.Background(), dag)
	require.NoError(t, err)
	require.Positive(t, info.Size)

	entry, err := backend.FindCompiledFunction(info, dag.Dump())
	require.NoError(t, err)

	a := column.New(i32, 3)
	b := column.New(i32, 3)
	result := column.New(i32, 3)
	writeInt32Column(a, []int32{1, 2, 3})
	writeInt32Column(b, []int32{4, 5, 6})

	entry(3, []jit.Descriptor{a.Descriptor(), b.Descriptor(), result.Descriptor()})

	require.Equal(t, []int32{5, 7, 9}, readInt32Column(result, 3))
}

func TestReferenceBackendRejectsUnknownSymbol(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dag := buildPlusDAG(t)
	info, err := backend.Compile(context.Background(), dag)
	require.NoError(t, err)

	_, err = backend.FindCompiledFunction(info, "not-the-real-symbol")
	require.ErrorIs(t, err, jit.ErrBackendFailure)
}

func TestReferenceBackendDeleteThenFindFails(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dag := buildPlusDAG(t)
	info, err := backend.Compile(context.Background(), dag)
	require.NoError(t, err)

	require.NoError(t, backend.DeleteCompiledModule(info))
	_, err = backend.FindCompiledFunction(info, dag.Dump())
	require.ErrorIs(t, err, jit.ErrBackendFailure)
}

func TestCompiledModuleReleaseInvokesBackendOnLastReference(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dag := buildPlusDAG(t)
	info, err := backend.Compile(context.Background(), dag)
	require.NoError(t, err)
	entry, err := backend.FindCompiledFunction(info, dag.Dump())
	require.NoError(t, err)

	module := jit.NewCompiledModule(backend, info, entry, dag.Dump())
	module.Retain()

	require.NoError(t, module.Release(), "one reference remains, backend must not be asked to release yet")
	_, err = backend.FindCompiledFunction(info, dag.Dump())
	require.NoError(t, err, "module must still be resolvable while a reference is outstanding")

	require.NoError(t, module.Release(), "last reference drops, backend releases the module")
	_, err = backend.FindCompiledFunction(info, dag.Dump())
	require.ErrorIs(t, err, jit.ErrBackendFailure)
}

func writeInt32Column(c *column.Column, values []int32) {
	data := c.RawData()
	for i, v := range values {
		*(*int32)(unsafe.Pointer(&data[i*4])) = v
	}
}

func readInt32Column(c *column.Column, n int) []int32 {
	data := c.RawData()
	out := make([]int32, n)
	for i := range out {
		out[i] = *(*int32)(unsafe.Pointer(&data[i*4]))
	}
	return out
}
