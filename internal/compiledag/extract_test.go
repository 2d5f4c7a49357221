package compiledag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/compiledag"
	"github.com/vectorq/exprjit/internal/testfn"
)

func TestExtractSimpleArithmetic(t *testing.T) {
	// a + b * c
	g := actions.NewGraph()
	a := g.AddNode(&actions.Node{Kind: actions.KindInput, ResultType: i32})
	b := g.AddNode(&actions.Node{Kind: actions.KindInput, ResultType: i32})
	c := g.AddNode(&actions.Node{Kind: actions.KindInput, ResultType: i32})
	mul := g.AddNode(&actions.Node{Kind: actions.KindFunction, ResultType: i32, Function: testfn.Multiply(i32), Children: []actions.NodeID{b, c}})
	plus := g.AddNode(&actions.Node{Kind: actions.KindFunction, ResultType: i32, Function: testfn.Plus(i32), Children: []actions.NodeID{a, mul}})
	g.Outputs = []actions.NodeID{plus}

	dag, external, err := compiledag.Extract(g, plus)
	require.NoError(t, err)
	require.Equal(t, 3, dag.InputCount())
	require.Equal(t, []actions.NodeID{a, b, c}, external, "external children must be in source order")
	require.Equal(t, 5, dag.Len())

	root := dag.Back()
	require.Equal(t, compiledag.NodeFunction, root.Kind)
	require.Equal(t, "plus", root.Function.Name())
}

func TestExtractSharedSubexpressionEmitsSingleNode(t *testing.T) {
	// f(g(x), g(x)): the two references to the g(x) node must collapse to
	// one CompileNode, not two.
	g := actions.NewGraph()
	x := g.AddNode(&actions.Node{Kind: actions.KindInput, ResultType: i32})
	gx := g.AddNode(&actions.Node{Kind: actions.KindFunction, ResultType: i32, Function: testfn.Negate(i32), Children: []actions.NodeID{x}})
	root := g.AddNode(&actions.Node{Kind: actions.KindFunction, ResultType: i32, Function: testfn.Plus(i32), Children: []actions.NodeID{gx, gx}})
	g.Outputs = []actions.NodeID{root}

	dag, external, err := compiledag.Extract(g, root)
	require.NoError(t, err)
	require.Equal(t, 1, len(external), "the shared input x must appear only once")
	// input(x), negate(0), plus(1,1)
	require.Equal(t, 3, dag.Len())
	require.Equal(t, []int{1, 1}, dag.Back().Arguments)
}

func TestExtractStopsAtNonCompilableFunction(t *testing.T) {
	g := actions.NewGraph()
	x := g.AddNode(&actions.Node{Kind: actions.KindInput, ResultType: i32})
	y := g.AddNode(&actions.Node{Kind: actions.KindInput, ResultType: i32})
	opaqueFn := &opaqueBinary{Binary: &testfn.Binary{FnName: "opaque", Typ: i32, Apply: func(a, b float64) float64 { return a }}}
	inner := g.AddNode(&actions.Node{Kind: actions.KindFunction, ResultType: i32, Function: opaqueFn, Children: []actions.NodeID{x, y}})
	outer := g.AddNode(&actions.Node{Kind: actions.KindFunction, ResultType: i32, Function: testfn.Negate(i32), Children: []actions.NodeID{inner}})
	g.Outputs = []actions.NodeID{outer}

	dag, external, err := compiledag.Extract(g, outer)
	require.NoError(t, err)
	require.Equal(t, 1, len(external))
	require.Equal(t, external[0], inner, "the non-compilable function node itself becomes the Input leaf")
	require.Equal(t, 2, dag.Len())
}

// opaqueBinary wraps testfn.Binary but reports itself uncompilable, standing
// in for a function the query engine hasn't marked IsCompilable.
type opaqueBinary struct {
	*testfn.Binary
}

func (o *opaqueBinary) IsCompilable() bool { return false }
