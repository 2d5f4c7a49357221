// Package actions models the actions-graph the rewriter consumes and
// rewrites: a DAG of Input, Constant, Function, and Alias nodes evaluating
// scalar functions over columnar batches. The graph builder, parser, and
// query planner that produce this graph are external collaborators; this
// package only defines the read/rewrite surface the core needs.
//
// Following the re-architecture guidance, the graph is an arena: nodes are
// addressed by a stable integer NodeID rather than by raw pointer, so the
// rewriter can mutate one node in place while other nodes keep holding onto
// its NodeID as an edge.
package actions

import (
	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/types"
)

// Kind is the tag of an actions-graph node.
type Kind int

const (
	KindInput Kind = iota
	KindConstant
	KindFunction
	KindAlias
)

// NodeID is a stable index into a Graph's node arena.
type NodeID int

// ScalarFunction is the descriptor interface a registered scalar function
// implements. The core composes these capability flags and invokes
// CompileInto as an opaque codegen hook; it never inspects a function's
// implementation.
type ScalarFunction interface {
	Name() string
	ArgumentTypes() []types.Type
	ResultType() types.Type

	IsCompilable() bool
	IsDeterministic() bool
	IsDeterministicInScopeOfQuery() bool
	IsSuitableForConstantFolding() bool
	IsInjective(sampleColumns []*column.Column) bool
	HasMonotonicityInformation() bool

	// CompileInto is the codegen hook each scalar function supplies: given
	// an IR builder and input values, it produces the output value. The
	// real IR builder belongs to the out-of-scope codegen backend; the
	// reference backend in package jit substitutes float64 as the universal
	// native value representation so it can still produce genuinely
	// executable compiled code for testing, without the core ever inspecting
	// how a function lowers itself.
	CompileInto(args []float64) (float64, error)

	// GetMonotonicityForRange is only meaningful for unary functions; see
	// the monotonicity package for how chains of these compose.
	GetMonotonicityForRange(argType types.Type, left, right *Field) Monotonicity

	// Prepare binds the function to a fixed argument list and returns
	// something the executor can Execute repeatedly.
	Prepare(arguments []*Node) (Executable, error)
}

// Executable is the execution-side counterpart of a prepared ScalarFunction:
// what Prepare(arguments) returns.
type Executable interface {
	Execute(args []*column.Column, resultType types.Type, rowCount int) (*column.Column, error)
}

// Disposer is an optional capability a ScalarFunction implements when it
// holds an underlying native resource, such as a compiled module's shared
// reference, that must be released once the node carrying it is retired.
// Most ScalarFunction implementations (plain arithmetic, comparisons) own
// no such resource and don't implement it; the compiler package's
// CompiledFunction does.
type Disposer interface {
	Dispose() error
}

// Monotonicity is returned by GetMonotonicityForRange; see the
// monotonicity package for chain composition semantics.
type Monotonicity struct {
	IsMonotonic       bool
	IsPositive        bool
	IsAlwaysMonotonic bool
}

// Field is a nullable scalar value, used for monotonicity interval
// endpoints. A nil *Field or one with Null set stands for an unbounded
// endpoint between chain steps.
type Field struct {
	Null  bool
	Value float64
}

// Node is one actions-graph node.
type Node struct {
	Kind       Kind
	ResultType types.Type
	Column     *column.Column // present iff Kind == KindConstant, or computed
	Function   ScalarFunction // present iff Kind == KindFunction
	Children   []NodeID

	Executable Executable // bound by Function.Prepare once compiled or resolved
	IsCompiled bool        // set by the rewriter when this node became a compiled-function node
}

// HasConstantColumn and NodeResultType satisfy nativetype.ConstantNode.
func (n *Node) HasConstantColumn() bool      { return n.Column != nil }
func (n *Node) NodeResultType() types.Type   { return n.ResultType }

// IsFunctionNode reports whether n is a Function node. Callers check it
// before passing n.Function to nativetype.IsCompilableFunction;
// Input/Constant/Alias nodes never qualify.
func (n *Node) IsFunctionNode() bool { return n.Kind == KindFunction }

// Graph is the arena-backed actions-graph: a flat node list addressed by
// NodeID, plus the designated Outputs set the rewriter must never absorb
// into a larger compiled region.
type Graph struct {
	nodes   []*Node
	Outputs []NodeID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph { return &Graph{} }

// AddNode appends n to the arena and returns its NodeID.
func (g *Graph) AddNode(n *Node) NodeID {
	g.nodes = append(g.nodes, n)
	return NodeID(len(g.nodes) - 1)
}

// Node returns the node at id.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all NodeIDs in arena order, for passes that must visit every
// node regardless of reachability from Outputs.
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, len(g.nodes))
	for i := range ids {
		ids[i] = NodeID(i)
	}
	return ids
}

// Release retires g: every node whose Function implements Disposer has
// Dispose called on it, releasing whatever native resource it holds (most
// notably a compiled node's shared CompiledModule reference). The caller
// that owns the graph's lifecycle (the query engine, once a query has
// finished executing) must call Release exactly once, after which g must
// not be read or rewritten again.
//
// A node whose Function doesn't implement Disposer is skipped; most
// ScalarFunction implementations hold no disposable resource. Release
// keeps disposing every node even after one Dispose fails, matching
// modulecache.Cache.onEvicted's evict-through-failure behavior, and
// returns the first error encountered, if any.
func (g *Graph) Release() error {
	var firstErr error
	for _, node := range g.nodes {
		if node.Function == nil {
			continue
		}
		disposer, ok := node.Function.(Disposer)
		if !ok {
			continue
		}
		if err := disposer.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
