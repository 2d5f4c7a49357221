// Package rewriter implements CompileFunctions, the top-level rewrite pass:
// it walks the whole actions graph, classifies every node's compilability,
// selects a frontier of maximal compilable subtrees, extracts and compiles
// each through package compiler, and splices the result back into the graph
// in place.
//
// A compiled node's Function holds a shared reference to its backend
// module; once the query engine that owns graph is done with it, it must
// call graph.Release() to give that reference back, or the backend's
// module never gets released. CompileFunctions itself never calls Release:
// a graph may be rewritten, executed many times, and rewritten again before
// the query it belongs to finishes.
package rewriter

import (
	"context"
	"sort"

	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/compiledag"
	"github.com/vectorq/exprjit/internal/compiler"
	"github.com/vectorq/exprjit/internal/jit"
	"github.com/vectorq/exprjit/internal/nativetype"
)

// nodeMeta carries the per-node metadata passes 1-4 accumulate. Kept
// separate from actions.Node because it's only ever needed during one
// rewrite pass, not part of the graph's own persistent state.
type nodeMeta struct {
	isCompilableInIsolation bool
	compilableChildrenSize  int
	childrenSize            int
	allParentsCompilable    bool
}

// CompileFunctions runs one rewrite pass over graph: classify, select a
// maximal frontier of compilable regions, and replace each selected node's
// subtree with a single compiled Function node, in children_size-descending
// order. It never recurses: every pass below is an iterative, explicit
// stack-based traversal, so arbitrarily deep actions graphs are tolerated.
func CompileFunctions(ctx context.Context, graph *actions.Graph, backend jit.Backend, minCountToCompile uint64) error {
	meta := make(map[actions.NodeID]*nodeMeta, graph.Len())
	for _, id := range graph.Nodes() {
		meta[id] = &nodeMeta{allParentsCompilable: true}
	}

	pass1Classify(graph, meta)
	pass2Accumulate(graph, meta)
	pass3FrontierLift(graph, meta)
	selected := pass4Select(graph, meta)

	sort.Slice(selected, func(i, j int) bool {
		return meta[selected[i]].childrenSize > meta[selected[j]].childrenSize
	})

	for _, id := range selected {
		if err := rewriteNode(ctx, graph, id, backend, minCountToCompile); err != nil {
			return err
		}
	}
	return nil
}

// pass1Classify sets is_compilable_in_isolation for every node.
func pass1Classify(graph *actions.Graph, meta map[actions.NodeID]*nodeMeta) {
	for _, id := range graph.Nodes() {
		node := graph.Node(id)
		isFunc := node.IsFunctionNode() && nativetype.IsCompilableFunction(node.Function)
		isConst := nativetype.IsCompilableConstant(node)
		meta[id].isCompilableInIsolation = isFunc && !isConst
	}
}

// pass2Accumulate computes compilable_children_size and children_size for
// every node via an iterative, stack-based post-order traversal that visits
// every root in the graph, not just Outputs, since a node excluded from the
// Outputs set can still be someone else's child needing its own counts.
//
// Accumulation reads current_node.Children, the node actually being
// finalized on this stack frame, never the outer loop variable's Children.
// Reading the outer loop variable's children instead is a bug worth naming
// explicitly: on a shared (diamond) subgraph the two differ, and the wrong
// read miscomputes compilable_children_size for every node finalized after
// the first. See DESIGN.md.
func pass2Accumulate(graph *actions.Graph, meta map[actions.NodeID]*nodeMeta) {
	visited := make(map[actions.NodeID]bool, graph.Len())

	type frame struct {
		node      actions.NodeID
		nextChild int
	}

	for _, root := range graph.Nodes() {
		if visited[root] {
			continue
		}
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			currentNode := graph.Node(top.node)

			if visited[top.node] {
				stack = stack[:len(stack)-1]
				continue
			}

			advanced := false
			for top.nextChild < len(currentNode.Children) {
				child := currentNode.Children[top.nextChild]
				top.nextChild++
				if !visited[child] {
					stack = append(stack, frame{node: child})
					advanced = true
					break
				}
			}
			if advanced {
				continue
			}

			// Accumulation only happens for a node that is itself
			// compilable in isolation, matching the original's
			// current_node_data.is_compilable_in_isolation guard around
			// the entire accumulation block. A non-compilable node (an
			// Input, Alias, or a function that isn't natively compilable)
			// keeps childrenSize/compilableChildrenSize at zero; it is
			// never a candidate sort key or accumulation source.
			m := meta[top.node]
			if m.isCompilableInIsolation {
				for _, child := range currentNode.Children {
					cm := meta[child]
					if cm.isCompilableInIsolation {
						m.compilableChildrenSize += 1 + cm.compilableChildrenSize
					}
					m.childrenSize += cm.childrenSize
				}
				m.childrenSize += len(currentNode.Children)
			}

			visited[top.node] = true
			stack = stack[:len(stack)-1]
		}
	}
}

// pass3FrontierLift propagates all_parents_compilable=false one hop below
// every non-leaf compilable region, and forces it false on every output node.
func pass3FrontierLift(graph *actions.Graph, meta map[actions.NodeID]*nodeMeta) {
	for _, id := range graph.Nodes() {
		m := meta[id]
		if m.isCompilableInIsolation && m.compilableChildrenSize > 0 {
			node := graph.Node(id)
			for _, child := range node.Children {
				meta[child].allParentsCompilable = false
			}
		}
	}
	for _, id := range graph.Outputs {
		meta[id].allParentsCompilable = false
	}
}

// pass4Select returns should_compile(n) == true nodes: maximal compilable
// roots with at least one compilable child and no compilable parent that
// will subsume them.
func pass4Select(graph *actions.Graph, meta map[actions.NodeID]*nodeMeta) []actions.NodeID {
	var selected []actions.NodeID
	for _, id := range graph.Nodes() {
		m := meta[id]
		if m.isCompilableInIsolation && m.compilableChildrenSize > 0 && !m.allParentsCompilable {
			selected = append(selected, id)
		}
	}
	return selected
}

// rewriteNode extracts, compiles, and splices a single selected node:
// extract its CompileDAG, compile it, and splice the result back in place. A
// throttled or constant-only extraction is silently skipped, not an error;
// only backend/compile failures propagate.
func rewriteNode(ctx context.Context, graph *actions.Graph, id actions.NodeID, backend jit.Backend, minCountToCompile uint64) error {
	dag, externalChildren, err := compiledag.Extract(graph, id)
	if err != nil {
		return err
	}
	if dag.InputCount() == 0 {
		return nil
	}

	fn, err := compiler.Compile(ctx, backend, dag, minCountToCompile)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}

	node := graph.Node(id)
	exec, err := fn.Prepare(nil)
	if err != nil {
		return err
	}

	node.Kind = actions.KindFunction
	node.Function = fn
	node.Executable = exec
	node.Children = externalChildren
	node.IsCompiled = true
	node.Column = nil
	node.ResultType = fn.ResultType()

	return nil
}
