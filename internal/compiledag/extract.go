package compiledag

import (
	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/nativetype"
)

// Extract produces a CompileDAG from root and the external children that
// became Input leaves in it, in source order. It never recurses: an
// explicit work stack tolerates arbitrarily deep actions graphs.
//
// A visited map from actions.NodeID to CompileDAG position ensures shared
// subexpressions get a single CompileNode: without it, a diamond
// f(g(x), g(x)) would produce two separate Function nodes for g, doubling
// work and changing the fingerprint. The map is local to this one
// extraction call; it is not a cache across rewrites.
func Extract(graph *actions.Graph, root actions.NodeID) (dag *DAG, externalChildren []actions.NodeID, err error) {
	dag = New()
	visited := make(map[actions.NodeID]int)

	type frame struct {
		node         actions.NodeID
		nextChild    int
	}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		node := graph.Node(top.node)

		isConst := nativetype.IsCompilableConstant(node)
		isFunc := node.IsFunctionNode() && nativetype.IsCompilableFunction(node.Function)

		if !isFunc || isConst {
			var cn Node
			cn.ResultType = node.ResultType
			if isConst {
				cn.Kind = NodeConstant
				cn.Column = node.Column
			} else {
				cn.Kind = NodeInput
				externalChildren = append(externalChildren, top.node)
			}
			pos, addErr := dag.AddNode(cn)
			if addErr != nil {
				return nil, nil, addErr
			}
			visited[top.node] = pos
			stack = stack[:len(stack)-1]
			continue
		}

		advanced := false
		for top.nextChild < len(node.Children) {
			child := node.Children[top.nextChild]
			if _, ok := visited[child]; ok {
				top.nextChild++
				continue
			}
			stack = append(stack, frame{node: child})
			advanced = true
			break
		}
		if advanced {
			continue
		}

		// All children visited: emit this node's Function CompileNode.
		cn := Node{Kind: NodeFunction, ResultType: node.ResultType, Function: node.Function}
		cn.Arguments = make([]int, len(node.Children))
		for i, child := range node.Children {
			cn.Arguments[i] = visited[child]
		}
		pos, addErr := dag.AddNode(cn)
		if addErr != nil {
			return nil, nil, addErr
		}
		visited[top.node] = pos
		stack = stack[:len(stack)-1]
	}

	return dag, externalChildren, nil
}
