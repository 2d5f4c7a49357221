// Package compiledag implements CompileDAG: a linear, self-contained,
// serializable representation of one compilable subgraph extracted from the
// actions graph, plus the extraction algorithm that produces one.
package compiledag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/types"
)

// ErrInvalidCompileDAG is returned by AddNode when a Function node's
// argument index is not strictly less than the node's own position.
var ErrInvalidCompileDAG = errors.New("compiledag: invalid CompileDAG")

// NodeKind tags a CompileNode.
type NodeKind int

const (
	NodeInput NodeKind = iota
	NodeConstant
	NodeFunction
)

// Node is one position in a CompileDAG.
type Node struct {
	Kind       NodeKind
	ResultType types.Type
	Function   actions.ScalarFunction // set iff Kind == NodeFunction
	Column     *column.Column         // set iff Kind == NodeConstant
	Arguments  []int                  // set iff Kind == NodeFunction; positions < own index
}

// Fingerprint is the 128-bit structural hash of a CompileDAG; the cache key.
type Fingerprint [16]byte

// String renders the fingerprint as hex, for use as a cache/singleflight key
// and in log lines.
func (f Fingerprint) String() string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range f {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

// DAG is an ordered list of Nodes forming a bottom-up evaluation order:
// every Function node's Arguments reference positions strictly less than
// its own. Construction is single-threaded; once built a DAG is immutable
// and freely shareable across goroutines.
type DAG struct {
	nodes []Node
}

// New returns an empty CompileDAG.
func New() *DAG { return &DAG{} }

// AddNode appends n and returns the position assigned. It fails with
// ErrInvalidCompileDAG if n is a Function node whose arity doesn't match its
// argument count, or any argument position is >= the node's own index.
func (d *DAG) AddNode(n Node) (int, error) {
	pos := len(d.nodes)
	if n.Kind == NodeFunction {
		if n.Function != nil && len(n.Arguments) != len(n.Function.ArgumentTypes()) {
			return 0, fmt.Errorf("%w: function %q expects %d arguments, got %d",
				ErrInvalidCompileDAG, n.Function.Name(), len(n.Function.ArgumentTypes()), len(n.Arguments))
		}
		for _, arg := range n.Arguments {
			if arg >= pos {
				return 0, fmt.Errorf("%w: argument position %d >= node position %d", ErrInvalidCompileDAG, arg, pos)
			}
		}
	}
	d.nodes = append(d.nodes, n)
	return pos, nil
}

// Len returns the number of nodes.
func (d *DAG) Len() int { return len(d.nodes) }

// Index returns the node at position i.
func (d *DAG) Index(i int) Node { return d.nodes[i] }

// Back returns the last node, the DAG's root.
func (d *DAG) Back() Node { return d.nodes[len(d.nodes)-1] }

// InputCount returns the number of NodeInput nodes. A DAG with zero inputs
// is constant-only and must be skipped by the caller.
func (d *DAG) InputCount() int {
	n := 0
	for _, node := range d.nodes {
		if node.Kind == NodeInput {
			n++
		}
	}
	return n
}

// Dump renders a canonical textual form of the DAG: stable across runs,
// embedding node kinds, function names, and type names. Used as the
// compiled function's human name, for logging, and as the backend module
// symbol name.
func (d *DAG) Dump() string {
	var b strings.Builder
	for i, node := range d.nodes {
		if i > 0 {
			b.WriteByte('_')
		}
		switch node.Kind {
		case NodeInput:
			fmt.Fprintf(&b, "input(%s)", node.ResultType)
		case NodeConstant:
			fmt.Fprintf(&b, "const(%s)", node.ResultType)
		case NodeFunction:
			fmt.Fprintf(&b, "%s(", node.Function.Name())
			for j, arg := range node.Arguments {
				if j > 0 {
					b.WriteByte(',')
				}
				fmt.Fprintf(&b, "%d", arg)
			}
			b.WriteByte(')')
		}
	}
	return b.String()
}

// Hash computes the DAG's 128-bit fingerprint: a deterministic hash over the
// sequence of node kinds, referenced function identities, data-type
// identities, constant values, and argument-position tuples. Two CompileDAGs
// with equal fingerprints must compile to semantically identical native
// code, which is why constant *values*, not just constant
// *types*, feed the hash.
func (d *DAG) Hash() Fingerprint {
	h := murmur3.New128()
	var scratch [8]byte
	writeUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		h.Write(scratch[:])
	}
	for _, node := range d.nodes {
		h.Write([]byte{byte(node.Kind)})
		h.Write([]byte{node.ResultType.Kind})
		if node.ResultType.Nullable {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		switch node.Kind {
		case NodeConstant:
			if node.Column != nil {
				if node.Column.IsConst() {
					h.Write(node.Column.ConstValue())
					if node.Column.ConstNull() {
						h.Write([]byte{1})
					} else {
						h.Write([]byte{0})
					}
				} else {
					h.Write(node.Column.RawData())
					h.Write(node.Column.RawNullMap())
				}
			}
		case NodeFunction:
			h.Write([]byte(node.Function.Name()))
			writeUint64(uint64(len(node.Arguments)))
			for _, arg := range node.Arguments {
				writeUint64(uint64(arg))
			}
		}
	}
	hi, lo := h.Sum128()
	var fp Fingerprint
	binary.BigEndian.PutUint64(fp[0:8], hi)
	binary.BigEndian.PutUint64(fp[8:16], lo)
	return fp
}
