package jit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/internal/compiledag"
)

// ReferenceBackend is a Backend implementation standing in for the real
// native codegen backend, which is explicitly out of scope. It "compiles" a
// CompileDAG by building a row-at-a-time evaluator from each Function node's
// CompileInto hook, the same opaque lowering hook a real backend would use
// to emit IR, just interpreted here instead of assembled to machine code. It
// is otherwise a fully functional Backend for tests.
//
// Modeled on wazero having more than one interchangeable engine behind the
// same wasm.Engine interface (internal/engine/compiler,
// internal/engine/interpreter, internal/engine/wazevo): a reference/
// interpreted implementation living alongside the real one is an ordinary
// shape in this codebase's domain, not a shortcut unique to this core.
type ReferenceBackend struct {
	mu           sync.Mutex
	modules      map[ModuleID]*refModule
	nextID       uint64
	deletedCount uint64
}

type refModule struct {
	dag    *compiledag.DAG
	size   int
	closed bool
}

// NewReferenceBackend returns an empty backend.
func NewReferenceBackend() *ReferenceBackend {
	return &ReferenceBackend{modules: make(map[ModuleID]*refModule)}
}

// Compile implements Backend.
func (b *ReferenceBackend) Compile(_ context.Context, dag *compiledag.DAG) (ModuleInfo, error) {
	if dag.Len() == 0 {
		return ModuleInfo{}, wrapBackendErr("compile", fmt.Errorf("empty CompileDAG"))
	}
	// Reject a Function node without a function descriptor before
	// "emission", the way a real backend's IR builder would reject a
	// malformed lowering at compile time rather than at call time. Argument
	// arity is already enforced by DAG.AddNode.
	for i := 0; i < dag.Len(); i++ {
		node := dag.Index(i)
		if node.Kind == compiledag.NodeFunction && node.Function == nil {
			return ModuleInfo{}, wrapBackendErr("compile", fmt.Errorf("node %d: function node with nil function descriptor", i))
		}
	}

	id := ModuleID(atomic.AddUint64(&b.nextID, 1))
	// Size models the cost of emitting one native op per DAG node plus a
	// fixed preamble, large enough that a handful of compiled expressions
	// meaningfully exercise weighted cache eviction in tests.
	size := 64 + dag.Len()*48

	b.mu.Lock()
	b.modules[id] = &refModule{dag: dag, size: size}
	b.mu.Unlock()

	return ModuleInfo{ID: id, Size: size}, nil
}

// FindCompiledFunction implements Backend.
func (b *ReferenceBackend) FindCompiledFunction(info ModuleInfo, symbol string) (Entry, error) {
	b.mu.Lock()
	mod, ok := b.modules[info.ID]
	b.mu.Unlock()
	if !ok || mod.closed {
		return nil, wrapBackendErr("find_compiled_function", fmt.Errorf("module %d not found", info.ID))
	}
	dag := mod.dag
	if dag.Dump() != symbol {
		return nil, wrapBackendErr("find_compiled_function", fmt.Errorf("no symbol %q in module %d", symbol, info.ID))
	}

	entry := func(rowCount int, columns []Descriptor) {
		evalDAGOverBatch(dag, rowCount, columns)
	}
	return entry, nil
}

// DeleteCompiledModule implements Backend.
func (b *ReferenceBackend) DeleteCompiledModule(info ModuleInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	mod, ok := b.modules[info.ID]
	if !ok {
		return wrapBackendErr("delete_compiled_module", fmt.Errorf("module %d not found", info.ID))
	}
	mod.closed = true
	delete(b.modules, info.ID)
	b.deletedCount++
	return nil
}

// CompileCount reports the number of modules ever compiled, for tests
// asserting testable property 5 (at-most-one compile per fingerprint).
func (b *ReferenceBackend) CompileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(atomic.LoadUint64(&b.nextID))
}

// DeleteCount reports the number of modules ever deleted, for tests
// asserting that every outstanding CompiledModule reference a query holds
// is eventually released, converging DeleteCompiledModule calls to
// CompileCount once every graph built against this backend is disposed.
func (b *ReferenceBackend) DeleteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.deletedCount)
}

// evalDAGOverBatch runs dag row-by-row against the ABI-level column
// descriptors, writing into the last (result) descriptor. Inputs are read
// via the raw pointers the executor materialized; nulls are the callee's
// responsibility per the entry-point ABI, so a node's null bit is
// propagated by OR-ing every input's null bit at that row.
func evalDAGOverBatch(dag *compiledag.DAG, rowCount int, columns []Descriptor) {
	resultDesc := columns[len(columns)-1]
	resultType := dag.Back().ResultType
	width := resultType.ByteWidth()

	inputPositions := inputNodePositions(dag)
	args := make([]float64, len(inputPositions))
	argNulls := make([]bool, len(inputPositions))

	for row := 0; row < rowCount; row++ {
		for k, pos := range inputPositions {
			desc := columns[k]
			w := dag.Index(pos).ResultType.ByteWidth()
			args[k] = column.DecodeScalar(dag.Index(pos).ResultType, ptrSlice(desc.Data, row*w, w))
			argNulls[k] = desc.NullMap != nil && *(*byte)(unsafe.Add(desc.NullMap, row)) != 0
		}

		value, isNull, err := compiledag.EvalScalar(dag, args, argNulls)
		if err != nil {
			isNull = true
		}

		if resultDesc.NullMap != nil {
			b := byte(0)
			if isNull {
				b = 1
			}
			*(*byte)(unsafe.Add(resultDesc.NullMap, row)) = b
		}
		if !isNull {
			encoded := column.EncodeScalar(resultType, value)
			dst := ptrSlice(resultDesc.Data, row*width, width)
			copy(dst, encoded)
		}
	}
}

// inputNodePositions returns the DAG positions of its Input nodes, in order,
// matching the order the executor lays out the ABI's input column
// descriptors in.
func inputNodePositions(dag *compiledag.DAG) []int {
	var positions []int
	for i := 0; i < dag.Len(); i++ {
		if dag.Index(i).Kind == compiledag.NodeInput {
			positions = append(positions, i)
		}
	}
	return positions
}

// ptrSlice builds a []byte view of width bytes starting at offset from a raw
// pointer, the same unsafe-pointer-arithmetic idiom wazero's engines use to
// address into mmap'd executable/data buffers (e.g.
// internal/engine/wazevo/engine.go's use of unsafe.Pointer over []byte
// buffers).
func ptrSlice(base unsafe.Pointer, offset, width int) []byte {
	if base == nil || width == 0 {
		return nil
	}
	ptr := unsafe.Add(base, offset)
	return unsafe.Slice((*byte)(ptr), width)
}

var _ Backend = (*ReferenceBackend)(nil)
