// Package compiler implements the throttle-then-cache compile orchestration,
// and CompiledFunction, the ScalarFunction wrapper a compiled CompileDAG
// becomes once it's spliced back into the actions graph: itself
// IsCompilable, so it can be absorbed into a later, larger CompileDAG.
package compiler

import (
	"context"
	"sync"

	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/internal/compiledag"
	"github.com/vectorq/exprjit/internal/jit"
	"github.com/vectorq/exprjit/internal/modulecache"
	"github.com/vectorq/exprjit/internal/monotonicity"
	"github.com/vectorq/exprjit/internal/xlog"
	"github.com/vectorq/exprjit/types"
)

// throttle is the process-wide compile-count-per-fingerprint counter: a
// CompileDAG is only actually compiled once its fingerprint has been seen
// strictly more than minCountToCompile times, so a one-off query expression
// never pays compilation cost for a single execution.
var throttle = struct {
	mu     sync.Mutex
	counts map[compiledag.Fingerprint]uint64
}{counts: make(map[compiledag.Fingerprint]uint64)}

// countAndCheck increments fp's seen-count and reports whether it has now
// been observed strictly more than minCountToCompile times: call m+1, never
// earlier.
func countAndCheck(fp compiledag.Fingerprint, minCountToCompile uint64) (count uint64, ready bool) {
	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	throttle.counts[fp]++
	count = throttle.counts[fp]
	return count, count > minCountToCompile
}

// Compile implements the compile orchestration. When a process-wide cache is
// configured, a CompileDAG past the throttle threshold is compiled at most
// once per fingerprint, regardless of how many goroutines race to compile the
// identical DAG at the same time, and the resulting module is shared from the
// cache. Without a cache, every call past the threshold compiles the DAG
// inline into a fresh module.
//
// Compile returns (nil, nil) while the DAG's fingerprint has not yet been seen
// more than minCountToCompile times: the caller (the rewriter) must treat that
// as "skip this node for now," not as an error.
func Compile(ctx context.Context, backend jit.Backend, dag *compiledag.DAG, minCountToCompile uint64) (*CompiledFunction, error) {
	fp := dag.Hash()

	count, ready := countAndCheck(fp, minCountToCompile)
	if !ready {
		xlog.Tracef("compiler: fingerprint %s seen %d times, not yet past threshold %d", fp, count, minCountToCompile)
		return nil, nil
	}

	cache, hasCache := modulecache.Instance().TryGetCache()
	if !hasCache {
		xlog.Tracef("compiler: no process-wide cache configured, compiling %s inline", fp)
		module, err := compileModule(ctx, backend, dag)
		if err != nil {
			return nil, err
		}
		return newCompiledFunction(dag, module), nil
	}

	entry, wasInserted, err := cache.GetOrSet(fp, func() (*modulecache.Entry, error) {
		module, err := compileModule(ctx, backend, dag)
		if err != nil {
			return nil, err
		}
		return &modulecache.Entry{Module: module, Weight: module.Size()}, nil
	})
	if err != nil {
		return nil, err
	}
	if wasInserted {
		xlog.Tracef("compiler: fingerprint %s compiled and cached, weight=%d used=%d/%d", fp, entry.Weight, cache.Weight(), cache.Capacity())
	} else {
		xlog.Tracef("compiler: fingerprint %s served from cache", fp)
	}

	return newCompiledFunction(dag, entry.Module), nil
}

// compileModule asks backend to lower dag, resolves its entry symbol, and
// wraps the result in a fresh, singly-owned CompiledModule.
func compileModule(ctx context.Context, backend jit.Backend, dag *compiledag.DAG) (*jit.CompiledModule, error) {
	symbol := dag.Dump()
	info, err := backend.Compile(ctx, dag)
	if err != nil {
		return nil, err
	}
	entry, err := backend.FindCompiledFunction(info, symbol)
	if err != nil {
		return nil, err
	}
	return jit.NewCompiledModule(backend, info, entry, symbol), nil
}

// CompiledFunction is a ScalarFunction implementation standing in for the
// whole absorbed CompileDAG region: the actions graph rewriter replaces a
// compilable subgraph's root node with a single Function node carrying one
// of these, with Children set to the extraction's external_children.
//
// Its capability flags are composed across every nested Function node in the
// CompileDAG via package monotonicity's AND/XOR folds, exactly as
// ExpressionJIT.cpp's LLVMFunction composes is_deterministic,
// is_suitable_for_constant_folding, and monotonicity across the functions it
// absorbed.
type CompiledFunction struct {
	dag    *compiledag.DAG
	module *jit.CompiledModule

	chain []actions.ScalarFunction // every nested Function node's descriptor, in DAG order
}

func newCompiledFunction(dag *compiledag.DAG, module *jit.CompiledModule) *CompiledFunction {
	cf := &CompiledFunction{dag: dag, module: module}
	for i := 0; i < dag.Len(); i++ {
		if node := dag.Index(i); node.Kind == compiledag.NodeFunction {
			cf.chain = append(cf.chain, node.Function)
		}
	}
	return cf
}

// Name returns the CompileDAG's canonical dump, used as both the backend
// module symbol and this function's display name.
func (cf *CompiledFunction) Name() string { return cf.module.Symbol() }

// ArgumentTypes returns the result types of the DAG's Input nodes, in order.
func (cf *CompiledFunction) ArgumentTypes() []types.Type {
	var argTypes []types.Type
	for i := 0; i < cf.dag.Len(); i++ {
		if node := cf.dag.Index(i); node.Kind == compiledag.NodeInput {
			argTypes = append(argTypes, node.ResultType)
		}
	}
	return argTypes
}

// ResultType returns the CompileDAG root's result type.
func (cf *CompiledFunction) ResultType() types.Type { return cf.dag.Back().ResultType }

// IsCompilable always reports true: a compiled function is itself a valid
// compilation target if later absorbed into a larger CompileDAG, subject to
// the same IsCompilableFunction checks as any other function descriptor.
func (cf *CompiledFunction) IsCompilable() bool { return true }

func (cf *CompiledFunction) IsDeterministic() bool { return monotonicity.IsDeterministic(cf.chain) }

func (cf *CompiledFunction) IsDeterministicInScopeOfQuery() bool {
	return monotonicity.IsDeterministicInScopeOfQuery(cf.chain)
}

func (cf *CompiledFunction) IsSuitableForConstantFolding() bool {
	return monotonicity.IsSuitableForConstantFolding(cf.chain)
}

func (cf *CompiledFunction) IsInjective(sampleColumns []*column.Column) bool {
	return monotonicity.IsInjective(cf.chain, sampleColumns)
}

func (cf *CompiledFunction) HasMonotonicityInformation() bool {
	return monotonicity.HasMonotonicityInformation(cf.chain)
}

// GetMonotonicityForRange composes monotonicity across every nested function
// in the CompileDAG, left to right.
func (cf *CompiledFunction) GetMonotonicityForRange(argType types.Type, left, right *actions.Field) actions.Monotonicity {
	return monotonicity.ComposeChain(cf.chain, argType, left, right)
}

// Dispose releases cf's shared reference to its underlying CompiledModule,
// satisfying actions.Disposer. The graph owner must call this exactly once
// when the node carrying cf is retired (see actions.Graph.Release); cf must
// not be used again afterward. On the cached path this drops the reference
// GetOrSet retained on the caller's behalf; on the inline path it drops
// compileModule's original reference. Either way, the backend's
// DeleteCompiledModule only fires once every other outstanding reference
// (e.g. the cache's own, dropped on eviction) has also been released.
func (cf *CompiledFunction) Dispose() error {
	return cf.module.Release()
}

// CompileInto evaluates the wrapped CompileDAG directly against args, using
// the same authoritative interpreter evalDAGOverBatch's per-row loop calls,
// so a CompiledFunction re-absorbed into a later, larger extraction agrees
// exactly with how it would have evaluated standalone.
func (cf *CompiledFunction) CompileInto(args []float64) (float64, error) {
	nulls := make([]bool, len(args))
	value, isNull, err := compiledag.EvalScalar(cf.dag, args, nulls)
	if err != nil {
		return 0, err
	}
	if isNull {
		return 0, compiledag.ErrNullInput
	}
	return value, nil
}

// Prepare binds cf to a fixed argument list and returns an Executable
// realizing the batch-execution contract: empty-batch short-circuit,
// result-column allocation, constant-column materialization, descriptor
// assembly, and the entry-point invocation.
func (cf *CompiledFunction) Prepare(arguments []*actions.Node) (actions.Executable, error) {
	return &executable{module: cf.module}, nil
}

type executable struct {
	module *jit.CompiledModule
}

// Execute implements actions.Executable.
func (e *executable) Execute(args []*column.Column, resultType types.Type, rowCount int) (*column.Column, error) {
	result := column.New(resultType, rowCount)
	if rowCount == 0 {
		return result, nil
	}

	descriptors := make([]column.Descriptor, len(args)+1)
	for i, arg := range args {
		dense := arg.MaterializeFull()
		descriptors[i] = dense.Descriptor()
	}
	descriptors[len(args)] = result.Descriptor()

	e.module.Entry()(rowCount, descriptors)
	result.MarkInitialized()

	return result, nil
}

var _ actions.Disposer = (*CompiledFunction)(nil)
