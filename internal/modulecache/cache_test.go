package modulecache_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorq/exprjit/internal/compiledag"
	"github.com/vectorq/exprjit/internal/jit"
	"github.com/vectorq/exprjit/internal/modulecache"
	"github.com/vectorq/exprjit/internal/testfn"
	"github.com/vectorq/exprjit/types"
)

var i32 = types.Type{Kind: types.KindInt32}

func buildDAG(t *testing.T, fnName string) *compiledag.DAG {
	t.Helper()
	dag := compiledag.New()
	_, err := dag.AddNode(compiledag.Node{Kind: compiledag.NodeInput, ResultType: i32})
	require.NoError(t, err)
	_, err = dag.AddNode(compiledag.Node{Kind: compiledag.NodeInput, ResultType: i32})
	require.NoError(t, err)
	fn := testfn.Plus(i32)
	fn.FnName = fnName
	_, err = dag.AddNode(compiledag.Node{Kind: compiledag.NodeFunction, ResultType: i32, Function: fn, Arguments: []int{0, 1}})
	require.NoError(t, err)
	return dag
}

func compileEntry(t *testing.T, backend jit.Backend, dag *compiledag.DAG) *modulecache.Entry {
	t.Helper()
	info, err := backend.Compile(context.Background(), dag)
	require.NoError(t, err)
	entry, err := backend.FindCompiledFunction(info, dag.Dump())
	require.NoError(t, err)
	module := jit.NewCompiledModule(backend, info, entry, dag.Dump())
	return &modulecache.Entry{Module: module, Weight: module.Size()}
}

func TestGetOrSetMissThenHit(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dag := buildDAG(t, "plus_a")
	cache := modulecache.NewCache(1 << 20)

	producerCalls := 0
	producer := func() (*modulecache.Entry, error) {
		producerCalls++
		return compileEntry(t, backend, dag), nil
	}

	_, inserted1, err := cache.GetOrSet(dag.Hash(), producer)
	require.NoError(t, err)
	require.True(t, inserted1)

	_, inserted2, err := cache.GetOrSet(dag.Hash(), producer)
	require.NoError(t, err)
	require.False(t, inserted2, "a second GetOrSet for the same fingerprint is a hit")
	require.Equal(t, 1, producerCalls, "producer must run exactly once")
}

func TestGetOrSetConcurrentCallersShareOneCompile(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dag := buildDAG(t, "plus_b")
	cache := modulecache.NewCache(1 << 20)

	var mu sync.Mutex
	producerCalls := 0
	producer := func() (*modulecache.Entry, error) {
		mu.Lock()
		producerCalls++
		mu.Unlock()
		return compileEntry(t, backend, dag), nil
	}

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := cache.GetOrSet(dag.Hash(), producer)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, producerCalls, "at most one compile per fingerprint under concurrency")
	require.Equal(t, 1, backend.CompileCount())
}

func TestCacheEvictsByWeightWhenOverCapacity(t *testing.T) {
	backend := jit.NewReferenceBackend()
	dagA := buildDAG(t, "plus_c")
	dagB := buildDAG(t, "plus_d")

	entryA := compileEntry(t, backend, dagA)
	cache := modulecache.NewCache(int64(entryA.Weight)) // room for exactly one entry

	_, _, err := cache.GetOrSet(dagA.Hash(), func() (*modulecache.Entry, error) { return entryA, nil })
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	_, _, err = cache.GetOrSet(dagB.Hash(), func() (*modulecache.Entry, error) {
		return compileEntry(t, backend, dagB), nil
	})
	require.NoError(t, err)

	require.Equal(t, 1, cache.Len(), "inserting a second entry must evict the first to stay within capacity")
	require.LessOrEqual(t, cache.Weight(), cache.Capacity())
}
