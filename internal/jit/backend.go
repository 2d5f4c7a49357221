// Package jit defines the codegen backend interface the compilation core
// depends on, the shared-ownership CompiledModule handle, and a reference
// backend implementation used both as a degenerate/testing stand-in and to
// exercise the rest of the core end to end. The real native object-file
// emission and symbol resolution belong to the codegen backend, which is
// explicitly out of scope; this package only consumes it through the
// narrow Backend interface.
package jit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vectorq/exprjit/internal/column"
	"github.com/vectorq/exprjit/internal/compiledag"
)

// ErrBackendFailure wraps a codegen backend error: symbol-not-found, compile
// error, or link error. It is always used with %w so
// callers can unwrap the underlying cause.
var ErrBackendFailure = errors.New("jit: backend failure")

// ModuleID opaquely identifies one compiled module within a Backend.
type ModuleID uint64

// ModuleInfo is what Backend.Compile returns: an opaque module identifier
// and the compiled object's size in bytes, used for cache weighting.
type ModuleInfo struct {
	ID   ModuleID
	Size int
}

// Entry is a resolved, callable entry point: invoked with the batch row
// count and the arity+1 column descriptors (inputs followed by the
// pre-sized output column). The real calling convention is produced by the
// codegen backend; a Go function value is the idiomatic stand-in for "an
// address with a fixed signature; the caller doesn't need to know how it
// was generated."
type Entry func(rowCount int, columns []Descriptor)

// Descriptor is the entry-point ABI's column descriptor.
type Descriptor = column.Descriptor

// Backend is the narrow interface the core consumes the codegen backend
// through. Implementations must be goroutine-safe:
// many query threads may compile simultaneously.
type Backend interface {
	// Compile lowers dag into a named native module. The module's symbol
	// name is dag.Dump(), so the entry symbol is resolvable by the DAG's
	// own canonical dump.
	Compile(ctx context.Context, dag *compiledag.DAG) (ModuleInfo, error)
	// FindCompiledFunction resolves symbol within the module identified by
	// info to a callable entry point.
	FindCompiledFunction(info ModuleInfo, symbol string) (Entry, error)
	// DeleteCompiledModule releases a module. Called exactly once, only
	// after every CompiledModule wrapping info has dropped its last shared
	// reference.
	DeleteCompiledModule(info ModuleInfo) error
}

// CompiledModule owns a backend module handle, its byte size, and its
// resolved entry-point address. It is shared-ownership: read-only once
// published, and destroyed (which calls back into the backend to release
// the module) only when every shared reference has dropped.
//
// Unlike wazero's finalizer-based cleanup of its own compiled executables
// (runtime.SetFinalizer in internal/engine/wazevo), CompiledModule uses an
// explicit atomic reference count: the backend-release callback must run
// deterministically the instant the last shared reference drops, and a GC
// finalizer gives no such guarantee: it may run arbitrarily late, or not
// promptly enough for a bounded-capacity cache that needs byte weight
// reclaimed as soon as an eviction's last holder lets go. See DESIGN.md.
type CompiledModule struct {
	backend Backend
	info    ModuleInfo
	entry   Entry
	symbol  string

	refs int32 // atomic
}

// NewCompiledModule wraps a freshly-compiled module with one outstanding
// reference, owned by the caller.
func NewCompiledModule(backend Backend, info ModuleInfo, entry Entry, symbol string) *CompiledModule {
	return &CompiledModule{backend: backend, info: info, entry: entry, symbol: symbol, refs: 1}
}

// Size returns the compiled object's byte size, used for cache weighting.
func (m *CompiledModule) Size() int { return m.info.Size }

// Entry returns the resolved entry-point address.
func (m *CompiledModule) Entry() Entry { return m.entry }

// Symbol returns the module's symbol name (the CompileDAG's Dump()).
func (m *CompiledModule) Symbol() string { return m.symbol }

// Retain increments the shared reference count and returns m, so a caller
// can write `held := m.Retain()` when handing a new reference to another
// owner (a cache entry, an executor). Retain must not be called once the
// last Release has already fired.
func (m *CompiledModule) Retain() *CompiledModule {
	if atomic.AddInt32(&m.refs, 1) <= 1 {
		panic("jit: Retain called on a CompiledModule with no outstanding references")
	}
	return m
}

// Release drops one shared reference. When the last reference drops, the
// backend is asked to release the underlying module; no concurrent
// executor may dereference Entry() after this point, which is the entire
// safety argument of the shared-ownership contract.
func (m *CompiledModule) Release() error {
	if atomic.AddInt32(&m.refs, -1) == 0 {
		return m.backend.DeleteCompiledModule(m.info)
	}
	return nil
}

// refCount reports the current outstanding reference count, for tests.
func (m *CompiledModule) refCount() int32 { return atomic.LoadInt32(&m.refs) }

func wrapBackendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrBackendFailure, op, err)
}
