// Package column provides the minimal columnar batch primitives the
// compiled-function entry-point ABI and the executor operate on. The real
// column container and its constant-compressed representation belong to the
// query engine's type system, which this core only consumes abstractly;
// this package exists to give that abstract contract something concrete to
// exercise in tests.
package column

import (
	"unsafe"

	"github.com/vectorq/exprjit/types"
)

// Descriptor is one entry of the entry-point ABI's columns[] array: a
// pointer to the raw value storage, and a pointer to the null map, or nil if
// the column is not nullable.
type Descriptor struct {
	Data    unsafe.Pointer
	NullMap unsafe.Pointer
}

// Column is a materialized, dense column: every value is present at its row
// offset with no constant compression. Entry points only ever see Columns
// that satisfy this.
type Column struct {
	typ     types.Type
	len     int
	data    []byte
	nullMap []byte // len(nullMap) == len when typ.Nullable, else nil

	// constValue/isConst describe a constant-compressed column: one logical
	// value repeated len times. MaterializeFull expands this into data.
	isConst    bool
	constValue []byte
	constNull  bool
}

// Type returns the column's logical type.
func (c *Column) Type() types.Type { return c.typ }

// Len returns the number of logical rows.
func (c *Column) Len() int { return c.len }

// IsConst reports whether the column is constant-compressed.
func (c *Column) IsConst() bool { return c.isConst }

// New allocates a dense zero-valued column of rowCount rows.
func New(typ types.Type, rowCount int) *Column {
	width := typ.ByteWidth()
	c := &Column{typ: typ, len: rowCount, data: make([]byte, width*rowCount)}
	if typ.Nullable {
		c.nullMap = make([]byte, rowCount)
	}
	return c
}

// NewConst builds a constant-compressed column of rowCount rows all sharing
// value (and, if nullable, all sharing the null flag).
func NewConst(typ types.Type, rowCount int, value []byte, isNull bool) *Column {
	return &Column{typ: typ, len: rowCount, isConst: true, constValue: value, constNull: isNull}
}

// MaterializeFull returns a dense column equivalent to c: if c is already
// dense, c itself is returned; if c is constant-compressed, a new dense
// column is allocated and the constant value (and null flag) is replicated
// into every row. The returned column is never constant-compressed, matching
// the entry-point ABI's requirement that every argument column be dense.
func (c *Column) MaterializeFull() *Column {
	if !c.isConst {
		return c
	}
	width := c.typ.ByteWidth()
	dense := New(c.typ, c.len)
	for row := 0; row < c.len; row++ {
		copy(dense.data[row*width:(row+1)*width], c.constValue)
		if dense.nullMap != nil && c.constNull {
			dense.nullMap[row] = 1
		}
	}
	return dense
}

// Descriptor returns the ABI-level view of a dense column. It panics if c is
// still constant-compressed; callers must MaterializeFull first.
func (c *Column) Descriptor() Descriptor {
	if c.isConst {
		panic("column: Descriptor called on constant-compressed column")
	}
	d := Descriptor{}
	if len(c.data) > 0 {
		d.Data = unsafe.Pointer(&c.data[0])
	}
	if len(c.nullMap) > 0 {
		d.NullMap = unsafe.Pointer(&c.nullMap[0])
	}
	return d
}

// RawData exposes the dense value buffer, for tests reading out results.
func (c *Column) RawData() []byte { return c.data }

// RawNullMap exposes the dense null map, or nil if the column isn't nullable.
func (c *Column) RawNullMap() []byte { return c.nullMap }

// ConstValue exposes the repeated value of a constant-compressed column.
func (c *Column) ConstValue() []byte { return c.constValue }

// ConstNull reports whether a constant-compressed column's repeated value is
// null.
func (c *Column) ConstNull() bool { return c.constNull }

// MarkInitialized is the sanitiser-cooperation hook: when memory-sanitising
// instrumentation is present and the emitted code isn't itself instrumented,
// the result buffer (and, for nullable results, the null map) must be
// marked initialized after every compiled-function invocation, because the
// sanitizer cannot observe native stores. This is a no-op build (no msan
// tag), kept so callers have one place to call unconditionally.
func (c *Column) MarkInitialized() {}
