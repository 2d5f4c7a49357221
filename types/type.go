// Package types defines the logical data types the compilation core reasons
// about. The full columnar type system (arrays, tuples, maps, strings, their
// serialization) is an external collaborator; this package only carries
// enough of it for the native-type predicate and the CompileDAG to work.
package types

import "fmt"

// Kind classifies a logical data type.
type Kind = byte

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	// KindDate is a fixed-point date, exposed as an int32 day offset.
	KindDate
	// KindDateTime is a fixed-point timestamp, exposed as an int64.
	KindDateTime

	// Composite kinds. None of these are native.
	KindString
	KindArray
	KindTuple
	KindMap
)

// Type is a logical data type: a Kind plus a Nullable flag. Composite kinds
// carry no element or member types here; that part of the type system lives
// outside this core.
type Type struct {
	Kind     Kind
	Nullable bool
}

// String renders the type the way it would appear in a compiled function's
// canonical dump name, e.g. "Int32" or "Nullable(Float64)".
func (t Type) String() string {
	name := kindName(t.Kind)
	if t.Nullable {
		return fmt.Sprintf("Nullable(%s)", name)
	}
	return name
}

func kindName(k Kind) string {
	switch k {
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindUint8:
		return "UInt8"
	case KindUint16:
		return "UInt16"
	case KindUint32:
		return "UInt32"
	case KindUint64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindTuple:
		return "Tuple"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// ByteWidth returns the size in bytes of one value of a native Kind.
// Composite kinds return 0 since they have no fixed-width representation.
func (t Type) ByteWidth() int {
	switch t.Kind {
	case KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32, KindDate:
		return 4
	case KindInt64, KindUint64, KindFloat64, KindDateTime:
		return 8
	default:
		return 0
	}
}
