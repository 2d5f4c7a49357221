package column

import (
	"encoding/binary"
	"math"

	"github.com/vectorq/exprjit/types"
)

// EncodeScalar renders a single logical value of type t as its raw native
// byte representation, little-endian, matching the layout MaterializeFull
// lays down for dense columns. Used to build one-row constant columns for
// monotonicity interval-endpoint evaluation.
func EncodeScalar(t types.Type, v float64) []byte {
	buf := make([]byte, t.ByteWidth())
	switch t.Kind {
	case types.KindInt8, types.KindUint8:
		buf[0] = byte(int8(v))
	case types.KindInt16, types.KindUint16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case types.KindInt32, types.KindUint32, types.KindDate:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case types.KindInt64, types.KindUint64, types.KindDateTime:
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	case types.KindFloat32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case types.KindFloat64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	}
	return buf
}

// DecodeScalar is the inverse of EncodeScalar.
func DecodeScalar(t types.Type, buf []byte) float64 {
	switch t.Kind {
	case types.KindInt8:
		return float64(int8(buf[0]))
	case types.KindUint8:
		return float64(buf[0])
	case types.KindInt16:
		return float64(int16(binary.LittleEndian.Uint16(buf)))
	case types.KindUint16:
		return float64(binary.LittleEndian.Uint16(buf))
	case types.KindInt32, types.KindDate:
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case types.KindUint32:
		return float64(binary.LittleEndian.Uint32(buf))
	case types.KindInt64, types.KindDateTime:
		return float64(int64(binary.LittleEndian.Uint64(buf)))
	case types.KindUint64:
		return float64(binary.LittleEndian.Uint64(buf))
	case types.KindFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case types.KindFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	default:
		return 0
	}
}
