package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorq/exprjit/types"
)

func TestStringRendersNullableWrapper(t *testing.T) {
	require.Equal(t, "Int32", types.Type{Kind: types.KindInt32}.String())
	require.Equal(t, "Nullable(Float64)", types.Type{Kind: types.KindFloat64, Nullable: true}.String())
}

func TestStringFallsBackToUnknownForUnrecognizedKind(t *testing.T) {
	require.Equal(t, "Unknown", types.Type{Kind: 255}.String())
}

func TestByteWidthMatchesNativeKindSizes(t *testing.T) {
	cases := []struct {
		kind  types.Kind
		width int
	}{
		{types.KindInt8, 1}, {types.KindUint8, 1},
		{types.KindInt16, 2}, {types.KindUint16, 2},
		{types.KindInt32, 4}, {types.KindUint32, 4}, {types.KindFloat32, 4}, {types.KindDate, 4},
		{types.KindInt64, 8}, {types.KindUint64, 8}, {types.KindFloat64, 8}, {types.KindDateTime, 8},
	}
	for _, c := range cases {
		require.Equal(t, c.width, types.Type{Kind: c.kind}.ByteWidth(), "kind %d", c.kind)
	}
}

func TestByteWidthIsZeroForCompositeKinds(t *testing.T) {
	for _, kind := range []types.Kind{types.KindString, types.KindArray, types.KindTuple, types.KindMap} {
		require.Equal(t, 0, types.Type{Kind: kind}.ByteWidth(), "composite kind %d must have no fixed width", kind)
	}
}
