package monotonicity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectorq/exprjit/internal/actions"
	"github.com/vectorq/exprjit/internal/monotonicity"
	"github.com/vectorq/exprjit/internal/testfn"
	"github.com/vectorq/exprjit/types"
)

var f64 = types.Type{Kind: types.KindFloat64}

func increasing() *actions.Monotonicity {
	return &actions.Monotonicity{IsMonotonic: true, IsPositive: true, IsAlwaysMonotonic: true}
}

func decreasing() *actions.Monotonicity {
	return &actions.Monotonicity{IsMonotonic: true, IsPositive: false, IsAlwaysMonotonic: true}
}

func TestComposeChainTwoIncreasingStaysPositive(t *testing.T) {
	plusOne := &testfn.Unary{FnName: "plus_one", ArgTyp: f64, RetTyp: f64, Apply: func(a float64) float64 { return a + 1 }, Monotonic: increasing()}
	double := &testfn.Unary{FnName: "double", ArgTyp: f64, RetTyp: f64, Apply: func(a float64) float64 { return a * 2 }, Monotonic: increasing()}

	result := monotonicity.ComposeChain([]actions.ScalarFunction{plusOne, double}, f64, nil, nil)
	require.True(t, result.IsMonotonic)
	require.True(t, result.IsPositive, "increasing-then-increasing composes to increasing")
}

func TestComposeChainIncreasingThenDecreasingFlipsSign(t *testing.T) {
	plusOne := &testfn.Unary{FnName: "plus_one", ArgTyp: f64, RetTyp: f64, Apply: func(a float64) float64 { return a + 1 }, Monotonic: increasing()}
	negate := &testfn.Unary{FnName: "negate", ArgTyp: f64, RetTyp: f64, Apply: func(a float64) float64 { return -a }, Monotonic: decreasing()}

	result := monotonicity.ComposeChain([]actions.ScalarFunction{plusOne, negate}, f64, nil, nil)
	require.True(t, result.IsMonotonic)
	require.False(t, result.IsPositive, "increasing-then-decreasing composes to decreasing")
}

func TestComposeChainShortCircuitsOnNonMonotonic(t *testing.T) {
	nonMonotonic := &testfn.Unary{
		FnName: "square", ArgTyp: f64, RetTyp: f64,
		Apply:     func(a float64) float64 { return a * a },
		Monotonic: &actions.Monotonicity{IsMonotonic: false},
	}
	double := &testfn.Unary{FnName: "double", ArgTyp: f64, RetTyp: f64, Apply: func(a float64) float64 { return a * 2 }, Monotonic: increasing()}

	result := monotonicity.ComposeChain([]actions.ScalarFunction{nonMonotonic, double}, f64, nil, nil)
	require.False(t, result.IsMonotonic, "a single non-monotonic link makes the whole chain non-monotonic")
}

func TestCapabilityFoldsAreConjunctive(t *testing.T) {
	a := testfn.Negate(f64)
	b := &opaqueUnary{Unary: testfn.Negate(f64)}

	require.True(t, monotonicity.IsDeterministic([]actions.ScalarFunction{a}))
	require.False(t, monotonicity.IsSuitableForConstantFolding([]actions.ScalarFunction{a, b}), "one non-foldable link makes the whole chain non-foldable")
}

type opaqueUnary struct {
	*testfn.Unary
}

func (o *opaqueUnary) IsSuitableForConstantFolding() bool { return false }
