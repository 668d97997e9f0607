package numerics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLogSumExpMatchesNaiveSum(t *testing.T) {
	v := []float64{-1.0, -2.0, -0.5, -3.0}

	got := LogSumExp(v)

	var sum float64
	for _, x := range v {
		sum += math.Exp(x)
	}

	want := math.Log(sum)

	assert.InDelta(t, want, got, 1e-9)
}

func TestLogSumExpEmptyIsNegInf(t *testing.T) {
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
}

func TestLogSumExpAllNegInf(t *testing.T) {
	v := []float64{math.Inf(-1), math.Inf(-1)}
	assert.True(t, math.IsInf(LogSumExp(v), -1))
}

func TestLogSumExp2MatchesLogSumExp(t *testing.T) {
	a, b := -1.25, -4.75
	assert.InDelta(t, LogSumExp([]float64{a, b}), LogSumExp2(a, b), 1e-12)
}

func TestRepairPSDProducesPositiveEigenvalues(t *testing.T) {
	// A negative-definite-ish symmetric matrix.
	bad := mat.NewSymDense(2, []float64{-1, 0, 0, -2})

	repaired := RepairPSD(bad)

	var eig mat.EigenSym
	ok := eig.Factorize(repaired, false)
	require.True(t, ok)

	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, MinVariance-1e-12)
	}
}

func TestSolveSPDIdentity(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	b := mat.NewVecDense(2, []float64{3, 4})

	x, err := SolveSPD(a, b, 0)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, x.AtVec(0), 1e-6)
	assert.InDelta(t, 4.0, x.AtVec(1), 1e-6)
}

func TestSolveSPDSingularFallsBackToLU(t *testing.T) {
	// Singular, indefinite matrix: Cholesky must fail even after
	// regularization, and LU on the regularized matrix must recover.
	a := mat.NewDense(2, 2, []float64{0, 0, 0, -1})
	b := mat.NewVecDense(2, []float64{2, 2})

	x, err := SolveSPD(a, b, 1e-6)
	require.NoError(t, err)
	require.NotNil(t, x)
}
