package gaussian

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPDFStandardNormalAtMean(t *testing.T) {
	c, err := New([]float64{0, 0}, [][]float64{{1, 0}, {0, 1}}, 1.0)
	require.NoError(t, err)

	lp, err := c.LogPDF([]float64{0, 0})
	require.NoError(t, err)

	want := -0.5 * 2 * math.Log(2*math.Pi)
	assert.InDelta(t, want, lp, 1e-9)
}

func TestLogPDFDimensionMismatch(t *testing.T) {
	c, err := New([]float64{0}, [][]float64{{1}}, 1.0)
	require.NoError(t, err)

	_, err = c.LogPDF([]float64{0, 1})
	assert.Error(t, err)
}

func TestNewRejectsNegativeWeight(t *testing.T) {
	_, err := New([]float64{0}, [][]float64{{1}}, -0.5)
	assert.Error(t, err)
}

func TestMahalanobisZeroAtMean(t *testing.T) {
	c, err := New([]float64{1, 2}, [][]float64{{1, 0}, {0, 1}}, 1.0)
	require.NoError(t, err)

	d, err := c.Mahalanobis([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-12)
}

func TestRegularizeRestoresPSD(t *testing.T) {
	c, err := New([]float64{0, 0}, [][]float64{{-1, 0}, {0, -2}}, 1.0)
	require.NoError(t, err)

	c.Regularize(1e-6)

	assert.True(t, c.IsValid())
	assert.True(t, math.IsInf(c.LogDeterminant(), 0) == false)
}

func TestSampleFallsBackOnNonPDCovariance(t *testing.T) {
	// Symmetric but indefinite (eigenvalues 3, -1, 1): Cholesky fails.
	c, err := New([]float64{0, 0, 0}, [][]float64{{1, 2, 0}, {2, 1, 0}, {0, 0, 1}}, 1.0)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))

	s := c.Sample(rng)
	assert.Len(t, s, 3)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	c, err := New([]float64{1, -1}, [][]float64{{2, 0.1}, {0.1, 1.5}}, 0.5)
	require.NoError(t, err)

	want, err := c.LogPDF([]float64{0.3, 0.2})
	require.NoError(t, err)

	snap := c.Serialize()
	restored, err := Deserialize(snap)
	require.NoError(t, err)

	got, err := restored.LogPDF([]float64{0.3, 0.2})
	require.NoError(t, err)

	assert.InDelta(t, want, got, 1e-12)
}
