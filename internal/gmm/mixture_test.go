package gmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoGaussianData generates a synthetic two-cluster dataset centered at
// (-3,0) and (3,0) with identity covariance, matching the scenario in
// spec.md section 8 scenario 1.
func twoGaussianData(n int, rng *rand.Rand) [][]float64 {
	data := make([][]float64, n)

	for i := range data {
		var cx float64
		if i%2 == 0 {
			cx = -3
		} else {
			cx = 3
		}

		data[i] = []float64{cx + rng.NormFloat64(), rng.NormFloat64()}
	}

	return data
}

func TestKMeansEMRecoversClusterCenters(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := twoGaussianData(200, rng)

	m := NewUniform(2, 2)
	require.NoError(t, m.InitializeKMeans(data, 2, 100, rng))

	ll, err := m.TrainEM(data, 50, 1e-4)
	require.NoError(t, err)

	perSample := ll / float64(len(data))
	assert.Greater(t, perSample, -2.5)

	for _, w := range m.Weights() {
		assert.GreaterOrEqual(t, w, 0.45)
		assert.LessOrEqual(t, w, 0.55)
	}

	centers := []float64{m.Component(0).Mean()[0], m.Component(1).Mean()[0]}
	foundNeg, foundPos := false, false

	for _, c := range centers {
		if math.Abs(c-(-3)) < 0.3 {
			foundNeg = true
		}

		if math.Abs(c-3) < 0.3 {
			foundPos = true
		}
	}

	assert.True(t, foundNeg)
	assert.True(t, foundPos)
}

func TestResponsibilitiesSumToOne(t *testing.T) {
	m := NewUniform(3, 2)

	resp, err := m.Responsibilities([]float64{0.1, -0.2})
	require.NoError(t, err)

	var sum float64
	for _, r := range resp {
		sum += r
	}

	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEMMonotonicLogLikelihood(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := twoGaussianData(100, rng)

	m := NewUniform(2, 2)
	require.NoError(t, m.InitializeKMeans(data, 2, 100, rng))

	prev, err := m.LogLikelihoodSequence(data)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ll, err := m.EMStep(data)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ll, prev-1e-6)

		prev = ll
	}
}

func TestNormalizeWeightsFallsBackToUniform(t *testing.T) {
	m := NewUniform(2, 1)
	m.weights = []float64{0, 0}

	m.NormalizeWeights()

	assert.InDelta(t, 0.5, m.weights[0], 1e-12)
	assert.InDelta(t, 0.5, m.weights[1], 1e-12)
}

func TestEffectiveParametersMatchesFormula(t *testing.T) {
	m := NewUniform(3, 2)
	// p = K*(D + D(D+1)/2) + (K-1) = 3*(2+3) + 2 = 17
	assert.Equal(t, 17, m.EffectiveParameters())
}
