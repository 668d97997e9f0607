package forwardbackward

import (
	"math"
	"testing"

	"github.com/nexussynth/nexussynth-core/internal/gaussian"
	"github.com/nexussynth/nexussynth-core/internal/gmm"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trivialModel builds the 3-state, 1-D model from spec.md section 8
// scenario 2: means (-1, 0, 1), variance 0.01, non-terminal transitions
// (0.5, 0.5), terminal (0.3, 0, 0.7).
func trivialModel(t *testing.T) *hmm.PhonemeHMM {
	t.Helper()

	model, err := hmm.NewPhonemeHMM("a-b+c", 3, 1, 1)
	require.NoError(t, err)

	means := []float64{-1, 0, 1}
	for i, s := range model.States {
		comp, err := gaussian.New([]float64{means[i]}, [][]float64{{0.01}}, 1.0)
		require.NoError(t, err)

		mix, err := gmm.New([]*gaussian.Component{comp})
		require.NoError(t, err)

		s.Emission = mix

		if i == len(model.States)-1 {
			s.Transition = hmm.Transition{SelfLoop: 0.3, Next: 0, Exit: 0.7}
		} else {
			s.Transition = hmm.Transition{SelfLoop: 0.5, Next: 0.5, Exit: 0}
		}
	}

	return model
}

func TestForwardBackwardTrivialHMM(t *testing.T) {
	model := trivialModel(t)
	observations := [][]float64{{-1}, {-1}, {0}, {0}, {1}, {1}}

	result, err := Run(model, observations)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.Gamma[0][0], 1e-3)
	assert.InDelta(t, 1.0, result.Gamma[5][2], 1e-3)
	assert.False(t, math.IsInf(result.LogLikelihood, 0))

	for _, row := range result.Gamma {
		var sum float64
		for _, g := range row {
			sum += g
		}

		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestForwardBackwardDegenerateEmptySequence(t *testing.T) {
	model := trivialModel(t)

	result, err := Run(model, nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(result.LogLikelihood, -1))
}

func TestForwardBackwardDeterministicRepeat(t *testing.T) {
	model := trivialModel(t)
	observations := [][]float64{{-1}, {-1}, {0}, {0}, {1}, {1}}

	r1, err := Run(model, observations)
	require.NoError(t, err)

	r2, err := Run(model, observations)
	require.NoError(t, err)

	assert.InDelta(t, r1.LogLikelihood, r2.LogLikelihood, 1e-12)
}
