package align

import (
	"testing"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstrainedAlignMatchesForcedAlignWhenWindowsAreGenerous(t *testing.T) {
	phonemes := []string{"a", "b", "c"}
	models := []*hmm.PhonemeHMM{trivialModel(t), trivialModel(t), trivialModel(t)}

	observations := [][]float64{
		{-1}, {0}, {1},
		{-1}, {0}, {1},
		{-1}, {0}, {1},
	}

	constraints := []TimeConstraint{
		{StartMs: 0, EndMs: 30},
		{StartMs: 30, EndMs: 60},
		{StartMs: 60, EndMs: 90},
	}

	result, err := ConstrainedAlign(models, phonemes, observations, constraints, 100, DefaultTimeTolerance)
	require.NoError(t, err)
	require.Len(t, result.Boundaries, 3)

	assert.Equal(t, 0, result.Boundaries[0].StartFrame)
	assert.Equal(t, 9, result.Boundaries[len(result.Boundaries)-1].EndFrame)
}

func TestConstrainedAlignRejectsMismatchedConstraintCount(t *testing.T) {
	models := []*hmm.PhonemeHMM{trivialModel(t)}

	_, err := ConstrainedAlign(models, []string{"a"}, [][]float64{{0}}, nil, 100, DefaultTimeTolerance)
	require.Error(t, err)
}
