package align

import (
	"testing"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestForcedAlignTrivialThreePhonemes reproduces spec.md section 8 scenario
// 4: a 3-state model reused per phoneme, nine frames (three per phoneme)
// generated from state means (-1, 0, 1), phoneme sequence ["a", "b", "c"],
// frame rate 100.
func TestForcedAlignTrivialThreePhonemes(t *testing.T) {
	phonemes := []string{"a", "b", "c"}
	models := []*hmm.PhonemeHMM{trivialModel(t), trivialModel(t), trivialModel(t)}

	observations := [][]float64{
		{-1}, {0}, {1},
		{-1}, {0}, {1},
		{-1}, {0}, {1},
	}

	result, err := ForcedAlign(models, phonemes, observations, 100)
	require.NoError(t, err)
	require.Len(t, result.Boundaries, 3)

	want := []struct {
		phoneme string
		start   int
		end     int
	}{
		{"a", 0, 3},
		{"b", 3, 6},
		{"c", 6, 9},
	}

	for i, w := range want {
		b := result.Boundaries[i]
		assert.Equal(t, w.phoneme, b.Phoneme)
		assert.Equal(t, w.start, b.StartFrame)
		assert.Equal(t, w.end, b.EndFrame)
		assert.InDelta(t, 30.0, b.DurationMs, 1e-6)
	}

	assert.Greater(t, result.AverageConfidence, 0.8)
}

func TestForcedAlignBoundariesAreContiguous(t *testing.T) {
	phonemes := []string{"a", "b", "c"}
	models := []*hmm.PhonemeHMM{trivialModel(t), trivialModel(t), trivialModel(t)}

	observations := [][]float64{
		{-1}, {0}, {1},
		{-1}, {0}, {1},
		{-1}, {0}, {1},
	}

	result, err := ForcedAlign(models, phonemes, observations, 100)
	require.NoError(t, err)

	for i := 1; i < len(result.Boundaries); i++ {
		assert.Equal(t, result.Boundaries[i-1].EndFrame, result.Boundaries[i].StartFrame)
	}
}

func TestForcedAlignMismatchedLengthsErrors(t *testing.T) {
	_, err := ForcedAlign([]*hmm.PhonemeHMM{trivialModel(t)}, []string{"a", "b"}, [][]float64{{0}}, 100)
	require.Error(t, err)
}
