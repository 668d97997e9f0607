package trainer

import (
	"math/rand"
	"testing"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeClusterSequences builds synthetic 1-D sequences that visit three
// well-separated regions in order, so a 3-state left-to-right HMM has an
// obvious target to converge toward.
func threeClusterSequences(n, framesPerCluster int, rng *rand.Rand) [][][]float64 {
	means := []float64{-3, 0, 3}

	sequences := make([][][]float64, n)

	for s := range sequences {
		var seq [][]float64

		for _, mean := range means {
			for f := 0; f < framesPerCluster; f++ {
				seq = append(seq, []float64{mean + rng.NormFloat64()*0.1})
			}
		}

		sequences[s] = seq
	}

	return sequences
}

func TestTrainIncreasesOrMaintainsLogLikelihoodAcrossIterations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	model, err := hmm.NewPhonemeHMM("a-b+c", 3, 1, 1)
	require.NoError(t, err)

	for i, s := range model.States {
		require.NoError(t, s.Emission.Component(0).SetMean([]float64{float64(i) - 1}))
	}

	sequences := threeClusterSequences(20, 5, rng)

	config := DefaultConfig()
	config.MaxIterations = 10
	config.UseValidationSet = false
	config.EnableParallelTraining = false

	tr := NewTrainer(config)

	stats, err := tr.Train(model, sequences)
	require.NoError(t, err)
	require.NotEmpty(t, stats.LogLikelihoods)

	for i := 1; i < len(stats.LogLikelihoods); i++ {
		assert.GreaterOrEqual(t, stats.LogLikelihoods[i], stats.LogLikelihoods[i-1]-1e-6)
	}
}

func TestTrainEmptySequencesReturnsExplanatoryReason(t *testing.T) {
	model, err := hmm.NewPhonemeHMM("a-b+c", 3, 1, 1)
	require.NoError(t, err)

	tr := NewTrainer(DefaultConfig())

	stats, err := tr.Train(model, nil)
	require.NoError(t, err)
	assert.Equal(t, "no training data provided", stats.ConvergenceReason)
	assert.False(t, stats.Converged)
}

func TestTrainDimensionMismatchErrors(t *testing.T) {
	model, err := hmm.NewPhonemeHMM("a-b+c", 3, 1, 2)
	require.NoError(t, err)

	tr := NewTrainer(DefaultConfig())

	_, err = tr.Train(model, [][][]float64{{{0}}})
	require.Error(t, err)
}

func TestParallelAndSequentialExpectationStepsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	model, err := hmm.NewPhonemeHMM("a-b+c", 3, 1, 1)
	require.NoError(t, err)

	for i, s := range model.States {
		require.NoError(t, s.Emission.Component(0).SetMean([]float64{float64(i) - 1}))
	}

	sequences := threeClusterSequences(6, 4, rng)

	sequentialCfg := DefaultConfig()
	sequentialCfg.EnableParallelTraining = false

	parallelCfg := DefaultConfig()
	parallelCfg.EnableParallelTraining = true

	seqTrainer := NewTrainer(sequentialCfg)
	parTrainer := NewTrainer(parallelCfg)

	llSeq, _, err := seqTrainer.expectationStep(model, sequences)
	require.NoError(t, err)

	llPar, _, err := parTrainer.expectationStep(model, sequences)
	require.NoError(t, err)

	assert.InDelta(t, llSeq, llPar, 1e-9)
}
