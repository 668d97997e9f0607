package bridge

import (
	"testing"

	"github.com/nexussynth/nexussynth-core/internal/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeModelsBuildsOneModelPerSurvivingName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatureDimension = 1
	cfg.UseDeltaFeatures = false
	cfg.UseDeltaDeltaFeatures = false
	cfg.NumStatesPerPhoneme = 2
	cfg.MinFramesPerModel = 1

	pipeline := NewPipeline(cfg, nil)

	sequences, models, err := pipeline.InitializeModels([]Bundle{sampleBundle()})
	require.NoError(t, err)

	assert.Equal(t, len(sequences), len(models))
	for name, model := range models {
		assert.Equal(t, name, model.ModelName)
		assert.Equal(t, cfg.NumStatesPerPhoneme, model.NumStates())
	}
}

func TestTrainProducesResultsForEveryModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatureDimension = 1
	cfg.UseDeltaFeatures = false
	cfg.UseDeltaDeltaFeatures = false
	cfg.NumStatesPerPhoneme = 2
	cfg.MinFramesPerModel = 1
	cfg.Training = trainer.Config{MaxIterations: 2, ConvergenceThreshold: 1e-4, UseValidationSet: false}

	pipeline := NewPipeline(cfg, nil)

	results, err := pipeline.Train([]Bundle{sampleBundle()})
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	for _, r := range results {
		assert.NotNil(t, r.Model)
		assert.NotNil(t, r.Stats)
	}
}
