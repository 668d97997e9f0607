// Package bridge wires the context feature layer to the HMM training layer:
// grouping aligned frames by model name, initializing and training one
// PhonemeHMM per model, and persisting the resulting model set.
package bridge

import (
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/trainer"
)

// Config controls context-dependent HMM training.
type Config struct {
	FeatureDimension      int
	NumMixturesPerState   int
	NumStatesPerPhoneme   int
	UseDeltaFeatures      bool
	UseDeltaDeltaFeatures bool

	// MinFramesPerModel drops any model whose pooled training data has
	// fewer frames than this, since there isn't enough data to estimate a
	// stable emission distribution.
	MinFramesPerModel int

	OutputDirectory string

	Training trainer.Config
}

// DefaultConfig mirrors the reference bridge's constructor defaults.
func DefaultConfig() Config {
	return Config{
		FeatureDimension:      39,
		NumMixturesPerState:   1,
		NumStatesPerPhoneme:   hmm.DefaultNumStates,
		UseDeltaFeatures:      true,
		UseDeltaDeltaFeatures: true,
		MinFramesPerModel:     hmm.DefaultNumStates, // at least one frame per state
		OutputDirectory:       "./hmm_models",
		Training:              trainer.DefaultConfig(),
	}
}

// acousticDimension returns the per-frame dimension after delta/delta-delta
// augmentation.
func (c Config) acousticDimension() int {
	dim := c.FeatureDimension
	if c.UseDeltaFeatures {
		dim += c.FeatureDimension
	}
	if c.UseDeltaDeltaFeatures {
		dim += c.FeatureDimension
	}

	return dim
}
