package bridge

import (
	"testing"

	"github.com/nexussynth/nexussynth-core/internal/context"
	"github.com/stretchr/testify/assert"
)

func sampleBundle() Bundle {
	records := []context.PhonemeRecord{
		{Phoneme: "sil", StartMs: 0, EndMs: 20},
		{Phoneme: "k", StartMs: 20, EndMs: 60},
		{Phoneme: "a", StartMs: 60, EndMs: 120},
		{Phoneme: "sil", StartMs: 120, EndMs: 140},
	}

	return Bundle{
		UtteranceID:  "u1",
		Records:      records,
		Acoustic:     makeAcoustic(28),
		FrameShiftMs: 5,
	}
}

func TestGroupByModelPoolsSequencesPerModelName(t *testing.T) {
	inv := context.NewJapaneseInventory()
	extractor := context.NewExtractor(inv, 1)
	cfg := Config{UseDeltaFeatures: false, MinFramesPerModel: 1}

	grouped := groupByModel([]Bundle{sampleBundle()}, extractor, cfg)

	assert.NotEmpty(t, grouped)
	for _, sequences := range grouped {
		assert.NotEmpty(t, sequences)
		for _, seq := range sequences {
			assert.NotEmpty(t, seq)
		}
	}
}

func TestGroupByModelDropsSparseModels(t *testing.T) {
	inv := context.NewJapaneseInventory()
	extractor := context.NewExtractor(inv, 1)
	cfg := Config{UseDeltaFeatures: false, MinFramesPerModel: 1000}

	grouped := groupByModel([]Bundle{sampleBundle()}, extractor, cfg)

	assert.Empty(t, grouped)
}

func TestGroupByModelAppliesDeltaAugmentation(t *testing.T) {
	inv := context.NewJapaneseInventory()
	extractor := context.NewExtractor(inv, 1)
	cfg := Config{UseDeltaFeatures: true, UseDeltaDeltaFeatures: true, MinFramesPerModel: 1}

	grouped := groupByModel([]Bundle{sampleBundle()}, extractor, cfg)

	for _, sequences := range grouped {
		for _, seq := range sequences {
			assert.Len(t, seq[0], 3) // 1 static dim -> static+delta+deltadelta
		}
	}
}
