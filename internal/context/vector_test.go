package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []PhonemeRecord {
	return []PhonemeRecord{
		{Phoneme: "sil", StartMs: 0, EndMs: 50, SyllableStart: true, WordStart: true, PhraseStart: true},
		{Phoneme: "k", StartMs: 50, EndMs: 100, SyllableStart: true, WordStart: true, HasMidi: true, MidiNote: 60, Velocity: 90, PitchHz: 261.6},
		{Phoneme: "a", StartMs: 100, EndMs: 200, HasMidi: true, MidiNote: 60, Velocity: 90, PitchHz: 261.6, HasVCV: true, ConsonantStartMs: 50, ConsonantEndMs: 100, TransitionMs: 10},
		{Phoneme: "sil", StartMs: 200, EndMs: 250, SyllableStart: true, WordStart: true},
	}
}

func TestVectorSizeMatchesComponents(t *testing.T) {
	radius := 2
	window := 2*radius + 1
	expected := window*FeatureSize + window*PositionSize + 1 + 3 + 4

	assert.Equal(t, expected, VectorSize(radius))
}

func TestExtractReturnsOneFrameEachWithCorrectWidth(t *testing.T) {
	inv := NewJapaneseInventory()
	extractor := NewExtractor(inv, 1)

	frames := extractor.Extract(sampleRecords())

	require.Len(t, frames, 4)
	for _, f := range frames {
		assert.Len(t, f.Vector, VectorSize(1))
		assert.NotEmpty(t, f.ModelName)
	}
}

func TestExtractEmptySequenceReturnsNil(t *testing.T) {
	extractor := NewExtractor(NewJapaneseInventory(), 1)
	assert.Nil(t, extractor.Extract(nil))
}

func TestModelNameUsesTriphoneFallbackAtBoundaries(t *testing.T) {
	records := sampleRecords()

	name := ModelName(records, 0)
	assert.Equal(t, "<SIL>-sil+k", name)
}

func TestModelNameUsesQuinphoneWhenAvailable(t *testing.T) {
	records := append(sampleRecords(), PhonemeRecord{Phoneme: "sh"}, PhonemeRecord{Phoneme: "i"})

	name := ModelName(records, 2)
	assert.Equal(t, "sil-k-a+sil+sh", name)
}

func TestSplitModelNameRecoversPhonemes(t *testing.T) {
	assert.Equal(t, []string{"sil", "k", "a", "sil", "sh"}, SplitModelName("sil-k-a+sil+sh"))
}
