package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationMsIsEndMinusStart(t *testing.T) {
	r := PhonemeRecord{StartMs: 100, EndMs: 260}
	assert.Equal(t, 160.0, r.DurationMs())
}

func TestMidiTripleZeroedWithoutMidi(t *testing.T) {
	r := PhonemeRecord{}
	assert.Equal(t, [3]float64{}, r.midiTriple())
}

func TestMidiTripleNormalizesFields(t *testing.T) {
	r := PhonemeRecord{HasMidi: true, MidiNote: 69, Velocity: 127, PitchHz: 440}
	triple := r.midiTriple()

	assert.InDelta(t, 69.0/127.0, triple[0], 1e-9)
	assert.InDelta(t, 1.0, triple[1], 1e-9)
	assert.InDelta(t, 0.44, triple[2], 1e-9)
}

func TestMidiNoteToHzMatchesA440(t *testing.T) {
	assert.InDelta(t, 440.0, midiNoteToHz(69), 1e-6)
}

func TestVcvQuadrupleZeroedWithoutVCV(t *testing.T) {
	r := PhonemeRecord{}
	assert.Equal(t, [4]float64{}, r.vcvQuadruple())
}

func TestVcvQuadrupleConvertsMsToSeconds(t *testing.T) {
	r := PhonemeRecord{HasVCV: true, ConsonantStartMs: 50, ConsonantEndMs: 120, TransitionMs: 30}
	quad := r.vcvQuadruple()

	assert.Equal(t, 1.0, quad[0])
	assert.InDelta(t, 0.05, quad[1], 1e-9)
	assert.InDelta(t, 0.12, quad[2], 1e-9)
	assert.InDelta(t, 0.03, quad[3], 1e-9)
}
