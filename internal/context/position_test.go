package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func records3() []PhonemeRecord {
	return []PhonemeRecord{
		{Phoneme: "k", SyllableStart: true, WordStart: true, PhraseStart: true},
		{Phoneme: "a"},
		{Phoneme: "sh", SyllableStart: true},
		{Phoneme: "i"},
	}
}

func TestUnitSpansSplitsAtStartFlags(t *testing.T) {
	recs := records3()
	spans := unitSpans(recs, func(r PhonemeRecord) bool { return r.SyllableStart })

	assert.Equal(t, []boundaryUnit{{0, 2}, {2, 4}}, spans)
}

func TestForwardBackwardAtSpanEdges(t *testing.T) {
	span := boundaryUnit{start: 0, end: 4}

	fwd, bwd := forwardBackward(span, 0)
	assert.Equal(t, 0.0, fwd)
	assert.Equal(t, 1.0, bwd)

	fwd, bwd = forwardBackward(span, 3)
	assert.Equal(t, 1.0, fwd)
	assert.Equal(t, 0.0, bwd)
}

func TestForwardBackwardSingleFrameSpan(t *testing.T) {
	fwd, bwd := forwardBackward(boundaryUnit{start: 2, end: 3}, 2)
	assert.Equal(t, 0.0, fwd)
	assert.Equal(t, 0.0, bwd)
}

func TestDetectAccentPicksHighestVelocity(t *testing.T) {
	recs := []PhonemeRecord{
		{Phoneme: "k", HasMidi: true, Velocity: 40},
		{Phoneme: "a", HasMidi: true, Velocity: 100},
		{Phoneme: "sh", HasMidi: true, Velocity: 60},
	}

	accent := detectAccent(recs, boundaryUnit{start: 0, end: 3})

	assert.True(t, accent.hasAccent)
	assert.Equal(t, 1, accent.moraIndex)
	assert.InDelta(t, 100.0/127.0, accent.strength, 1e-9)
}

func TestDetectAccentNoMidiHasNoAccent(t *testing.T) {
	recs := []PhonemeRecord{{Phoneme: "k"}, {Phoneme: "a"}}
	accent := detectAccent(recs, boundaryUnit{start: 0, end: 2})

	assert.False(t, accent.hasAccent)
}

func TestEncodePositionMarksStartsAndNucleus(t *testing.T) {
	recs := []PhonemeRecord{
		{Phoneme: "k", SyllableStart: true, WordStart: true, PhraseStart: true, HasMidi: true, Velocity: 100},
		{Phoneme: "a"},
		{Phoneme: "sh", HasMidi: true, Velocity: 40},
		{Phoneme: "i"},
	}
	syllables := unitSpans(recs, func(r PhonemeRecord) bool { return r.SyllableStart })
	words := unitSpans(recs, func(r PhonemeRecord) bool { return r.WordStart })
	phrases := unitSpans(recs, func(r PhonemeRecord) bool { return r.PhraseStart })

	pos0 := encodePosition(recs, 0, syllables, words, phrases, len(recs))
	assert.True(t, pos0.IsSyllableStart)
	assert.True(t, pos0.IsWordStart)
	assert.True(t, pos0.IsPhraseStart)
	assert.True(t, pos0.IsAccentNucleus)
	assert.InDelta(t, 100.0/127.0, pos0.AccentStrength, 1e-9)

	pos3 := encodePosition(recs, 3, syllables, words, phrases, len(recs))
	assert.True(t, pos3.IsPhraseEnd)
	assert.False(t, pos3.IsAccentNucleus)
}

func TestPositionEncodingVectorHasFixedWidth(t *testing.T) {
	var p PositionEncoding
	assert.Len(t, p.Vector(), PositionSize)
}
