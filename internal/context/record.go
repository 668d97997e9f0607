package context

import "math"

// PhonemeRecord is one aligned input phoneme: its symbol, timing, and
// optional musical/VCV context.
type PhonemeRecord struct {
	Phoneme string
	StartMs float64
	EndMs   float64

	HasMidi  bool
	MidiNote int
	Velocity int
	PitchHz  float64

	HasVCV           bool
	ConsonantStartMs float64
	ConsonantEndMs   float64
	TransitionMs     float64

	// Boundary hints supplied by the upstream lyric/score parser: this
	// package does not re-derive syllable/word/phrase segmentation from
	// timing alone.
	SyllableStart bool
	WordStart     bool
	PhraseStart   bool
}

// DurationMs is EndMs - StartMs.
func (r PhonemeRecord) DurationMs() float64 { return r.EndMs - r.StartMs }

// midiTriple returns the normalized (note, velocity, frequency) features for
// the current frame, zeroed when no MIDI data is present.
func (r PhonemeRecord) midiTriple() [3]float64 {
	if !r.HasMidi {
		return [3]float64{}
	}

	note := float64(r.MidiNote) / 127.0
	velocity := float64(r.Velocity) / 127.0

	hz := r.PitchHz
	if hz == 0 {
		hz = midiNoteToHz(r.MidiNote)
	}

	normalizedHz := hz / 1000.0

	return [3]float64{note, velocity, normalizedHz}
}

func midiNoteToHz(note int) float64 {
	if note <= 0 {
		return 0
	}

	return 440.0 * math.Exp2((float64(note)-69.0)/12.0)
}

// vcvQuadruple returns the (present flag, consonant-start, consonant-end,
// transition-duration) features, all in seconds, zeroed when HasVCV is
// false.
func (r PhonemeRecord) vcvQuadruple() [4]float64 {
	if !r.HasVCV {
		return [4]float64{}
	}

	return [4]float64{1.0, r.ConsonantStartMs / 1000.0, r.ConsonantEndMs / 1000.0, r.TransitionMs / 1000.0}
}
