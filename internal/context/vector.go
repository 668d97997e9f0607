package context

import (
	"fmt"
	"strings"
)

// VectorSize is the width of one frame's full context feature vector:
// windowed phoneme features, windowed position features, current-frame
// timing, the MIDI triple, and the VCV quadruple.
func VectorSize(radius int) int {
	window := 2*radius + 1
	return window*FeatureSize + window*PositionSize + 1 /*duration*/ + 3 /*midi*/ + 4 /*vcv*/
}

// Frame is one extracted context frame: its full feature vector and the
// deterministic model-name key it trains/decodes against.
type Frame struct {
	Vector    []float64
	ModelName string
}

// Extractor builds Frames from an aligned PhonemeRecord sequence.
type Extractor struct {
	inventory *PhonemeInventory
	radius    int
}

// NewExtractor returns an Extractor using inventory for phoneme
// classification and the given context-window radius (phonemes on each
// side of the current frame).
func NewExtractor(inventory *PhonemeInventory, radius int) *Extractor {
	if radius <= 0 {
		radius = DefaultWindowRadius
	}

	return &Extractor{inventory: inventory, radius: radius}
}

// Extract returns one Frame per record in the sequence.
func (e *Extractor) Extract(records []PhonemeRecord) []Frame {
	if len(records) == 0 {
		return nil
	}

	syllables := unitSpans(records, func(r PhonemeRecord) bool { return r.SyllableStart })
	words := unitSpans(records, func(r PhonemeRecord) bool { return r.WordStart })
	phrases := unitSpans(records, func(r PhonemeRecord) bool { return r.PhraseStart })

	frames := make([]Frame, len(records))
	for i, record := range records {
		phonemeFeatures := phonemeWindow(e.inventory, records, i, e.radius)
		position := encodePosition(records, i, syllables, words, phrases, len(records))

		frames[i] = Frame{
			Vector:    e.buildVector(phonemeFeatures, position, record),
			ModelName: ModelName(records, i),
		}
	}

	return frames
}

func (e *Extractor) buildVector(phonemeFeatures []Features, position PositionEncoding, record PhonemeRecord) []float64 {
	out := make([]float64, 0, VectorSize(e.radius))

	for _, f := range phonemeFeatures {
		out = append(out, f.Vector()...)
	}

	positionVector := position.Vector()
	window := 2*e.radius + 1
	for i := 0; i < window; i++ {
		out = append(out, positionVector...)
	}

	out = append(out, record.DurationMs()/1000.0)

	midi := record.midiTriple()
	out = append(out, midi[0], midi[1], midi[2])

	vcv := record.vcvQuadruple()
	out = append(out, vcv[0], vcv[1], vcv[2], vcv[3])

	return out
}

// ModelName returns the deterministic model key for records[index]: a
// quinphone "LL-L-C+R+RR" pattern when two phonemes of context are
// available on both sides, falling back to a triphone "L-C+R" pattern
// otherwise.
func ModelName(records []PhonemeRecord, index int) string {
	symbol := func(i int) string {
		if i < 0 || i >= len(records) {
			return PaddingSymbol
		}
		return records[i].Phoneme
	}

	if index-2 >= 0 && index+2 < len(records) {
		return fmt.Sprintf("%s-%s-%s+%s+%s", symbol(index-2), symbol(index-1), symbol(index), symbol(index+1), symbol(index+2))
	}

	return fmt.Sprintf("%s-%s+%s", symbol(index-1), symbol(index), symbol(index+1))
}

// SplitModelName recovers the phoneme symbols encoded in a model name
// produced by ModelName, for callers that need to inspect context without
// re-running extraction.
func SplitModelName(name string) []string {
	replacer := strings.NewReplacer("+", " ", "-", " ")
	return strings.Fields(replacer.Replace(name))
}
