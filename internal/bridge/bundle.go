package bridge

import "github.com/nexussynth/nexussynth-core/internal/context"

// DefaultFrameShiftMs is the acoustic analysis frame period assumed when a
// Bundle does not specify its own.
const DefaultFrameShiftMs = 5.0

// Bundle is one utterance's aligned training data: its phoneme segments
// (with quinphone/context timing) and the acoustic feature sequence
// observed at FrameShiftMs intervals across the whole utterance. Per-model
// training sequences are cut from Acoustic using each record's
// [StartMs, EndMs) span.
type Bundle struct {
	UtteranceID  string
	Records      []context.PhonemeRecord
	Acoustic     [][]float64
	FrameShiftMs float64
}

// IsValid reports whether the bundle has data and every record's timing
// span maps onto a non-empty slice of Acoustic.
func (b Bundle) IsValid() bool {
	if len(b.Records) == 0 || len(b.Acoustic) == 0 {
		return false
	}

	shift := b.frameShift()
	for _, r := range b.Records {
		start, end := b.frameRange(r, shift)
		if end <= start {
			return false
		}
	}

	return true
}

func (b Bundle) frameShift() float64 {
	if b.FrameShiftMs > 0 {
		return b.FrameShiftMs
	}
	return DefaultFrameShiftMs
}

// frameRange returns the [start, end) index range into Acoustic covered by
// record, clamped to the sequence bounds.
func (b Bundle) frameRange(record context.PhonemeRecord, shift float64) (start, end int) {
	start = int(record.StartMs / shift)
	end = int(record.EndMs / shift)

	if start < 0 {
		start = 0
	}
	if end > len(b.Acoustic) {
		end = len(b.Acoustic)
	}
	if end <= start && start < len(b.Acoustic) {
		end = start + 1
	}

	return start, end
}

// acousticSpan returns the acoustic frames covered by record.
func (b Bundle) acousticSpan(record context.PhonemeRecord) [][]float64 {
	start, end := b.frameRange(record, b.frameShift())
	if end <= start {
		return nil
	}

	return b.Acoustic[start:end]
}
