package align

// PhonemeBoundary is the start/end frame range assigned to one phoneme by
// alignment, plus its duration in milliseconds and a confidence score in
// [0, 1].
type PhonemeBoundary struct {
	Phoneme         string
	StartFrame      int
	EndFrame        int
	DurationMs      float64
	ConfidenceScore float64
}

// extractBoundaries groups a composite state path into contiguous per-segment
// frame ranges. Because every transition in the composite chain (self-loop,
// advance, skip) is non-state-decreasing, each segment's frames form one
// contiguous run; boundaries are read directly off where the owning segment
// changes, rather than the heuristic "state index decreased" signal an
// unsegmented state path would need.
func extractBoundaries(path []int, segments []segment, frameRate float64) []PhonemeBoundary {
	if len(path) == 0 || len(segments) == 0 {
		return nil
	}

	boundaries := make([]PhonemeBoundary, 0, len(segments))

	segStart := 0
	currentSeg := segmentIndexOf(segments, path[0])

	flush := func(endFrameExclusive int) {
		if currentSeg < 0 || currentSeg >= len(segments) {
			return
		}

		frames := endFrameExclusive - segStart
		boundaries = append(boundaries, PhonemeBoundary{
			Phoneme:    segments[currentSeg].phoneme,
			StartFrame: segStart,
			EndFrame:   endFrameExclusive,
			DurationMs: (float64(frames) / frameRate) * 1000.0,
		})
	}

	for t := 1; t < len(path); t++ {
		seg := segmentIndexOf(segments, path[t])
		if seg != currentSeg {
			flush(t)

			segStart = t
			currentSeg = seg
		}
	}

	flush(len(path))

	return boundaries
}
