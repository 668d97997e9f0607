package bridge

// addDeltaFeatures appends first-order (and, if includeDeltaDelta,
// second-order) dynamic features to each frame of a static feature
// sequence: a central difference at interior frames, a one-sided
// difference at the first and last frame.
func addDeltaFeatures(staticFeatures [][]float64, includeDeltaDelta bool) [][]float64 {
	if len(staticFeatures) == 0 {
		return nil
	}

	delta := firstDifference(staticFeatures)

	out := make([][]float64, len(staticFeatures))
	for i, static := range staticFeatures {
		out[i] = append(append([]float64(nil), static...), delta[i]...)
	}

	if !includeDeltaDelta {
		return out
	}

	deltaDelta := firstDifference(delta)
	for i := range out {
		out[i] = append(out[i], deltaDelta[i]...)
	}

	return out
}

// firstDifference returns, for each frame, the central difference against
// its neighbors (frames[i+1]-frames[i-1])/2, falling back to a one-sided
// difference at the sequence boundaries.
func firstDifference(frames [][]float64) [][]float64 {
	n := len(frames)
	dim := len(frames[0])

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
	}

	for i := 0; i < n; i++ {
		switch {
		case n == 1:
			// out[i] stays zero: no neighbor to difference against.
		case i == 0:
			for d := 0; d < dim; d++ {
				out[i][d] = frames[i+1][d] - frames[i][d]
			}
		case i == n-1:
			for d := 0; d < dim; d++ {
				out[i][d] = frames[i][d] - frames[i-1][d]
			}
		default:
			for d := 0; d < dim; d++ {
				out[i][d] = (frames[i+1][d] - frames[i-1][d]) / 2.0
			}
		}
	}

	return out
}
