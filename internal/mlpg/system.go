package mlpg

import "gonum.org/v1/gonum/mat"

// buildWMatrix constructs the linear map from the static parameter
// trajectory (totalFrames*featureDim) to the expanded static+delta+delta-
// delta feature space (totalFrames*expandedDim): identity rows for the
// static block, centered first differences for delta, centered second
// differences for delta-delta. Frames at a sequence boundary simply drop the
// terms that would reach past it, matching the reference's open boundary
// handling.
func buildWMatrix(cfg Config, totalFrames, featureDim int) *mat.Dense {
	expanded := cfg.expandedDim(featureDim)
	w := mat.NewDense(totalFrames*expanded, totalFrames*featureDim, nil)

	for t := 0; t < totalFrames; t++ {
		for d := 0; d < featureDim; d++ {
			staticRow := t*expanded + d
			paramCol := t * featureDim
			w.Set(staticRow, paramCol+d, 1.0)

			if cfg.UseDeltaFeatures {
				deltaRow := t*expanded + featureDim + d

				if t > 0 {
					w.Set(deltaRow, paramCol+d, 0.5)
					w.Set(deltaRow, (t-1)*featureDim+d, -0.5)
				}

				if t < totalFrames-1 {
					w.Set(deltaRow, (t+1)*featureDim+d, 0.5)
					w.Set(deltaRow, paramCol+d, w.At(deltaRow, paramCol+d)-0.5)
				}
			}

			if cfg.UseDeltaDeltaFeatures {
				offset := featureDim
				if cfg.UseDeltaFeatures {
					offset = 2 * featureDim
				}

				deltaDeltaRow := t*expanded + offset + d

				if t > 1 {
					w.Set(deltaDeltaRow, (t-2)*featureDim+d, 0.25)
				}

				if t > 0 {
					w.Set(deltaDeltaRow, (t-1)*featureDim+d, -0.5)
				}

				w.Set(deltaDeltaRow, paramCol+d, w.At(deltaDeltaRow, paramCol+d)+1.0)

				if t < totalFrames-1 {
					w.Set(deltaDeltaRow, (t+1)*featureDim+d, -0.5)
				}

				if t < totalFrames-2 {
					w.Set(deltaDeltaRow, (t+2)*featureDim+d, 0.25)
				}
			}
		}
	}

	return w
}

// buildPrecisionDiagonal returns the diagonal of the block-diagonal
// precision (inverse variance) matrix over the expanded feature space: each
// expanded dimension reuses the variance of its corresponding static
// dimension, regularized for numerical stability.
func buildPrecisionDiagonal(cfg Config, variances [][]float64, durations []int) []float64 {
	featureDim := len(variances[0])
	expanded := cfg.expandedDim(featureDim)

	totalFrames := 0
	for _, d := range durations {
		totalFrames += d
	}

	diag := make([]float64, totalFrames*expanded)

	frameIdx := 0

	for stateIdx, variance := range variances {
		for f := 0; f < durations[stateIdx]; f++ {
			for feat := 0; feat < expanded; feat++ {
				varIdx := feat % featureDim
				v := variance[varIdx] + cfg.RegularizationFactor
				diag[frameIdx*expanded+feat] = 1.0 / v
			}

			frameIdx++
		}
	}

	return diag
}

// buildObservationVector expands each state's static mean into
// durations[i] repeated frames; delta/delta-delta target slots stay zero, as
// the trajectory is fit to the static means only.
func buildObservationVector(cfg Config, means [][]float64, durations []int) *mat.VecDense {
	featureDim := len(means[0])
	expanded := cfg.expandedDim(featureDim)

	totalFrames := 0
	for _, d := range durations {
		totalFrames += d
	}

	obs := mat.NewVecDense(totalFrames*expanded, nil)

	frameIdx := 0

	for stateIdx, mean := range means {
		for f := 0; f < durations[stateIdx]; f++ {
			for feat := 0; feat < featureDim; feat++ {
				obs.SetVec(frameIdx*expanded+feat, mean[feat])
			}

			frameIdx++
		}
	}

	return obs
}
