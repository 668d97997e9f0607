package align

import (
	"fmt"
	"math"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

// timeWindowPenaltyScale sets how strongly a frame outside its phoneme's
// expected time window is discouraged, in log-probability units per frame of
// violation (normalized by the tolerance window).
const timeWindowPenaltyScale = 5.0

// DefaultTimeTolerance is the fraction of the sequence length within which a
// frame is considered "on schedule" for its expected phoneme.
const DefaultTimeTolerance = 0.2

// TimeConstraint is an expected (startMs, endMs) window for one phoneme in
// the sequence passed to ConstrainedAlign.
type TimeConstraint struct {
	StartMs float64
	EndMs   float64
}

// ConstrainedAlign is ForcedAlign with an additional soft penalty steering
// each phoneme's frames toward its expected time window. Unlike a hard
// constraint, a path may still leave the window when the acoustic evidence
// is strong enough to outweigh the penalty.
func ConstrainedAlign(models []*hmm.PhonemeHMM, phonemes []string, observations [][]float64, constraints []TimeConstraint, frameRate, tolerance float64) (*AlignmentResult, error) {
	if len(constraints) != len(phonemes) {
		return nil, fmt.Errorf("align: %w: %d time constraints for %d phonemes", nserrors.ErrInvalidParameter, len(constraints), len(phonemes))
	}

	composite, segments, err := buildComposite(models, phonemes)
	if err != nil {
		return nil, err
	}

	if len(observations) == 0 {
		return &AlignmentResult{TotalScore: math.Inf(-1)}, nil
	}

	if tolerance <= 0 {
		tolerance = DefaultTimeTolerance
	}

	t := len(observations)
	frameWindows := make([][2]int, len(constraints))

	for i, c := range constraints {
		start := clampFrame(int(c.StartMs*frameRate/1000.0), t)
		end := clampFrame(int(c.EndMs*frameRate/1000.0), t)

		if end < start {
			end = start
		}

		frameWindows[i] = [2]int{start, end}
	}

	trellis, err := computeConstrainedTrellis(composite, observations, segments, frameWindows, tolerance)
	if err != nil {
		return nil, err
	}

	path, score := backtrackViterbi(trellis)
	boundaries := extractBoundaries(path, segments, frameRate)

	avgConfidence, posteriors, err := scoreConfidence(composite, observations, path)
	if err != nil {
		return nil, err
	}

	for i := range boundaries {
		boundaries[i].ConfidenceScore = segmentConfidence(posteriors, boundaries[i])
	}

	return &AlignmentResult{
		StatePath:         path,
		Boundaries:        boundaries,
		TotalScore:        score,
		AverageConfidence: avgConfidence,
		StatePosteriors:   posteriors,
	}, nil
}

func clampFrame(f, t int) int {
	if f < 0 {
		return 0
	}

	if f > t {
		return t
	}

	return f
}

// computeConstrainedTrellis is computeForcedTrellis with an additive
// log-probability penalty for frames that fall outside their owning
// phoneme's expected time window by more than tolerance*T frames.
func computeConstrainedTrellis(model *hmm.PhonemeHMM, observations [][]float64, segments []segment, frameWindows [][2]int, tolerance float64) ([][]float64, error) {
	t := len(observations)
	n := model.NumStates()

	trellis := make([][]float64, t)
	for i := range trellis {
		trellis[i] = make([]float64, n)
		for j := range trellis[i] {
			trellis[i][j] = math.Inf(-1)
		}
	}

	toleranceFrames := tolerance * float64(t)

	penalty := func(tm, stateIdx int) float64 {
		segIdx := segmentIndexOf(segments, stateIdx)
		if segIdx < 0 || segIdx >= len(frameWindows) {
			return 0
		}

		window := frameWindows[segIdx]

		var violation float64

		switch {
		case tm < window[0]:
			violation = float64(window[0] - tm)
		case tm >= window[1]:
			violation = float64(tm - window[1] + 1)
		}

		if violation <= toleranceFrames {
			return 0
		}

		return -timeWindowPenaltyScale * (violation - toleranceFrames) / (toleranceFrames + 1)
	}

	for j := 0; j < n; j++ {
		emission, err := model.States[j].LogEmission(observations[0])
		if err != nil {
			return nil, err
		}

		trellis[0][j] = emission + penalty(0, j)
	}

	for tm := 1; tm < t; tm++ {
		for j := 0; j < n; j++ {
			best := math.Inf(-1)

			if !math.IsInf(trellis[tm-1][j], -1) {
				score := trellis[tm-1][j] + math.Log(math.Max(model.States[j].Transition.SelfLoop, minTransitionProb))
				best = math.Max(best, score)
			}

			if j > 0 && !math.IsInf(trellis[tm-1][j-1], -1) {
				score := trellis[tm-1][j-1] + math.Log(math.Max(model.States[j-1].Transition.Next, minTransitionProb))
				best = math.Max(best, score)
			}

			if j > 1 && !math.IsInf(trellis[tm-1][j-2], -1) {
				score := trellis[tm-1][j-2] + hmm.SkipPenalty
				best = math.Max(best, score)
			}

			if math.IsInf(best, -1) {
				continue
			}

			emission, err := model.States[j].LogEmission(observations[tm])
			if err != nil {
				return nil, err
			}

			trellis[tm][j] = best + emission + penalty(tm, j)
		}
	}

	return trellis, nil
}
