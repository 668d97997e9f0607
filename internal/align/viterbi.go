// Package align implements Viterbi decoding and forced/constrained alignment
// against left-to-right phoneme HMMs: single-model best-path decoding, a
// multi-phoneme forced alignment with skip transitions, soft time-windowed
// constrained alignment, and phoneme boundary/confidence extraction.
package align

import (
	"math"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
)

// minTransitionProb floors a zero transition probability before taking its
// log, mirroring the reference trainer's 1e-10 clamp.
const minTransitionProb = 1e-10

// Path is the result of decoding one observation sequence against one model:
// the most likely state index for every frame and the path's total
// log-score.
type Path struct {
	States     []int
	TotalScore float64
}

// Decode runs plain Viterbi (no skip transitions) over a single PhonemeHMM,
// returning the best state sequence. Ties between the self-loop and the
// advance transition are broken toward the self-loop, matching the
// backtracking convention used by forced and constrained alignment.
func Decode(model *hmm.PhonemeHMM, observations [][]float64) (*Path, error) {
	t := len(observations)
	n := model.NumStates()

	if t == 0 || n == 0 {
		return &Path{TotalScore: math.Inf(-1)}, nil
	}

	trellis, err := computeViterbiTrellis(model, observations)
	if err != nil {
		return nil, err
	}

	states, score := backtrackViterbi(trellis)

	return &Path{States: states, TotalScore: score}, nil
}

// computeViterbiTrellis builds trellis[t][j] = max log-score of any path
// ending in state j at time t, using only self-loop and single-state-advance
// transitions (no skips).
func computeViterbiTrellis(model *hmm.PhonemeHMM, observations [][]float64) ([][]float64, error) {
	t := len(observations)
	n := model.NumStates()

	trellis := make([][]float64, t)
	for i := range trellis {
		trellis[i] = make([]float64, n)
		for j := range trellis[i] {
			trellis[i][j] = math.Inf(-1)
		}
	}

	emission0, err := model.States[0].LogEmission(observations[0])
	if err != nil {
		return nil, err
	}

	trellis[0][0] = emission0

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

			if math.IsInf(best, -1) {
				continue
			}

			emission, err := model.States[j].LogEmission(observations[tm])
			if err != nil {
				return nil, err
			}

			trellis[tm][j] = best + emission
		}
	}

	return trellis, nil
}

// backtrackViterbi finds the highest-scoring final state and walks the
// trellis backward. At each step the default predecessor is the current
// state (self-loop); it only steps back to current-1 when that predecessor's
// score strictly exceeds the self-loop's, so ties favor the self-loop.
func backtrackViterbi(trellis [][]float64) ([]int, float64) {
	t := len(trellis)
	if t == 0 {
		return nil, math.Inf(-1)
	}

	n := len(trellis[0])

	lastState := 0
	bestScore := trellis[t-1][0]

	for j := 1; j < n; j++ {
		if trellis[t-1][j] > bestScore {
			bestScore = trellis[t-1][j]
			lastState = j
		}
	}

	states := make([]int, t)
	states[t-1] = lastState

	current := lastState
	for tm := t - 2; tm >= 0; tm-- {
		prev := current

		if current > 0 && trellis[tm][current-1] > trellis[tm][current] {
			prev = current - 1
		}

		states[tm] = prev
		current = prev
	}

	return states, bestScore
}
