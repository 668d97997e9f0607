package align

import (
	"math"

	"github.com/nexussynth/nexussynth-core/internal/forwardbackward"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
)

// AlignmentResult is the outcome of forced or constrained alignment: the
// frame-by-frame global state path, the phoneme boundaries it implies, and
// quality scores.
type AlignmentResult struct {
	StatePath         []int
	Boundaries        []PhonemeBoundary
	TotalScore        float64
	AverageConfidence float64
	StatePosteriors   []float64
}

// ForcedAlign decodes observations against the concatenation of models (one
// per phoneme in phonemes, same length and order), with skip transitions
// (state i to i+2 of the composite chain, held to hmm.SkipPenalty) enabled
// to tolerate fast articulation; a skip may cross a phoneme boundary. frameRate is frames per second, used
// to convert frame counts to milliseconds.
func ForcedAlign(models []*hmm.PhonemeHMM, phonemes []string, observations [][]float64, frameRate float64) (*AlignmentResult, error) {
	composite, segments, err := buildComposite(models, phonemes)
	if err != nil {
		return nil, err
	}

	if len(observations) == 0 {
		return &AlignmentResult{TotalScore: math.Inf(-1)}, nil
	}

	trellis, err := computeForcedTrellis(composite, observations)
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

// computeForcedTrellis is computeViterbiTrellis generalized with a skip
// transition (state j-2 to j, penalty hmm.SkipPenalty), and with every
// state free to start the sequence (forced alignment does not assume the
// utterance begins exactly in state 0 of the composite).
func computeForcedTrellis(model *hmm.PhonemeHMM, observations [][]float64) ([][]float64, error) {
	t := len(observations)
	n := model.NumStates()

	trellis := make([][]float64, t)
	for i := range trellis {
		trellis[i] = make([]float64, n)
		for j := range trellis[i] {
			trellis[i][j] = math.Inf(-1)
		}
	}

	for j := 0; j < n; j++ {
		emission, err := model.States[j].LogEmission(observations[0])
		if err != nil {
			return nil, err
		}

		trellis[0][j] = emission
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

			trellis[tm][j] = best + emission
		}
	}

	return trellis, nil
}

// scoreConfidence runs Forward-Backward over the composite model and reads
// off the state posterior (gamma) along the decoded path, mirroring
// compute_alignment_confidence / compute_state_posteriors: the average path
// posterior is the alignment's overall confidence.
func scoreConfidence(model *hmm.PhonemeHMM, observations [][]float64, path []int) (float64, []float64, error) {
	fb, err := forwardbackward.Run(model, observations)
	if err != nil {
		return 0, nil, err
	}

	posteriors := make([]float64, len(path))

	var total float64

	var valid int

	for t, state := range path {
		if t < len(fb.Gamma) && state >= 0 && state < len(fb.Gamma[t]) {
			posteriors[t] = fb.Gamma[t][state]
			total += posteriors[t]
			valid++
		}
	}

	if valid == 0 {
		return 0, posteriors, nil
	}

	return total / float64(valid), posteriors, nil
}

// segmentConfidence averages the per-frame posteriors over one boundary's
// frame range.
func segmentConfidence(posteriors []float64, b PhonemeBoundary) float64 {
	if b.EndFrame <= b.StartFrame {
		return 0
	}

	var sum float64

	for t := b.StartFrame; t < b.EndFrame && t < len(posteriors); t++ {
		sum += posteriors[t]
	}

	return sum / float64(b.EndFrame-b.StartFrame)
}
