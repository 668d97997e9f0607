// Package forwardbackward computes log-domain forward (alpha), backward
// (beta), and state-posterior (gamma) matrices for one observation sequence
// against one left-to-right HMM, the E-step of Baum-Welch training.
package forwardbackward

import (
	"math"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/numerics"
)

// Result holds the per-sequence Forward-Backward output.
type Result struct {
	// Forward[t][i] = log alpha(t, i).
	Forward [][]float64
	// Backward[t][i] = log beta(t, i).
	Backward [][]float64
	// Gamma[t][i] = P(state i at time t | observations), normalized to sum
	// to one per frame.
	Gamma [][]float64
	// LogLikelihood is the per-frame average log-likelihood: the log-sum-exp
	// across the final column's alpha+beta, divided by T.
	LogLikelihood float64
}

// Run computes the Forward-Backward result for model against observations.
// A zero-length sequence or a model with no states returns a zero-filled
// Result with LogLikelihood = -Inf, matching the spec's "no error on
// degenerate input" failure semantics.
func Run(model *hmm.PhonemeHMM, observations [][]float64) (*Result, error) {
	t := len(observations)
	n := model.NumStates()

	if t == 0 || n == 0 {
		return &Result{LogLikelihood: math.Inf(-1)}, nil
	}

	forward, err := computeForward(model, observations)
	if err != nil {
		return nil, err
	}

	backward, err := computeBackward(model, observations)
	if err != nil {
		return nil, err
	}

	gamma := make([][]float64, t)
	frameLL := make([]float64, t)

	for tm := 0; tm < t; tm++ {
		gamma[tm] = make([]float64, n)

		var stateProbs []float64

		for i := 0; i < n; i++ {
			if !math.IsInf(forward[tm][i], -1) && !math.IsInf(backward[tm][i], -1) {
				stateProbs = append(stateProbs, forward[tm][i]+backward[tm][i])
			}
		}

		if len(stateProbs) == 0 {
			frameLL[tm] = math.Inf(-1)
			continue
		}

		ll := numerics.LogSumExp(stateProbs)
		frameLL[tm] = ll

		for i := 0; i < n; i++ {
			if !math.IsInf(forward[tm][i], -1) && !math.IsInf(backward[tm][i], -1) {
				gamma[tm][i] = math.Exp(forward[tm][i] + backward[tm][i] - ll)
			}
		}
	}

	total := frameLL[t-1] / float64(t)

	return &Result{Forward: forward, Backward: backward, Gamma: gamma, LogLikelihood: total}, nil
}

func computeForward(model *hmm.PhonemeHMM, observations [][]float64) ([][]float64, error) {
	t := len(observations)
	n := model.NumStates()

	forward := make([][]float64, t)
	for i := range forward {
		forward[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		emission, err := model.States[i].LogEmission(observations[0])
		if err != nil {
			return nil, err
		}

		if i == 0 {
			forward[0][i] = emission
		} else {
			forward[0][i] = math.Inf(-1)
		}
	}

	for tm := 1; tm < t; tm++ {
		for j := 0; j < n; j++ {
			var preds []float64

			if !math.IsInf(forward[tm-1][j], -1) {
				preds = append(preds, forward[tm-1][j]+math.Log(model.States[j].Transition.SelfLoop))
			}

			if j > 0 && !math.IsInf(forward[tm-1][j-1], -1) {
				preds = append(preds, forward[tm-1][j-1]+math.Log(model.States[j-1].Transition.Next))
			}

			if len(preds) == 0 {
				forward[tm][j] = math.Inf(-1)
				continue
			}

			emission, err := model.States[j].LogEmission(observations[tm])
			if err != nil {
				return nil, err
			}

			forward[tm][j] = numerics.LogSumExp(preds) + emission
		}
	}

	return forward, nil
}

func computeBackward(model *hmm.PhonemeHMM, observations [][]float64) ([][]float64, error) {
	t := len(observations)
	n := model.NumStates()

	backward := make([][]float64, t)
	for i := range backward {
		backward[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		if i == n-1 {
			backward[t-1][i] = 0.0
		} else {
			backward[t-1][i] = math.Inf(-1)
		}
	}

	for tm := t - 2; tm >= 0; tm-- {
		for i := 0; i < n; i++ {
			var terms []float64

			if !math.IsInf(backward[tm+1][i], -1) {
				emission, err := model.States[i].LogEmission(observations[tm+1])
				if err != nil {
					return nil, err
				}

				terms = append(terms, math.Log(model.States[i].Transition.SelfLoop)+emission+backward[tm+1][i])
			}

			if i < n-1 && !math.IsInf(backward[tm+1][i+1], -1) {
				emission, err := model.States[i+1].LogEmission(observations[tm+1])
				if err != nil {
					return nil, err
				}

				terms = append(terms, math.Log(model.States[i].Transition.Next)+emission+backward[tm+1][i+1])
			}

			if len(terms) == 0 {
				backward[tm][i] = math.Inf(-1)
				continue
			}

			backward[tm][i] = numerics.LogSumExp(terms)
		}
	}

	return backward, nil
}
