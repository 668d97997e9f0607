// Package hmm implements the left-to-right hidden Markov model structures
// used by the training and alignment layers: per-state transitions, a
// Gaussian-mixture emission, and the context-keyed phoneme model.
package hmm

import (
	"fmt"

	"github.com/nexussynth/nexussynth-core/internal/gaussian"
	"github.com/nexussynth/nexussynth-core/internal/gmm"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

// DefaultNumStates is the standard HTS-style state count per phoneme HMM.
const DefaultNumStates = 5

// SkipPenalty is the log-probability penalty applied to a forced-alignment
// skip transition (state i to i+2), discouraging its use unless no other
// path exists.
const SkipPenalty = -2.0

// Transition holds the raw (possibly unnormalized) per-state outgoing
// probabilities for the left-to-right topology: self-loop, advance to the
// next state, and exit (only meaningful for the terminal state).
type Transition struct {
	SelfLoop float64
	Next     float64
	Exit     float64
}

// DefaultTransition returns the intermediate-state defaults.
func DefaultTransition() Transition {
	return Transition{SelfLoop: 0.6, Next: 0.4, Exit: 0.0}
}

// DefaultFinalTransition returns the terminal-state defaults.
func DefaultFinalTransition() Transition {
	return Transition{SelfLoop: 0.3, Next: 0.0, Exit: 0.7}
}

// Normalize rescales the three probabilities to sum to one. A zero sum
// leaves the transition untouched (there is nothing sensible to normalize).
func (t *Transition) Normalize() {
	sum := t.SelfLoop + t.Next + t.Exit
	if sum <= 0 {
		return
	}

	t.SelfLoop /= sum
	t.Next /= sum
	t.Exit /= sum
}

// State is one HMM state: an emission GMM and its outgoing transition.
// States own their GMM exclusively.
type State struct {
	ID         int
	Emission   *gmm.Mixture
	Transition Transition
}

// LogEmission returns the log-probability of x under the state's GMM.
func (s *State) LogEmission(x []float64) (float64, error) {
	return s.Emission.LogLikelihood(x)
}

// PhonemeHMM is the complete left-to-right model for one context-dependent
// unit: an ordered list of states and the canonical model name used as the
// training/synthesis map key.
type PhonemeHMM struct {
	States    []*State
	ModelName string
}

// NewPhonemeHMM builds a PhonemeHMM with numStates states, each initialized
// with an identity-covariance GMM of numMixtures components and dimension
// dim, wired with the default left-to-right transition probabilities
// (terminal state gets DefaultFinalTransition).
func NewPhonemeHMM(modelName string, numStates, numMixtures, dim int) (*PhonemeHMM, error) {
	if numStates <= 0 {
		return nil, fmt.Errorf("hmm: %w: numStates must be positive", nserrors.ErrInvalidParameter)
	}

	states := make([]*State, numStates)

	for i := 0; i < numStates; i++ {
		trans := DefaultTransition()
		if i == numStates-1 {
			trans = DefaultFinalTransition()
		}

		states[i] = &State{
			ID:         i,
			Emission:   gmm.NewUniform(numMixtures, dim),
			Transition: trans,
		}
	}

	return &PhonemeHMM{States: states, ModelName: modelName}, nil
}

// NumStates returns the number of states.
func (p *PhonemeHMM) NumStates() int { return len(p.States) }

// IsTerminal reports whether state index i is the final state.
func (p *PhonemeHMM) IsTerminal(i int) bool { return i == len(p.States)-1 }

// Clone returns a deep copy suitable for the trainer's previous-model
// checkpoint snapshot.
func (p *PhonemeHMM) Clone() *PhonemeHMM {
	states := make([]*State, len(p.States))

	for i, s := range p.States {
		cloned := make([]*gaussian.Component, s.Emission.NumComponents())
		for k := range cloned {
			cloned[k] = s.Emission.Component(k).Clone()
		}

		clonedMix, err := gmm.New(cloned)
		if err != nil {
			// Components were already mutually consistent in the source
			// mixture; cloning them cannot introduce a dimension mismatch.
			panic(err)
		}

		if err := clonedMix.SetWeights(s.Emission.Weights()); err != nil {
			panic(err)
		}

		states[i] = &State{ID: s.ID, Emission: clonedMix, Transition: s.Transition}
	}

	return &PhonemeHMM{States: states, ModelName: p.ModelName}
}
