package align

import (
	"fmt"

	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

// segment records where one phoneme's states live inside a composite,
// concatenated state space built by buildComposite.
type segment struct {
	phoneme    string
	startState int
	numStates  int
}

// contains reports whether the global state index belongs to this segment.
func (s segment) contains(stateIdx int) bool {
	return stateIdx >= s.startState && stateIdx < s.startState+s.numStates
}

// buildComposite concatenates one PhonemeHMM per entry of phonemes into a
// single left-to-right chain: states are laid out segment by segment in
// order, and every non-terminal segment's final state has its advance
// probability set to that state's own Exit probability (the "leave this
// phoneme's model" probability), so a single Next-transition field drives
// both intra-phoneme advances and inter-phoneme handoffs uniformly. Every
// State's Emission is shared with the source model; only the Transition
// value is (possibly) rewritten, so the source models are left untouched.
func buildComposite(models []*hmm.PhonemeHMM, phonemes []string) (*hmm.PhonemeHMM, []segment, error) {
	if len(models) != len(phonemes) {
		return nil, nil, fmt.Errorf("align: %w: %d models for %d phonemes", nserrors.ErrInvalidParameter, len(models), len(phonemes))
	}

	if len(models) == 0 {
		return nil, nil, fmt.Errorf("align: %w: empty phoneme sequence", nserrors.ErrInvalidParameter)
	}

	var states []*hmm.State

	segments := make([]segment, len(models))

	for i, model := range models {
		if model.NumStates() == 0 {
			return nil, nil, fmt.Errorf("align: %w: phoneme %q has a zero-state model", nserrors.ErrInvalidParameter, phonemes[i])
		}

		segments[i] = segment{phoneme: phonemes[i], startState: len(states), numStates: model.NumStates()}

		for localIdx, s := range model.States {
			trans := s.Transition

			isSegmentFinal := localIdx == model.NumStates()-1
			isCompositeFinal := i == len(models)-1 && isSegmentFinal

			if isSegmentFinal && !isCompositeFinal {
				trans.Next = trans.Exit
			}

			states = append(states, &hmm.State{ID: len(states), Emission: s.Emission, Transition: trans})
		}
	}

	composite := &hmm.PhonemeHMM{States: states, ModelName: "forced-alignment-composite"}

	return composite, segments, nil
}

// segmentIndexOf returns the index into segments owning the given global
// state index, or -1 if out of range.
func segmentIndexOf(segments []segment, stateIdx int) int {
	for i, seg := range segments {
		if seg.contains(stateIdx) {
			return i
		}
	}

	return -1
}
