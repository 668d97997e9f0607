package hmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhonemeHMMDefaults(t *testing.T) {
	p, err := NewPhonemeHMM("a-b+c", DefaultNumStates, 2, 4)
	require.NoError(t, err)
	require.Len(t, p.States, DefaultNumStates)

	for i, s := range p.States {
		if p.IsTerminal(i) {
			assert.Equal(t, DefaultFinalTransition(), s.Transition)
		} else {
			assert.Equal(t, DefaultTransition(), s.Transition)
		}
	}
}

func TestTransitionNormalizeSumsToOne(t *testing.T) {
	tr := Transition{SelfLoop: 2, Next: 2, Exit: 0}
	tr.Normalize()

	assert.InDelta(t, 1.0, tr.SelfLoop+tr.Next+tr.Exit, 1e-9)
	assert.InDelta(t, 0.5, tr.SelfLoop, 1e-9)
}

func TestTransitionNormalizeZeroSumNoOp(t *testing.T) {
	tr := Transition{}
	tr.Normalize()
	assert.Equal(t, Transition{}, tr)
}

func TestCloneIsIndependent(t *testing.T) {
	p, err := NewPhonemeHMM("a-b+c", 3, 1, 2)
	require.NoError(t, err)

	clone := p.Clone()
	require.NoError(t, clone.States[0].Emission.Component(0).SetMean([]float64{5, 5}))

	assert.NotEqual(t, clone.States[0].Emission.Component(0).Mean(), p.States[0].Emission.Component(0).Mean())
}
