package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstDifferenceCentralInterior(t *testing.T) {
	frames := [][]float64{{0}, {2}, {6}}
	diff := firstDifference(frames)

	assert.InDelta(t, 2.0, diff[0][0], 1e-9) // one-sided: frames[1]-frames[0]
	assert.InDelta(t, 3.0, diff[1][0], 1e-9) // central: (6-0)/2
	assert.InDelta(t, 4.0, diff[2][0], 1e-9) // one-sided: frames[2]-frames[1]
}

func TestAddDeltaFeaturesDoublesOrTriplesWidth(t *testing.T) {
	static := [][]float64{{1}, {2}, {3}}

	withDelta := addDeltaFeatures(static, false)
	assert.Len(t, withDelta[0], 2)

	withDeltaDelta := addDeltaFeatures(static, true)
	assert.Len(t, withDeltaDelta[0], 3)
}

func TestAddDeltaFeaturesSingleFrameIsZero(t *testing.T) {
	static := [][]float64{{5, 5}}
	out := addDeltaFeatures(static, true)

	assert.Equal(t, []float64{5, 5, 0, 0, 0, 0}, out[0])
}
