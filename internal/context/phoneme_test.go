package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRecognizesVowelsAndConsonants(t *testing.T) {
	inv := NewJapaneseInventory()

	a := inv.Classify("a")
	assert.True(t, a.IsVowel)
	assert.True(t, a.VowelLow)

	k := inv.Classify("k")
	assert.True(t, k.IsConsonant)
	assert.True(t, k.MannerStop)
	assert.False(t, k.Voiced)

	g := inv.Classify("g")
	assert.True(t, g.Voiced)
}

func TestClassifyFallsBackToSilence(t *testing.T) {
	inv := NewJapaneseInventory()

	assert.True(t, inv.Classify("zzz-unknown").IsSilence)
	assert.True(t, inv.Classify("").IsSilence)
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	inv := NewJapaneseInventory()

	lower := inv.Classify("sh")
	upper := inv.Classify("SH")
	assert.Equal(t, lower, upper)
}

func TestVectorHasFixedWidthAndOrder(t *testing.T) {
	inv := NewJapaneseInventory()
	v := inv.Classify("a").Vector()

	assert.Len(t, v, FeatureSize)
	assert.Equal(t, 1.0, v[0]) // IsVowel is field 0
}

func TestNewInventoryCopiesTable(t *testing.T) {
	table := map[string]Features{"x": {IsConsonant: true}}
	inv := NewInventory(table)

	table["x"] = Features{IsVowel: true}

	assert.True(t, inv.Classify("x").IsConsonant)
}
