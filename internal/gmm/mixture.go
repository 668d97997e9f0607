// Package gmm implements a weighted Gaussian mixture with EM training,
// k-means initialization, and AIC/BIC model selection, used as the emission
// distribution of each HMM state.
package gmm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nexussynth/nexussynth-core/internal/gaussian"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
	"github.com/nexussynth/nexussynth-core/internal/numerics"
)

// MinWeight is the floor below which a mixture weight is considered empty
// and the component becomes a removal candidate.
const MinWeight = 1e-10

// logEpsilon stands in for log(0) in degenerate evaluations (empty mixture,
// zero weight), mirroring the reference implementation's LOG_EPSILON.
const logEpsilon = -1e10

// Mixture is an ordered list of Gaussian components with a weight vector
// that sums to one.
type Mixture struct {
	components []*gaussian.Component
	weights    []float64
	dim        int
}

// New builds a mixture from components with uniform initial weights.
func New(components []*gaussian.Component) (*Mixture, error) {
	if len(components) == 0 {
		return &Mixture{}, nil
	}

	dim := components[0].Dimension()
	for _, c := range components {
		if c.Dimension() != dim {
			return nil, fmt.Errorf("gmm: %w: component dimension %d, want %d", nserrors.ErrInvalidDimension, c.Dimension(), dim)
		}
	}

	m := &Mixture{
		components: append([]*gaussian.Component(nil), components...),
		weights:    make([]float64, len(components)),
		dim:        dim,
	}

	uniform := 1.0 / float64(len(components))
	for i := range m.weights {
		m.weights[i] = uniform
	}

	return m, nil
}

// NewUniform builds K identity-covariance components of the given dimension
// with uniform weights, the default construction used before training.
func NewUniform(numComponents, dim int) *Mixture {
	components := make([]*gaussian.Component, numComponents)
	weights := make([]float64, numComponents)
	uniform := 1.0 / float64(numComponents)

	for i := range components {
		components[i] = gaussian.Identity(dim, uniform)
		weights[i] = uniform
	}

	return &Mixture{components: components, weights: weights, dim: dim}
}

// NumComponents returns K.
func (m *Mixture) NumComponents() int { return len(m.components) }

// Dimension returns D.
func (m *Mixture) Dimension() int { return m.dim }

// Component returns the k-th component.
func (m *Mixture) Component(k int) *gaussian.Component { return m.components[k] }

// Weights returns a copy of the weight vector.
func (m *Mixture) Weights() []float64 { return append([]float64(nil), m.weights...) }

// AddComponent appends a component with weight renormalized across the
// mixture.
func (m *Mixture) AddComponent(c *gaussian.Component) error {
	if len(m.components) > 0 && c.Dimension() != m.dim {
		return fmt.Errorf("gmm: %w: component dimension %d, want %d", nserrors.ErrInvalidDimension, c.Dimension(), m.dim)
	}

	if len(m.components) == 0 {
		m.dim = c.Dimension()
	}

	m.components = append(m.components, c)
	m.weights = append(m.weights, 1.0/float64(len(m.components)))
	m.NormalizeWeights()

	return nil
}

// RemoveComponent deletes the component at index and renormalizes weights.
func (m *Mixture) RemoveComponent(index int) {
	m.components = append(m.components[:index], m.components[index+1:]...)
	m.weights = append(m.weights[:index], m.weights[index+1:]...)
	m.NormalizeWeights()
}

// SetWeights replaces the weight vector wholesale, validating length and
// non-negativity, then renormalizes.
func (m *Mixture) SetWeights(weights []float64) error {
	if len(weights) != len(m.components) {
		return fmt.Errorf("gmm: %w: weight vector has %d entries, want %d", nserrors.ErrInvalidDimension, len(weights), len(m.components))
	}

	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("gmm: %w: weight %g is negative", nserrors.ErrInvalidParameter, w)
		}
	}

	m.weights = append([]float64(nil), weights...)
	m.NormalizeWeights()

	return nil
}

// NormalizeWeights rescales weights to sum to one; if all weights are zero
// it falls back to a uniform distribution.
func (m *Mixture) NormalizeWeights() {
	if len(m.weights) == 0 {
		return
	}

	var sum float64
	for _, w := range m.weights {
		sum += w
	}

	if sum > 0 {
		for i := range m.weights {
			m.weights[i] /= sum
		}

		return
	}

	uniform := 1.0 / float64(len(m.weights))
	for i := range m.weights {
		m.weights[i] = uniform
	}
}

// RemoveEmptyComponents drops every component whose weight is below
// minWeight, then renormalizes.
func (m *Mixture) RemoveEmptyComponents(minWeight float64) {
	for i := len(m.components) - 1; i >= 0; i-- {
		if m.weights[i] < minWeight {
			m.RemoveComponent(i)
		}
	}
}

func (m *Mixture) logWeighted(x []float64) ([]float64, error) {
	out := make([]float64, len(m.components))

	for i, c := range m.components {
		logW := logEpsilon
		if m.weights[i] > 0 {
			logW = math.Log(m.weights[i])
		}

		lp, err := c.LogPDF(x)
		if err != nil {
			return nil, err
		}

		out[i] = logW + lp
	}

	return out, nil
}

// LogLikelihood returns log-sum-exp_k(log w_k + log N_k(x)).
func (m *Mixture) LogLikelihood(x []float64) (float64, error) {
	if len(m.components) == 0 {
		return logEpsilon, nil
	}

	lw, err := m.logWeighted(x)
	if err != nil {
		return 0, err
	}

	return numerics.LogSumExp(lw), nil
}

// Likelihood returns exp(LogLikelihood(x)).
func (m *Mixture) Likelihood(x []float64) (float64, error) {
	ll, err := m.LogLikelihood(x)
	if err != nil {
		return 0, err
	}

	return math.Exp(ll), nil
}

// Responsibilities returns the softmax-normalized posterior over components
// for x; entries sum to one.
func (m *Mixture) Responsibilities(x []float64) ([]float64, error) {
	if len(m.components) == 0 {
		return nil, nil
	}

	lw, err := m.logWeighted(x)
	if err != nil {
		return nil, err
	}

	logSum := numerics.LogSumExp(lw)

	out := make([]float64, len(lw))
	for i, v := range lw {
		out[i] = math.Exp(v - logSum)
	}

	return out, nil
}

// MostLikelyComponent returns the index of the component with highest
// responsibility for x.
func (m *Mixture) MostLikelyComponent(x []float64) (int, error) {
	resp, err := m.Responsibilities(x)
	if err != nil {
		return 0, err
	}

	best := 0

	for i, r := range resp {
		if r > resp[best] {
			best = i
		}
	}

	return best, nil
}

// LogLikelihoodSequence sums LogLikelihood over every observation.
func (m *Mixture) LogLikelihoodSequence(observations [][]float64) (float64, error) {
	var total float64

	for _, x := range observations {
		ll, err := m.LogLikelihood(x)
		if err != nil {
			return 0, err
		}

		total += ll
	}

	return total, nil
}

// Sample draws one observation: a component selected by weight, then a
// sample from that component.
func (m *Mixture) Sample(rng *rand.Rand) []float64 {
	if len(m.components) == 0 {
		return nil
	}

	u := rng.Float64()

	var cum float64

	selected := len(m.components) - 1

	for i, w := range m.weights {
		cum += w
		if u <= cum {
			selected = i
			break
		}
	}

	return m.components[selected].Sample(rng)
}

// IsValid reports whether every component is valid and the weights sum to
// one within 1e-6.
func (m *Mixture) IsValid() bool {
	if len(m.components) != len(m.weights) {
		return false
	}

	var sum float64

	for i, c := range m.components {
		if !c.IsValid() {
			return false
		}

		sum += m.weights[i]
	}

	return len(m.weights) == 0 || math.Abs(sum-1.0) < 1e-6
}

// Regularize applies gaussian.Component.Regularize to every component, then
// drops empty components and renormalizes.
func (m *Mixture) Regularize(minVariance float64) {
	for _, c := range m.components {
		c.Regularize(minVariance)
	}

	m.RemoveEmptyComponents(MinWeight)
	m.NormalizeWeights()
}

// EffectiveParameters returns K*(D + D(D+1)/2) + (K-1), the free-parameter
// count used by AIC/BIC.
func (m *Mixture) EffectiveParameters() int {
	if len(m.components) == 0 {
		return 0
	}

	perComponent := m.dim + m.dim*(m.dim+1)/2
	weights := len(m.components) - 1

	return len(m.components)*perComponent + weights
}

// AIC returns -2*LL + 2*p.
func (m *Mixture) AIC(observations [][]float64) (float64, error) {
	ll, err := m.LogLikelihoodSequence(observations)
	if err != nil {
		return 0, err
	}

	return -2*ll + 2*float64(m.EffectiveParameters()), nil
}

// BIC returns -2*LL + p*log(N).
func (m *Mixture) BIC(observations [][]float64) (float64, error) {
	ll, err := m.LogLikelihoodSequence(observations)
	if err != nil {
		return 0, err
	}

	n := float64(len(observations))

	return -2*ll + float64(m.EffectiveParameters())*math.Log(n), nil
}
