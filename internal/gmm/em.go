package gmm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nexussynth/nexussynth-core/internal/gaussian"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

var errEmptyData = fmt.Errorf("gmm: %w: cannot initialize from empty data", nserrors.ErrInvalidParameter)

// sufficientStatistics accumulates the EM E-step sums for one component:
// the responsibility mass, the responsibility-weighted observation sum, and
// the responsibility-weighted outer-product sum.
type sufficientStatistics struct {
	gamma   float64
	gammaX  []float64
	gammaXX [][]float64
}

func newSufficientStatistics(dim int) *sufficientStatistics {
	xx := make([][]float64, dim)
	for i := range xx {
		xx[i] = make([]float64, dim)
	}

	return &sufficientStatistics{gammaX: make([]float64, dim), gammaXX: xx}
}

func (s *sufficientStatistics) accumulate(x []float64, resp float64) {
	s.gamma += resp

	for i, xi := range x {
		s.gammaX[i] += resp * xi

		for j, xj := range x {
			s.gammaXX[i][j] += resp * xi * xj
		}
	}
}

// updateParameters derives the new mean and covariance from the
// accumulated statistics: mean = gammaX/gamma, cov = gammaXX/gamma -
// mean*mean^T.
func (s *sufficientStatistics) updateParameters(dim int) (mean []float64, cov [][]float64) {
	mean = make([]float64, dim)
	for i := range mean {
		mean[i] = s.gammaX[i] / s.gamma
	}

	cov = make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)

		for j := range cov[i] {
			cov[i][j] = s.gammaXX[i][j]/s.gamma - mean[i]*mean[j]
		}
	}

	return mean, cov
}

// EMStep runs one unweighted EM iteration (accumulate responsibilities,
// re-estimate weights/means/covariances, PSD-repair; components with
// near-zero responsibility keep their parameters) and returns the sequence log-likelihood after the update.
func (m *Mixture) EMStep(observations [][]float64) (float64, error) {
	weights := make([]float64, len(observations))
	for i := range weights {
		weights[i] = 1.0
	}

	return m.WeightedEMStep(observations, weights)
}

// WeightedEMStep is the general EM step: each observation carries a prior
// weight that is multiplied into its responsibilities before accumulation.
// This is the path used when gamma comes from externally computed HMM
// state posteriors. Observations whose prior weight is below MinWeight are
// dropped.
func (m *Mixture) WeightedEMStep(observations [][]float64, obsWeights []float64) (float64, error) {
	if len(observations) == 0 || len(m.components) == 0 {
		return 0, nil
	}

	stats := make([]*sufficientStatistics, len(m.components))
	for i := range stats {
		stats[i] = newSufficientStatistics(m.dim)
	}

	for idx, x := range observations {
		w := 1.0
		if obsWeights != nil {
			w = obsWeights[idx]
		}

		if w < MinWeight {
			continue
		}

		resp, err := m.Responsibilities(x)
		if err != nil {
			return 0, err
		}

		for i, r := range resp {
			stats[i].accumulate(x, r*w)
		}
	}

	var totalGamma float64
	for _, s := range stats {
		totalGamma += s.gamma
	}

	if totalGamma > 0 {
		for i, s := range stats {
			if s.gamma < MinWeight {
				continue
			}

			mean, cov := s.updateParameters(m.dim)

			if err := m.components[i].SetMean(mean); err != nil {
				return 0, err
			}

			if err := m.components[i].SetCovariance(cov); err != nil {
				return 0, err
			}

			m.components[i].Regularize(0)

			m.weights[i] = s.gamma / totalGamma
		}
	}

	m.NormalizeWeights()

	return m.weightedLogLikelihood(observations, obsWeights)
}

func (m *Mixture) weightedLogLikelihood(observations [][]float64, obsWeights []float64) (float64, error) {
	if obsWeights == nil {
		return m.LogLikelihoodSequence(observations)
	}

	var totalWeighted, totalWeight float64

	for i, x := range observations {
		if obsWeights[i] <= 0 {
			continue
		}

		ll, err := m.LogLikelihood(x)
		if err != nil {
			return 0, err
		}

		totalWeighted += obsWeights[i] * ll
		totalWeight += obsWeights[i]
	}

	if totalWeight <= 0 {
		return logEpsilon, nil
	}

	return totalWeighted / totalWeight, nil
}

// TrainEM iterates EMStep until the log-likelihood changes by less than tol
// between successive iterations or maxIter is reached, returning the final
// log-likelihood.
func (m *Mixture) TrainEM(observations [][]float64, maxIter int, tol float64) (float64, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	prev, err := m.LogLikelihoodSequence(observations)
	if err != nil {
		return 0, err
	}

	ll := prev

	for iter := 0; iter < maxIter; iter++ {
		ll, err = m.EMStep(observations)
		if err != nil {
			return 0, err
		}

		if math.Abs(ll-prev) < tol {
			break
		}

		prev = ll
	}

	return ll, nil
}

// TrainWeightedEM is TrainEM's weighted-observation counterpart.
func (m *Mixture) TrainWeightedEM(observations [][]float64, obsWeights []float64, maxIter int, tol float64) (float64, error) {
	if len(observations) == 0 || len(observations) != len(obsWeights) {
		return 0, nil
	}

	prev, err := m.weightedLogLikelihood(observations, obsWeights)
	if err != nil {
		return 0, err
	}

	ll := prev

	for iter := 0; iter < maxIter; iter++ {
		ll, err = m.WeightedEMStep(observations, obsWeights)
		if err != nil {
			return 0, err
		}

		if math.Abs(ll-prev) < tol {
			break
		}

		prev = ll
	}

	return ll, nil
}

// InitializeKMeans seeds the mixture's components from k-means clusters of
// data: centroids start from uniformly sampled data points, reassignment
// runs for up to maxIterations or until no point changes cluster, and each
// resulting cluster's empirical mean/covariance become one component. An
// empty cluster is re-seeded randomly around the overall data mean with a
// scaled-down overall covariance.
func (m *Mixture) InitializeKMeans(data [][]float64, numComponents, maxIterations int, rng *rand.Rand) error {
	if len(data) == 0 {
		return errEmptyData
	}

	dim := len(data[0])
	assignments := kmeansClustering(data, numComponents, maxIterations, rng)

	dataMean, dataCov := empiricalMoments(data, dim)

	components := make([]*gaussian.Component, 0, numComponents)
	weights := make([]float64, 0, numComponents)

	for k := 0; k < numComponents; k++ {
		var cluster [][]float64

		for i, a := range assignments {
			if a == k {
				cluster = append(cluster, data[i])
			}
		}

		if len(cluster) == 0 {
			c, err := randomComponentAround(dataMean, dataCov, dim, rng)
			if err != nil {
				return err
			}

			components = append(components, c)
			weights = append(weights, 1.0/float64(numComponents))

			continue
		}

		mean, cov := empiricalMoments(cluster, dim)
		for i := range cov {
			cov[i][i] += numericsMinVariance
		}

		c, err := gaussian.New(mean, cov, 1.0)
		if err != nil {
			return err
		}

		components = append(components, c)
		weights = append(weights, float64(len(cluster))/float64(len(data)))
	}

	m.components = components
	m.weights = weights
	m.dim = dim
	m.NormalizeWeights()

	return nil
}

const numericsMinVariance = 1e-6

func empiricalMoments(data [][]float64, dim int) (mean []float64, cov [][]float64) {
	mean = make([]float64, dim)

	for _, x := range data {
		for i, v := range x {
			mean[i] += v
		}
	}

	n := float64(len(data))
	for i := range mean {
		mean[i] /= n
	}

	cov = make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)
	}

	for _, x := range data {
		for i := range cov {
			di := x[i] - mean[i]
			for j := range cov[i] {
				dj := x[j] - mean[j]
				cov[i][j] += di * dj
			}
		}
	}

	for i := range cov {
		for j := range cov[i] {
			cov[i][j] /= n
		}
	}

	return mean, cov
}

func randomComponentAround(mean []float64, cov [][]float64, dim int, rng *rand.Rand) (*gaussian.Component, error) {
	perturbed := make([]float64, dim)

	for j := range perturbed {
		sd := math.Sqrt(math.Max(cov[j][j], 0))
		perturbed[j] = mean[j] + rng.NormFloat64()*sd*0.5
	}

	scaled := make([][]float64, dim)
	for i := range scaled {
		scaled[i] = make([]float64, dim)

		for j := range scaled[i] {
			scaled[i][j] = cov[i][j] * 0.5
		}

		scaled[i][i] += numericsMinVariance
	}

	return gaussian.New(perturbed, scaled, 1.0)
}

func kmeansClustering(data [][]float64, numClusters, maxIterations int, rng *rand.Rand) []int {
	assignments := make([]int, len(data))

	centroids := make([][]float64, numClusters)
	for k := range centroids {
		centroids[k] = append([]float64(nil), data[rng.Intn(len(data))]...)
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false

		for i, x := range data {
			best := 0
			bestDist := squaredDistance(x, centroids[0])

			for k := 1; k < numClusters; k++ {
				d := squaredDistance(x, centroids[k])
				if d < bestDist {
					bestDist = d
					best = k
				}
			}

			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		counts := make([]int, numClusters)
		sums := make([][]float64, numClusters)

		for k := range sums {
			sums[k] = make([]float64, len(data[0]))
		}

		for i, x := range data {
			k := assignments[i]
			counts[k]++

			for d, v := range x {
				sums[k][d] += v
			}
		}

		for k := range centroids {
			if counts[k] == 0 {
				continue
			}

			for d := range centroids[k] {
				centroids[k][d] = sums[k][d] / float64(counts[k])
			}
		}
	}

	return assignments
}

func squaredDistance(a, b []float64) float64 {
	var sum float64

	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}
