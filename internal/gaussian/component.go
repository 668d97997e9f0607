// Package gaussian implements a single multivariate Gaussian component with
// cached precision matrix and log-determinant, as used by the per-state
// emission mixtures of the HMM layer.
package gaussian

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nexussynth/nexussynth-core/internal/nserrors"
	"github.com/nexussynth/nexussynth-core/internal/numerics"
	"gonum.org/v1/gonum/mat"
)

// Component is a single Gaussian (mean, covariance, weight) with a lazily
// rebuilt cache of its precision matrix, log-determinant, and log
// normalization constant. The cache is invalidated whenever the covariance
// changes and rebuilt on the next read.
type Component struct {
	mean       []float64
	cov        *mat.SymDense
	weight     float64
	dim        int
	precision  *mat.SymDense
	logDet     float64
	logNorm    float64
	cacheValid bool
}

// New builds a Component from a mean vector, a covariance matrix (row-major,
// dim x dim), and a weight. It returns ErrInvalidDimension when the mean and
// covariance disagree in size, and ErrInvalidParameter for a negative
// weight.
func New(mean []float64, cov [][]float64, weight float64) (*Component, error) {
	dim := len(mean)
	if dim == 0 {
		return nil, fmt.Errorf("gaussian: %w: mean must be non-empty", nserrors.ErrInvalidDimension)
	}

	if len(cov) != dim {
		return nil, fmt.Errorf("gaussian: %w: covariance has %d rows, want %d", nserrors.ErrInvalidDimension, len(cov), dim)
	}

	if weight < 0 {
		return nil, fmt.Errorf("gaussian: %w: weight %g is negative", nserrors.ErrInvalidParameter, weight)
	}

	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		if len(cov[i]) != dim {
			return nil, fmt.Errorf("gaussian: %w: covariance row %d has %d cols, want %d", nserrors.ErrInvalidDimension, i, len(cov[i]), dim)
		}

		for j := i; j < dim; j++ {
			sym.SetSym(i, j, cov[i][j])
		}
	}

	c := &Component{
		mean:   append([]float64(nil), mean...),
		cov:    sym,
		weight: weight,
		dim:    dim,
	}

	return c, nil
}

// Identity returns a Component with zero mean, identity covariance, and the
// given weight — the default initializer used before k-means seeding.
func Identity(dim int, weight float64) *Component {
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		sym.SetSym(i, i, 1.0)
	}

	return &Component{
		mean:   make([]float64, dim),
		cov:    sym,
		weight: weight,
		dim:    dim,
	}
}

// Dimension returns D.
func (c *Component) Dimension() int { return c.dim }

// Weight returns the component's mixture weight.
func (c *Component) Weight() float64 { return c.weight }

// Mean returns a copy of the mean vector.
func (c *Component) Mean() []float64 { return append([]float64(nil), c.mean...) }

// Covariance returns a copy of the covariance matrix as a dense row-major
// slice.
func (c *Component) Covariance() [][]float64 {
	out := make([][]float64, c.dim)
	for i := 0; i < c.dim; i++ {
		out[i] = make([]float64, c.dim)
		for j := 0; j < c.dim; j++ {
			out[i][j] = c.cov.At(i, j)
		}
	}

	return out
}

// SetMean replaces the mean. It does not invalidate the cache: the precision
// matrix and log-determinant depend only on the covariance.
func (c *Component) SetMean(mean []float64) error {
	if len(mean) != c.dim {
		return fmt.Errorf("gaussian: %w: mean has %d elements, want %d", nserrors.ErrInvalidDimension, len(mean), c.dim)
	}

	c.mean = append([]float64(nil), mean...)

	return nil
}

// SetCovariance replaces the covariance and invalidates the cache.
func (c *Component) SetCovariance(cov [][]float64) error {
	if len(cov) != c.dim {
		return fmt.Errorf("gaussian: %w: covariance has %d rows, want %d", nserrors.ErrInvalidDimension, len(cov), c.dim)
	}

	sym := mat.NewSymDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		if len(cov[i]) != c.dim {
			return fmt.Errorf("gaussian: %w: covariance row %d has %d cols, want %d", nserrors.ErrInvalidDimension, i, len(cov[i]), c.dim)
		}

		for j := i; j < c.dim; j++ {
			sym.SetSym(i, j, cov[i][j])
		}
	}

	c.cov = sym
	c.invalidateCache()

	return nil
}

// SetWeight replaces the mixture weight.
func (c *Component) SetWeight(weight float64) error {
	if weight < 0 {
		return fmt.Errorf("gaussian: %w: weight %g is negative", nserrors.ErrInvalidParameter, weight)
	}

	c.weight = weight

	return nil
}

func (c *Component) invalidateCache() { c.cacheValid = false }

// rebuildCache recomputes the precision matrix, log-determinant, and log
// normalization constant from the current covariance, repairing it to PSD
// first if necessary.
func (c *Component) rebuildCache() {
	cov := c.cov

	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		cov = numerics.RepairPSD(cov)

		if !chol.Factorize(cov) {
			// Diagonal regularization as last resort, mirrors
			// add_regularization in the reference implementation.
			reg := mat.NewSymDense(c.dim, nil)
			for i := 0; i < c.dim; i++ {
				for j := i; j < c.dim; j++ {
					v := cov.At(i, j)
					if i == j {
						v += numerics.MinVariance
					}

					reg.SetSym(i, j, v)
				}
			}

			cov = reg
			chol.Factorize(cov)
		}

		c.cov = cov
	}

	var precInv mat.Dense
	if err := chol.InverseTo(&precInv); err == nil {
		sym := mat.NewSymDense(c.dim, nil)
		for i := 0; i < c.dim; i++ {
			for j := i; j < c.dim; j++ {
				sym.SetSym(i, j, precInv.At(i, j))
			}
		}

		c.precision = sym
	}

	c.logDet = chol.LogDet()
	k := float64(c.dim)
	c.logNorm = -0.5 * (k*math.Log(2*math.Pi) + c.logDet)
	c.cacheValid = true
}

func (c *Component) ensureCache() {
	if !c.cacheValid {
		c.rebuildCache()
	}
}

// LogPDF evaluates the log-density at x.
func (c *Component) LogPDF(x []float64) (float64, error) {
	if len(x) != c.dim {
		return 0, fmt.Errorf("gaussian: %w: observation has %d elements, want %d", nserrors.ErrInvalidDimension, len(x), c.dim)
	}

	c.ensureCache()

	diff := mat.NewVecDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		diff.SetVec(i, x[i]-c.mean[i])
	}

	var pv mat.VecDense
	pv.MulVec(c.precision, diff)
	mahal := mat.Dot(diff, &pv)

	return c.logNorm - 0.5*mahal, nil
}

// PDF evaluates the density at x.
func (c *Component) PDF(x []float64) (float64, error) {
	lp, err := c.LogPDF(x)
	if err != nil {
		return 0, err
	}

	return math.Exp(lp), nil
}

// Mahalanobis returns sqrt((x-mu)^T Sigma^-1 (x-mu)).
func (c *Component) Mahalanobis(x []float64) (float64, error) {
	if len(x) != c.dim {
		return 0, fmt.Errorf("gaussian: %w: observation has %d elements, want %d", nserrors.ErrInvalidDimension, len(x), c.dim)
	}

	c.ensureCache()

	diff := mat.NewVecDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		diff.SetVec(i, x[i]-c.mean[i])
	}

	var pv mat.VecDense
	pv.MulVec(c.precision, diff)
	mahal := mat.Dot(diff, &pv)

	if mahal < 0 {
		mahal = 0
	}

	return math.Sqrt(mahal), nil
}

// Sample draws a single observation from the component using a Cholesky
// factor of the covariance times a standard-normal vector. If the Cholesky
// factorization fails, it falls back to scaling by the diagonal's sqrt.
func (c *Component) Sample(rng *rand.Rand) []float64 {
	z := make([]float64, c.dim)
	for i := range z {
		z[i] = rng.NormFloat64()
	}

	var chol mat.Cholesky
	if chol.Factorize(c.cov) {
		var lMat mat.TriDense
		chol.LTo(&lMat)

		out := make([]float64, c.dim)

		for i := 0; i < c.dim; i++ {
			var s float64
			for j := 0; j <= i; j++ {
				s += lMat.At(i, j) * z[j]
			}

			out[i] = c.mean[i] + s
		}

		return out
	}

	out := make([]float64, c.dim)
	for i := 0; i < c.dim; i++ {
		sd := math.Sqrt(math.Max(c.cov.At(i, i), 0))
		out[i] = c.mean[i] + sd*z[i]
	}

	return out
}

// LogDeterminant returns the cached log|Sigma|, rebuilding the cache first if
// necessary.
func (c *Component) LogDeterminant() float64 {
	c.ensureCache()
	return c.logDet
}

// Regularize enforces a diagonal floor of minVar on the covariance, repairs
// it to PSD, and invalidates the cache.
func (c *Component) Regularize(minVar float64) {
	for i := 0; i < c.dim; i++ {
		if c.cov.At(i, i) < minVar {
			c.cov.SetSym(i, i, minVar)
		}
	}

	c.cov = numerics.RepairPSD(c.cov)
	c.invalidateCache()
}

// IsValid reports whether the mean and covariance are all finite, the
// weight is non-negative, and the covariance is positive definite.
func (c *Component) IsValid() bool {
	if c.weight < 0 || math.IsNaN(c.weight) || math.IsInf(c.weight, 0) {
		return false
	}

	for _, m := range c.mean {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return false
		}
	}

	for i := 0; i < c.dim; i++ {
		for j := 0; j < c.dim; j++ {
			v := c.cov.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}

	var chol mat.Cholesky

	return chol.Factorize(c.cov)
}

// Snapshot is the serializable form of a Component, used for persistence and
// for the serialize/deserialize round-trip property in the test suite.
type Snapshot struct {
	Mean       []float64   `json:"mean"`
	Covariance [][]float64 `json:"covariance"`
	Weight     float64     `json:"weight"`
}

// Serialize produces a Snapshot of the component's raw parameters. The cache
// is not serialized; it is rebuilt lazily on the deserialized component.
func (c *Component) Serialize() Snapshot {
	return Snapshot{
		Mean:       c.Mean(),
		Covariance: c.Covariance(),
		Weight:     c.weight,
	}
}

// Deserialize reconstructs a Component from a Snapshot.
func Deserialize(s Snapshot) (*Component, error) {
	return New(s.Mean, s.Covariance, s.Weight)
}

// Clone returns a deep copy of the component, including its cache state.
func (c *Component) Clone() *Component {
	clone := &Component{
		mean:       append([]float64(nil), c.mean...),
		cov:        mat.NewSymDense(c.dim, nil),
		weight:     c.weight,
		dim:        c.dim,
		cacheValid: c.cacheValid,
		logDet:     c.logDet,
		logNorm:    c.logNorm,
	}

	for i := 0; i < c.dim; i++ {
		for j := i; j < c.dim; j++ {
			clone.cov.SetSym(i, j, c.cov.At(i, j))
		}
	}

	if c.precision != nil {
		clone.precision = mat.NewSymDense(c.dim, nil)
		for i := 0; i < c.dim; i++ {
			for j := i; j < c.dim; j++ {
				clone.precision.SetSym(i, j, c.precision.At(i, j))
			}
		}
	}

	return clone
}
