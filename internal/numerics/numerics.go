// Package numerics provides the log-domain and linear-algebra primitives
// shared by the Gaussian, HMM, and MLPG layers: log-sum-exp, positive
// semi-definite repair, and regularized linear solves with a Cholesky-first,
// LU-fallback strategy.
package numerics

import (
	"errors"
	"log/slog"
	"math"

	"github.com/nexussynth/nexussynth-core/internal/nserrors"
	"gonum.org/v1/gonum/mat"
)

// MinVariance is the floor applied to any variance or eigenvalue that would
// otherwise collapse a covariance matrix toward singularity.
const MinVariance = 1e-6

// DefaultRegularization is added to the diagonal of a linear system before
// solving, regardless of which solver path succeeds.
const DefaultRegularization = 1e-6

// ErrNumericalFailure is returned when both the Cholesky and LU solve paths
// fail, or a repair routine cannot recover a usable matrix.
var ErrNumericalFailure = nserrors.ErrNumericalFailure

// LogSumExp computes log(sum(exp(v))) in a numerically stable way by
// factoring out the maximum value. An empty slice or a slice whose maximum is
// -Inf returns -Inf without error, matching the Forward-Backward failure
// semantics that degenerate inputs yield -Inf likelihoods rather than errors.
func LogSumExp(v []float64) float64 {
	if len(v) == 0 {
		return math.Inf(-1)
	}

	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}

	if math.IsInf(m, -1) {
		return math.Inf(-1)
	}

	var sum float64
	for _, x := range v {
		sum += math.Exp(x - m)
	}

	return m + math.Log(sum)
}

// LogSumExp2 is the two-value specialization of LogSumExp.
func LogSumExp2(a, b float64) float64 {
	if math.IsInf(a, -1) && math.IsInf(b, -1) {
		return math.Inf(-1)
	}

	m := a
	if b > m {
		m = b
	}

	return m + math.Log(math.Exp(a-m)+math.Exp(b-m))
}

// RepairPSD symmetrizes A, clamps its eigenvalues to at least MinVariance,
// and reconstructs a positive semi-definite matrix from the repaired
// eigendecomposition. If the eigendecomposition itself fails, it falls back
// to adding MinVariance*I to the diagonal.
func RepairPSD(a *mat.SymDense) *mat.SymDense {
	n := a.Symmetric()

	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); ok {
		values := eig.Values(nil)
		for i, v := range values {
			if v < MinVariance {
				values[i] = MinVariance
			}
		}

		var vectors mat.Dense
		eig.VectorsTo(&vectors)

		var diag mat.Dense
		diag.Mul(&vectors, diagFromSlice(values))

		var reconstructed mat.Dense
		reconstructed.Mul(&diag, vectors.T())

		out := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				out.SetSym(i, j, reconstructed.At(i, j))
			}
		}

		return out
	}

	slog.Warn("numerics: eigendecomposition failed in RepairPSD, falling back to diagonal loading", "dim", n)

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := a.At(i, j)
			if i == j {
				v += MinVariance
			}

			out.SetSym(i, j, v)
		}
	}

	return out
}

func diagFromSlice(v []float64) *mat.Dense {
	n := len(v)
	d := mat.NewDense(n, n, nil)

	for i, x := range v {
		d.Set(i, i, x)
	}

	return d
}

// SolveSPD solves A x = b for a square system, adding reg to A's diagonal
// first for numerical stability. It attempts a Cholesky factorization of the
// (symmetric) regularized matrix; on failure it falls back to a general LU
// factorization of the same regularized matrix. ErrNumericalFailure is
// returned only when both solvers fail.
func SolveSPD(a *mat.Dense, b mat.Vector, reg float64) (*mat.VecDense, error) {
	r, c := a.Dims()
	if r != c {
		return nil, errors.New("numerics: solve requires a square matrix")
	}

	reg = regOrDefault(reg)

	regularized := mat.NewDense(r, c, nil)
	regularized.Copy(a)

	for i := 0; i < r; i++ {
		regularized.Set(i, i, regularized.At(i, i)+reg)
	}

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			avg := (regularized.At(i, j) + regularized.At(j, i)) / 2
			sym.SetSym(i, j, avg)
		}
	}

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, b); err == nil {
			return &x, nil
		}
	}

	slog.Warn("numerics: Cholesky factorization failed in SolveSPD, falling back to LU", "dim", r)

	var lu mat.LU
	lu.Factorize(regularized)

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b); err != nil {
		return nil, ErrNumericalFailure
	}

	return &x, nil
}

func regOrDefault(reg float64) float64 {
	if reg <= 0 {
		return DefaultRegularization
	}

	return reg
}
