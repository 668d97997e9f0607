package mlpg

import (
	"fmt"
	"math"
	"time"

	"github.com/nexussynth/nexussynth-core/internal/gv"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
	"github.com/nexussynth/nexussynth-core/internal/numerics"
	"gonum.org/v1/gonum/mat"
)

// Engine generates maximum-likelihood parameter trajectories from per-state
// Gaussian statistics.
type Engine struct {
	config Config
}

// NewEngine builds an Engine with the given configuration.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// GenerateTrajectory solves for the static trajectory that maximizes
// likelihood under means/variances/durations subject to the configured
// delta/delta-delta consistency constraints, then optionally applies a
// Global Variance correction pass.
func (e *Engine) GenerateTrajectory(means, variances [][]float64, durations []int) ([][]float64, *Stats, error) {
	start := time.Now()

	if err := validateInputs(means, variances, durations); err != nil {
		return nil, nil, err
	}

	stats := &Stats{}

	totalFrames := 0
	for _, d := range durations {
		totalFrames += d
	}

	featureDim := len(means[0])
	stats.MatrixSize = totalFrames * featureDim

	w := buildWMatrix(e.config, totalFrames, featureDim)
	precisionDiag := buildPrecisionDiagonal(e.config, variances, durations)
	observations := buildObservationVector(e.config, means, durations)

	solution, err := solveSystem(w, precisionDiag, observations, e.config.RegularizationFactor, stats)
	if err != nil {
		return nil, nil, err
	}

	trajectory := reshapeTrajectory(solution, totalFrames, featureDim)

	if e.config.UseGlobalVariance {
		targetGV := weightedTargetVariance(variances, durations)
		trajectory = applyGlobalVarianceConstraints(trajectory, targetGV, e.config.GVWeight, stats)
	}

	stats.SmoothnessScore = calculateSmoothness(trajectory)
	stats.OptimizationTime = time.Since(start)

	return trajectory, stats, nil
}

// GenerateTrajectoryFromHMM extracts each state's first Gaussian component
// (mixture component 0) as that state's target mean/variance and delegates
// to GenerateTrajectory. The mixture weights are not consulted.
func (e *Engine) GenerateTrajectoryFromHMM(states []*hmm.State, durations []int) ([][]float64, *Stats, error) {
	if len(states) != len(durations) {
		return nil, nil, fmt.Errorf("mlpg: %w: got %d states and %d durations", nserrors.ErrInvalidParameter, len(states), len(durations))
	}

	means := make([][]float64, len(states))
	variances := make([][]float64, len(states))

	for i, s := range states {
		if s.Emission == nil || s.Emission.NumComponents() == 0 {
			return nil, nil, fmt.Errorf("mlpg: %w: state %d has no Gaussian components", nserrors.ErrInvalidParameter, i)
		}

		component := s.Emission.Component(0)
		means[i] = component.Mean()

		cov := component.Covariance()
		variance := make([]float64, len(cov))

		for d := range variance {
			variance[d] = cov[d][d]
		}

		variances[i] = variance
	}

	return e.GenerateTrajectory(means, variances, durations)
}

func solveSystem(w *mat.Dense, precisionDiag []float64, observations *mat.VecDense, regularization float64, stats *Stats) (*mat.VecDense, error) {
	precision := mat.NewDiagDense(len(precisionDiag), precisionDiag)

	var pw mat.Dense
	pw.Mul(precision, w)

	var system mat.Dense
	system.Mul(w.T(), &pw)

	var po mat.VecDense
	po.MulVec(precision, observations)

	var rhs mat.VecDense
	rhs.MulVec(w.T(), &po)

	solution, err := numerics.SolveSPD(&system, &rhs, regularization)
	if err != nil {
		return nil, fmt.Errorf("mlpg: %w", err)
	}

	var residual mat.VecDense
	residual.MulVec(w, solution)
	residual.SubVec(&residual, observations)

	var weighted mat.VecDense
	weighted.MulVec(precision, &residual)

	stats.FinalLikelihood = -0.5 * mat.Dot(&residual, &weighted)
	stats.IterationsUsed = 1
	stats.ConvergenceReason = "direct regularized least-squares solve"
	stats.LikelihoodHistory = []float64{stats.FinalLikelihood}

	return solution, nil
}

func reshapeTrajectory(flat *mat.VecDense, frames, featureDim int) [][]float64 {
	trajectory := make([][]float64, frames)

	for t := 0; t < frames; t++ {
		frame := make([]float64, featureDim)
		for d := 0; d < featureDim; d++ {
			frame[d] = flat.AtVec(t*featureDim + d)
		}

		trajectory[t] = frame
	}

	return trajectory
}

func weightedTargetVariance(variances [][]float64, durations []int) []float64 {
	dim := len(variances[0])
	target := make([]float64, dim)

	var totalWeight float64

	for i, variance := range variances {
		weight := float64(durations[i])
		for d := range target {
			target[d] += weight * variance[d]
		}

		totalWeight += weight
	}

	if totalWeight > 0 {
		for d := range target {
			target[d] /= totalWeight
		}
	}

	return target
}

// applyGlobalVarianceConstraints rescales trajectory toward targetGV around
// its own mean, blending the full correction with gvWeight exactly as the
// reference engine's simplified (non-iterative) GV pass does, and records
// how well the corrected trajectory matches targetGV.
func applyGlobalVarianceConstraints(trajectory [][]float64, targetGV []float64, gvWeight float64, stats *Stats) [][]float64 {
	if len(trajectory) == 0 {
		return trajectory
	}

	dim := len(trajectory[0])
	corrected := make([][]float64, len(trajectory))

	for i, frame := range trajectory {
		corrected[i] = append([]float64(nil), frame...)
	}

	mean := make([]float64, dim)
	for _, frame := range trajectory {
		for d, v := range frame {
			mean[d] += v
		}
	}

	for d := range mean {
		mean[d] /= float64(len(trajectory))
	}

	currentGV := make([]float64, dim)

	for _, frame := range trajectory {
		for d, v := range frame {
			diff := v - mean[d]
			currentGV[d] += diff * diff
		}
	}

	denom := float64(len(trajectory) - 1)
	if denom < 1 {
		denom = 1
	}

	for d := range currentGV {
		currentGV[d] /= denom
	}

	for d := 0; d < dim; d++ {
		if currentGV[d] <= gv.MinVariance || targetGV[d] <= gv.MinVariance {
			continue
		}

		scale := math.Sqrt(targetGV[d] / currentGV[d])
		scale = gvWeight*scale + (1.0 - gvWeight)

		for _, frame := range corrected {
			frame[d] = mean[d] + scale*(frame[d]-mean[d])
		}
	}

	stats.GVSatisfaction = gvSatisfaction(currentGV, targetGV)

	return corrected
}

func gvSatisfaction(current, target []float64) float64 {
	var diffNormSq, targetNormSq float64

	for d := range target {
		diff := current[d] - target[d]
		diffNormSq += diff * diff
		targetNormSq += target[d] * target[d]
	}

	if targetNormSq == 0 {
		return 1.0
	}

	return 1.0 - math.Sqrt(diffNormSq)/math.Sqrt(targetNormSq)
}

// calculateSmoothness is the mean squared second-order difference
// (acceleration) across the trajectory; lower is smoother.
func calculateSmoothness(trajectory [][]float64) float64 {
	if len(trajectory) < 3 {
		return 0
	}

	var totalRoughness float64

	for t := 1; t < len(trajectory)-1; t++ {
		for d := range trajectory[t] {
			accel := trajectory[t+1][d] - 2*trajectory[t][d] + trajectory[t-1][d]
			totalRoughness += accel * accel
		}
	}

	return totalRoughness / float64(len(trajectory)-2)
}

func validateInputs(means, variances [][]float64, durations []int) error {
	if len(means) == 0 || len(variances) == 0 || len(durations) == 0 {
		return fmt.Errorf("mlpg: %w: means, variances, and durations cannot be empty", nserrors.ErrInvalidParameter)
	}

	if len(means) != len(variances) || len(means) != len(durations) {
		return fmt.Errorf("mlpg: %w: means, variances, and durations must have equal length", nserrors.ErrInvalidParameter)
	}

	dim := len(means[0])
	if dim == 0 {
		return fmt.Errorf("mlpg: %w: feature dimension cannot be zero", nserrors.ErrInvalidDimension)
	}

	for i := range means {
		if len(means[i]) != dim || len(variances[i]) != dim {
			return fmt.Errorf("mlpg: %w: state %d has inconsistent feature dimension", nserrors.ErrInvalidDimension, i)
		}

		if durations[i] <= 0 {
			return fmt.Errorf("mlpg: %w: state %d duration must be positive", nserrors.ErrInvalidParameter, i)
		}

		for d := 0; d < dim; d++ {
			if variances[i][d] <= 0 {
				return fmt.Errorf("mlpg: %w: state %d dimension %d variance must be positive", nserrors.ErrInvalidParameter, i, d)
			}
		}
	}

	return nil
}
