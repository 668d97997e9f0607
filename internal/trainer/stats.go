package trainer

import "math"

// Stats tracks per-iteration training history and the final outcome of a
// training run.
type Stats struct {
	LogLikelihoods   []float64
	ValidationScores []float64
	ParameterChanges []float64

	FinalIteration       int
	Converged            bool
	FinalLogLikelihood   float64
	BestValidationScore  float64
	ConvergenceReason    string

	ConvergenceConfidenceScores []float64
	ConvergenceCriteriaMet      []string
	BestValidationIteration     int
	ConvergenceConfidence       float64
	EarlyStopped                bool
	PatienceCounter              int
	AdaptiveThreshold            float64
	RelativeImprovements         []float64
}

// newStats returns a Stats with the reference trainer's sentinel defaults:
// both score fields start at -Inf so the first real observation always
// counts as an improvement.
func newStats(initialThreshold float64) *Stats {
	return &Stats{
		FinalLogLikelihood:  math.Inf(-1),
		BestValidationScore: math.Inf(-1),
		AdaptiveThreshold:   initialThreshold,
	}
}
