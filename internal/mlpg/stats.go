package mlpg

import "time"

// Stats reports how a trajectory generation run solved and how well the
// result satisfies smoothness and Global Variance targets. Quality-metric
// fields (SmoothnessScore, GVSatisfaction) are folded in here rather than a
// separate type, since every caller that wants a trajectory wants these too.
type Stats struct {
	IterationsUsed    int
	FinalLikelihood   float64
	ConvergenceChange float64

	LikelihoodHistory []float64
	ConvergenceReason string

	OptimizationTime time.Duration
	MatrixSize       int

	SmoothnessScore float64
	GVSatisfaction  float64
}
