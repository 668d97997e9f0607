// Package trainer implements the Baum-Welch EM training loop for one
// PhonemeHMM: alternating Forward-Backward expectation and transition/
// emission re-estimation, multi-criteria convergence detection, adaptive
// thresholding, early stopping, and model checkpointing.
package trainer

// Config controls one training run.
type Config struct {
	MaxIterations       int
	ConvergenceThreshold float64
	ParameterThreshold   float64
	UseValidationSet     bool
	ValidationSplit      float64
	ConvergenceWindow    int
	Verbose              bool

	EnableAdaptiveThresholds bool
	OverfittingThreshold     float64
	Patience                 int
	MinImprovement           float64
	EnableModelCheckpointing bool
	ConvergenceConfidence    float64

	// EnableParallelTraining runs the E-step across sequences concurrently
	// via errgroup instead of sequentially; with EnableParallelEmissionUpdate
	// the emission M-step also runs concurrently, across states.
	EnableParallelTraining        bool
	EnableParallelEmissionUpdate bool
}

// DefaultConfig mirrors the reference trainer's constructor defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:                100,
		ConvergenceThreshold:         1e-4,
		ParameterThreshold:           1e-3,
		UseValidationSet:             true,
		ValidationSplit:              0.1,
		ConvergenceWindow:            5,
		Verbose:                      false,
		EnableAdaptiveThresholds:     true,
		OverfittingThreshold:         0.005,
		Patience:                     10,
		MinImprovement:               1e-5,
		EnableModelCheckpointing:     true,
		ConvergenceConfidence:        0.95,
		EnableParallelTraining:       true,
		EnableParallelEmissionUpdate: true,
	}
}
