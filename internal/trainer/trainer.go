package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nexussynth/nexussynth-core/internal/forwardbackward"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
	"golang.org/x/sync/errgroup"
)

// minGammaWeight floors the per-frame responsibility used to weight an
// emission observation, discarding frames with negligible state occupancy.
const minGammaWeight = 1e-10

// Trainer runs Baum-Welch EM training for one PhonemeHMM against a corpus
// of observation sequences.
type Trainer struct {
	config        Config
	logger        *slog.Logger
	bestModel     *hmm.PhonemeHMM
	hasCheckpoint bool
}

// Option configures optional Trainer behavior.
type Option func(*Trainer)

// WithLogger sets the slog.Logger used for iteration/convergence/checkpoint
// logging. Defaults to slog.Default() when not supplied.
func WithLogger(l *slog.Logger) Option {
	return func(tr *Trainer) { tr.logger = l }
}

// NewTrainer builds a Trainer with the given configuration.
func NewTrainer(config Config, opts ...Option) *Trainer {
	tr := &Trainer{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(tr)
	}

	return tr
}

// Train runs the EM loop in place against model, returning the run's Stats.
// An empty sequences slice is not an error: Stats.ConvergenceReason explains
// why nothing happened.
func (tr *Trainer) Train(model *hmm.PhonemeHMM, sequences [][][]float64) (*Stats, error) {
	stats := newStats(tr.config.ConvergenceThreshold)

	if len(sequences) == 0 {
		stats.ConvergenceReason = "no training data provided"
		return stats, nil
	}

	if err := validateSequences(model, sequences); err != nil {
		return stats, err
	}

	trainData, validationData := tr.splitValidation(sequences)

	previous := model.Clone()

	for iteration := 0; iteration < tr.config.MaxIterations; iteration++ {
		ll, fbResults, err := tr.expectationStep(model, trainData)
		if err != nil {
			return stats, err
		}

		stats.LogLikelihoods = append(stats.LogLikelihoods, ll)
		tr.logger.Debug("em iteration", "model", model.ModelName, "iteration", iteration, "log_likelihood", ll)

		if err := tr.maximizationStep(model, trainData, fbResults); err != nil {
			return stats, err
		}

		if len(validationData) > 0 {
			valScore, err := tr.evaluateModel(model, validationData)
			if err != nil {
				return stats, err
			}

			stats.ValidationScores = append(stats.ValidationScores, valScore)

			if valScore > stats.BestValidationScore {
				stats.BestValidationScore = valScore
			}
		}

		stats.ParameterChanges = append(stats.ParameterChanges, computeParameterL2Norm(previous, model))

		if tr.config.EnableModelCheckpointing {
			tr.saveCheckpoint(model, stats)
		}

		previous = model.Clone()
		stats.FinalIteration = iteration + 1
		stats.FinalLogLikelihood = ll

		if tr.checkConvergence(stats) {
			stats.Converged = true

			if tr.config.EnableModelCheckpointing && tr.hasCheckpoint {
				tr.restoreInto(model)
			}

			tr.logger.Info("em converged", "model", model.ModelName, "iteration", stats.FinalIteration, "reason", stats.ConvergenceReason)

			break
		}
	}

	if !stats.Converged {
		if tr.config.EnableModelCheckpointing && tr.hasCheckpoint {
			tr.restoreInto(model)
			stats.ConvergenceReason = "training completed: best model restored"
		} else {
			stats.ConvergenceReason = "training completed: maximum iterations reached"
		}

		tr.logger.Info("em did not converge", "model", model.ModelName, "iterations", stats.FinalIteration, "reason", stats.ConvergenceReason)
	}

	return stats, nil
}

// splitValidation carves off the last ValidationSplit fraction of sequences
// for validation, leaving at least one sequence on each side.
func (tr *Trainer) splitValidation(sequences [][][]float64) (train, validation [][][]float64) {
	if !tr.config.UseValidationSet || len(sequences) <= 1 {
		return sequences, nil
	}

	splitIdx := int(float64(len(sequences)) * (1.0 - tr.config.ValidationSplit))
	if splitIdx < 1 {
		splitIdx = 1
	}

	if splitIdx >= len(sequences) {
		splitIdx = len(sequences) - 1
	}

	return sequences[:splitIdx], sequences[splitIdx:]
}

// evaluateModel returns the frame-count-weighted average per-frame
// log-likelihood of model over sequences.
func (tr *Trainer) evaluateModel(model *hmm.PhonemeHMM, sequences [][][]float64) (float64, error) {
	if len(sequences) == 0 {
		return math.Inf(-1), nil
	}

	var totalLL float64

	var totalFrames int

	for _, seq := range sequences {
		result, err := forwardbackward.Run(model, seq)
		if err != nil {
			return 0, err
		}

		totalLL += result.LogLikelihood * float64(len(seq))
		totalFrames += len(seq)
	}

	if totalFrames == 0 {
		return math.Inf(-1), nil
	}

	return totalLL / float64(totalFrames), nil
}

// expectationStep runs Forward-Backward over every sequence (in parallel via
// errgroup when EnableParallelTraining allows it) and returns the
// frame-weighted average log-likelihood alongside each sequence's result.
func (tr *Trainer) expectationStep(model *hmm.PhonemeHMM, sequences [][][]float64) (float64, []*forwardbackward.Result, error) {
	results := make([]*forwardbackward.Result, len(sequences))

	if tr.config.EnableParallelTraining && len(sequences) > 1 {
		g, _ := errgroup.WithContext(context.Background())

		for i, seq := range sequences {
			i, seq := i, seq

			g.Go(func() error {
				result, err := forwardbackward.Run(model, seq)
				if err != nil {
					return err
				}

				results[i] = result

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return 0, nil, err
		}
	} else {
		for i, seq := range sequences {
			result, err := forwardbackward.Run(model, seq)
			if err != nil {
				return 0, nil, err
			}

			results[i] = result
		}
	}

	var totalLL float64

	var totalFrames int

	for i, seq := range sequences {
		totalLL += results[i].LogLikelihood * float64(len(seq))
		totalFrames += len(seq)
	}

	if totalFrames == 0 {
		return math.Inf(-1), results, nil
	}

	return totalLL / float64(totalFrames), results, nil
}

// maximizationStep re-estimates transition probabilities, then emission
// parameters, from the E-step's Forward-Backward results.
func (tr *Trainer) maximizationStep(model *hmm.PhonemeHMM, sequences [][][]float64, fbResults []*forwardbackward.Result) error {
	updateTransitionProbabilities(model, sequences, fbResults)

	return tr.updateEmissionProbabilities(model, sequences, fbResults)
}

// updateTransitionProbabilities re-estimates self-loop and advance
// probabilities from gamma. This uses the product gamma(t,i)*gamma(t+1,j)
// weighted by the current transition probability as a tractable surrogate
// for the true transition posterior (xi), since Forward-Backward here
// produces only state occupancies (gamma), not edge occupancies.
func updateTransitionProbabilities(model *hmm.PhonemeHMM, sequences [][][]float64, fbResults []*forwardbackward.Result) {
	n := model.NumStates()

	selfLoopCounts := make([]float64, n)
	nextCounts := make([]float64, n)
	totalCounts := make([]float64, n)

	for seqIdx, seq := range sequences {
		fb := fbResults[seqIdx]
		t := len(seq)

		for tm := 0; tm < t-1; tm++ {
			for i := 0; i < n; i++ {
				gammaTI := fb.Gamma[tm][i]

				selfLoopCounts[i] += gammaTI * fb.Gamma[tm+1][i] * model.States[i].Transition.SelfLoop

				if i < n-1 {
					nextCounts[i] += gammaTI * fb.Gamma[tm+1][i+1] * model.States[i].Transition.Next
				}

				totalCounts[i] += gammaTI
			}
		}
	}

	for i := 0; i < n; i++ {
		if totalCounts[i] <= 0 {
			continue
		}

		model.States[i].Transition.SelfLoop = selfLoopCounts[i] / totalCounts[i]
		model.States[i].Transition.Next = nextCounts[i] / totalCounts[i]
		model.States[i].Transition.Normalize()
	}
}

// updateEmissionProbabilities collects, per state, every (observation,
// weight) pair across every sequence with weight above minGammaWeight, then
// runs one weighted EM step on that state's GMM. States are independent, so
// this parallelizes across states via errgroup when configured to.
func (tr *Trainer) updateEmissionProbabilities(model *hmm.PhonemeHMM, sequences [][][]float64, fbResults []*forwardbackward.Result) error {
	n := model.NumStates()

	update := func(i int) error {
		observations, weights := collectStateObservations(i, sequences, fbResults)
		if len(observations) == 0 {
			return nil
		}

		_, err := model.States[i].Emission.WeightedEMStep(observations, weights)

		return err
	}

	if tr.config.EnableParallelTraining && tr.config.EnableParallelEmissionUpdate && n > 1 {
		g, _ := errgroup.WithContext(context.Background())

		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error { return update(i) })
		}

		return g.Wait()
	}

	for i := 0; i < n; i++ {
		if err := update(i); err != nil {
			return err
		}
	}

	return nil
}

func collectStateObservations(state int, sequences [][][]float64, fbResults []*forwardbackward.Result) ([][]float64, []float64) {
	var observations [][]float64

	var weights []float64

	for seqIdx, seq := range sequences {
		fb := fbResults[seqIdx]

		for tm, x := range seq {
			weight := fb.Gamma[tm][state]
			if weight <= minGammaWeight {
				continue
			}

			observations = append(observations, x)
			weights = append(weights, weight)
		}
	}

	return observations, weights
}

// computeParameterL2Norm returns the root-mean-square transition-parameter
// difference between two models of equal size.
func computeParameterL2Norm(a, b *hmm.PhonemeHMM) float64 {
	n := a.NumStates()
	if b.NumStates() < n {
		n = b.NumStates()
	}

	if n == 0 {
		return 0
	}

	var sumSquares float64

	for i := 0; i < n; i++ {
		selfDiff := a.States[i].Transition.SelfLoop - b.States[i].Transition.SelfLoop
		nextDiff := a.States[i].Transition.Next - b.States[i].Transition.Next
		sumSquares += selfDiff*selfDiff + nextDiff*nextDiff
	}

	return math.Sqrt(sumSquares / float64(n))
}

// shouldSaveCheckpoint reports whether model is at least as good as the best
// seen so far: a validation-score improvement if validation is enabled, else
// a log-likelihood improvement exceeding the convergence threshold.
func (tr *Trainer) shouldSaveCheckpoint(stats *Stats) bool {
	if !tr.config.EnableModelCheckpointing {
		return false
	}

	if len(stats.ValidationScores) > 0 {
		return stats.ValidationScores[len(stats.ValidationScores)-1] >= stats.BestValidationScore
	}

	if len(stats.LogLikelihoods) >= 2 {
		n := len(stats.LogLikelihoods)
		improvement := stats.LogLikelihoods[n-1] - stats.LogLikelihoods[n-2]

		return improvement > tr.config.ConvergenceThreshold
	}

	return false
}

func (tr *Trainer) saveCheckpoint(model *hmm.PhonemeHMM, stats *Stats) {
	if tr.shouldSaveCheckpoint(stats) {
		tr.bestModel = model.Clone()
		tr.hasCheckpoint = true
		tr.logger.Info("checkpoint saved", "model", model.ModelName, "iteration", stats.FinalIteration)
	}
}

// restoreInto overwrites model's states with the checkpointed best model's,
// in place, so callers keep their original pointer.
func (tr *Trainer) restoreInto(model *hmm.PhonemeHMM) {
	if !tr.hasCheckpoint {
		return
	}

	model.States = tr.bestModel.States
	model.ModelName = tr.bestModel.ModelName
}

// validateSequences reports a descriptive error for a sequence whose frame
// dimension does not match the model's emission dimension.
func validateSequences(model *hmm.PhonemeHMM, sequences [][][]float64) error {
	if model.NumStates() == 0 {
		return fmt.Errorf("trainer: %w: model has no states", nserrors.ErrInvalidParameter)
	}

	dim := model.States[0].Emission.Dimension()

	for si, seq := range sequences {
		for fi, frame := range seq {
			if len(frame) != dim {
				return fmt.Errorf("trainer: %w: sequence %d frame %d has dimension %d, want %d", nserrors.ErrInvalidDimension, si, fi, len(frame), dim)
			}
		}
	}

	return nil
}
