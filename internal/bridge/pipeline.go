package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	nscontext "github.com/nexussynth/nexussynth-core/internal/context"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/trainer"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of training one model: its trained HMM and the
// trainer's convergence statistics.
type Result struct {
	Model *hmm.PhonemeHMM
	Stats *trainer.Stats
}

// Pipeline groups aligned training bundles by context-dependent model name,
// initializes one PhonemeHMM per model, and trains them independently via
// internal/trainer.
type Pipeline struct {
	config    Config
	logger    *slog.Logger
	inventory *nscontext.PhonemeInventory
	extractor *nscontext.Extractor
}

// PipelineOption configures optional Pipeline behavior.
type PipelineOption func(*Pipeline)

// WithLogger sets the slog.Logger used for model-count and per-model
// training-completion logging. Defaults to slog.Default() when not supplied.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline builds a Pipeline using inventory for phoneme classification.
// A nil inventory falls back to the default Japanese inventory.
func NewPipeline(cfg Config, inventory *nscontext.PhonemeInventory, opts ...PipelineOption) *Pipeline {
	if inventory == nil {
		inventory = nscontext.NewJapaneseInventory()
	}

	p := &Pipeline{
		config:    cfg,
		logger:    slog.Default(),
		inventory: inventory,
		extractor: nscontext.NewExtractor(inventory, nscontext.DefaultWindowRadius),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// InitializeModels builds one untrained PhonemeHMM per model name surviving
// grouping (and the MinFramesPerModel filter), ready for Train.
func (p *Pipeline) InitializeModels(bundles []Bundle) (map[string][][][]float64, map[string]*hmm.PhonemeHMM, error) {
	sequences := groupByModel(bundles, p.extractor, p.config)
	dim := p.config.acousticDimension()

	models := make(map[string]*hmm.PhonemeHMM, len(sequences))
	for name := range sequences {
		model, err := hmm.NewPhonemeHMM(name, p.config.NumStatesPerPhoneme, p.config.NumMixturesPerState, dim)
		if err != nil {
			return nil, nil, fmt.Errorf("bridge: initializing model %q: %w", name, err)
		}
		models[name] = model
	}

	p.logger.Info("models initialized", "count", len(models))

	return sequences, models, nil
}

// Train runs InitializeModels, then trains every resulting model
// concurrently (one goroutine per model, via errgroup), returning the
// trained models alongside each one's training Stats.
func (p *Pipeline) Train(bundles []Bundle) (map[string]Result, error) {
	sequences, models, err := p.InitializeModels(bundles)
	if err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(models))

	var mu sync.Mutex

	g, _ := errgroup.WithContext(context.Background())

	for name, model := range models {
		name, model := name, model
		modelSequences := sequences[name]

		g.Go(func() error {
			tr := trainer.NewTrainer(p.config.Training, trainer.WithLogger(p.logger))

			stats, err := tr.Train(model, modelSequences)
			if err != nil {
				return fmt.Errorf("bridge: training model %q: %w", name, err)
			}

			p.logger.Info("model trained", "model", name, "converged", stats.Converged, "iterations", stats.FinalIteration)

			mu.Lock()
			results[name] = Result{Model: model, Stats: stats}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
