package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexussynth/nexussynth-core/internal/gaussian"
	"github.com/nexussynth/nexussynth-core/internal/gmm"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

type stateSnapshot struct {
	Transition hmm.Transition      `json:"transition"`
	Weights    []float64           `json:"weights"`
	Components []gaussian.Snapshot `json:"components"`
}

type modelSnapshot struct {
	ModelName string          `json:"model_name"`
	States    []stateSnapshot `json:"states"`
}

func snapshotModel(model *hmm.PhonemeHMM) modelSnapshot {
	states := make([]stateSnapshot, len(model.States))

	for i, s := range model.States {
		components := make([]gaussian.Snapshot, s.Emission.NumComponents())
		for k := range components {
			components[k] = s.Emission.Component(k).Serialize()
		}

		states[i] = stateSnapshot{
			Transition: s.Transition,
			Weights:    s.Emission.Weights(),
			Components: components,
		}
	}

	return modelSnapshot{ModelName: model.ModelName, States: states}
}

func (s modelSnapshot) restore() (*hmm.PhonemeHMM, error) {
	states := make([]*hmm.State, len(s.States))

	for i, st := range s.States {
		components := make([]*gaussian.Component, len(st.Components))
		for k, snap := range st.Components {
			c, err := gaussian.Deserialize(snap)
			if err != nil {
				return nil, fmt.Errorf("bridge: %w: model %q state %d: %v", nserrors.ErrSerialization, s.ModelName, i, err)
			}
			components[k] = c
		}

		mixture, err := gmm.New(components)
		if err != nil {
			return nil, fmt.Errorf("bridge: %w: model %q state %d: %v", nserrors.ErrSerialization, s.ModelName, i, err)
		}
		if err := mixture.SetWeights(st.Weights); err != nil {
			return nil, fmt.Errorf("bridge: %w: model %q state %d: %v", nserrors.ErrSerialization, s.ModelName, i, err)
		}

		states[i] = &hmm.State{ID: i, Emission: mixture, Transition: st.Transition}
	}

	return &hmm.PhonemeHMM{States: states, ModelName: s.ModelName}, nil
}

// modelFileName turns a model name into a safe file name, since quinphone
// keys contain '+' and '-' but never path separators.
func modelFileName(modelName string) string {
	return modelName + ".json"
}

// SaveModels writes one JSON file per model into directory, named after its
// model key.
func SaveModels(models map[string]*hmm.PhonemeHMM, directory string) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("bridge: failed creating %q: %w", directory, err)
	}

	for name, model := range models {
		data, err := json.MarshalIndent(snapshotModel(model), "", "  ")
		if err != nil {
			return fmt.Errorf("bridge: %w: model %q: %v", nserrors.ErrSerialization, name, err)
		}

		path := filepath.Join(directory, modelFileName(name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("bridge: failed writing %q: %w", path, err)
		}
	}

	return nil
}

// LoadModels reads every *.json file in directory and returns them keyed by
// their embedded model name.
func LoadModels(directory string) (map[string]*hmm.PhonemeHMM, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("bridge: failed reading %q: %w", directory, err)
	}

	models := make(map[string]*hmm.PhonemeHMM)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(directory, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("bridge: failed reading %q: %w", path, err)
		}

		var snap modelSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("bridge: %w: %q: %v", nserrors.ErrSerialization, path, err)
		}

		model, err := snap.restore()
		if err != nil {
			return nil, err
		}

		models[model.ModelName] = model
	}

	return models, nil
}
