package bridge

import "github.com/nexussynth/nexussynth-core/internal/context"

// groupByModel extracts each bundle's per-record context frames, applies
// delta augmentation to the corresponding acoustic span, and pools the
// resulting observation sequences by model name: one training sequence per
// phoneme occurrence. Models whose pooled frame count falls below
// cfg.MinFramesPerModel are dropped, since there is not enough data to
// estimate a stable emission distribution for them.
func groupByModel(bundles []Bundle, extractor *context.Extractor, cfg Config) map[string][][][]float64 {
	sequencesByModel := make(map[string][][][]float64)
	frameCountByModel := make(map[string]int)

	for _, bundle := range bundles {
		if !bundle.IsValid() {
			continue
		}

		frames := extractor.Extract(bundle.Records)

		for i, record := range bundle.Records {
			span := bundle.acousticSpan(record)
			if len(span) == 0 {
				continue
			}

			sequence := span
			if cfg.UseDeltaFeatures {
				sequence = addDeltaFeatures(span, cfg.UseDeltaDeltaFeatures)
			}

			name := frames[i].ModelName
			sequencesByModel[name] = append(sequencesByModel[name], sequence)
			frameCountByModel[name] += len(sequence)
		}
	}

	for name, count := range frameCountByModel {
		if count < cfg.MinFramesPerModel {
			delete(sequencesByModel, name)
		}
	}

	return sequencesByModel
}
