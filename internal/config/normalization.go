package config

import (
	"fmt"
	"strings"

	"github.com/nexussynth/nexussynth-core/internal/context"
)

// ParseNormalizationType parses a config string into a
// context.NormalizationType, case-insensitively, defaulting to
// context.NormalizeNone for an empty string.
func ParseNormalizationType(raw string) (context.NormalizationType, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	if kind == "" {
		return context.NormalizeNone, nil
	}

	switch kind {
	case "zscore", "z-score", "z_score":
		return context.NormalizeZScore, nil
	case "minmax", "min-max", "min_max":
		return context.NormalizeMinMax, nil
	case "robust":
		return context.NormalizeRobust, nil
	case "quantile":
		return context.NormalizeQuantile, nil
	case "log":
		return context.NormalizeLog, nil
	case "none":
		return context.NormalizeNone, nil
	default:
		return 0, fmt.Errorf("config: invalid normalization_type %q (expected zscore|minmax|robust|quantile|log|none)", raw)
	}
}
