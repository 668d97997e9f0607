package gv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

// Save writes stats to path as JSON, overwriting any existing file.
func Save(stats *Statistics, path string) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("gv: %w: %v", nserrors.ErrSerialization, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("gv: failed writing %q: %w", path, err)
	}

	return nil
}

// Load reads Statistics previously written by Save.
func Load(path string) (*Statistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gv: failed reading %q: %w", path, err)
	}

	var stats Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("gv: %w: %v", nserrors.ErrSerialization, err)
	}

	return &stats, nil
}
