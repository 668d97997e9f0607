// Package gv computes and applies Global Variance statistics: per-phoneme
// and global frame-wise variance used to counteract MLPG's tendency to
// over-smooth generated trajectories.
package gv

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

// MinVariance floors every variance component for numerical stability.
const MinVariance = 1e-6

// MinGVWeight and MaxGVWeight clamp the correction factor applied by
// ApplyCorrection and the adaptive weight returned by Weights.
const (
	MinGVWeight = 0.01
	MaxGVWeight = 2.0
)

// emaAlpha is the learning rate for the incremental (online) statistics
// update in Update.
const emaAlpha = 0.1

// Statistics holds per-phoneme and global frame-wise variance estimates.
// MarshalJSON/UnmarshalJSON project this onto the wire contract's
// phoneme_statistics:{phoneme:{mean,var,frame_count}} shape rather than the
// three parallel maps used internally for computation.
type Statistics struct {
	PhonemeGVMean      map[string][]float64
	PhonemeGVVar       map[string][]float64
	GlobalGVMean       []float64
	GlobalGVVar        []float64
	PhonemeFrameCounts map[string]int
	TotalFrames        int
	FeatureDimension   int
}

type phonemeStatisticsEntry struct {
	Mean       []float64 `json:"mean"`
	Variance   []float64 `json:"var"`
	FrameCount int       `json:"frame_count"`
}

type statisticsWireFormat struct {
	FeatureDimension  int                                `json:"feature_dimension"`
	TotalFrames       int                                `json:"total_frames"`
	GlobalGVMean      []float64                          `json:"global_gv_mean"`
	GlobalGVVar       []float64                          `json:"global_gv_var"`
	PhonemeStatistics map[string]phonemeStatisticsEntry `json:"phoneme_statistics"`
}

// MarshalJSON projects Statistics onto the persisted GV-statistics contract.
func (s *Statistics) MarshalJSON() ([]byte, error) {
	wire := statisticsWireFormat{
		FeatureDimension:  s.FeatureDimension,
		TotalFrames:       s.TotalFrames,
		GlobalGVMean:      s.GlobalGVMean,
		GlobalGVVar:       s.GlobalGVVar,
		PhonemeStatistics: make(map[string]phonemeStatisticsEntry, len(s.PhonemeGVMean)),
	}

	for phoneme, mean := range s.PhonemeGVMean {
		wire.PhonemeStatistics[phoneme] = phonemeStatisticsEntry{
			Mean:       mean,
			Variance:   s.PhonemeGVVar[phoneme],
			FrameCount: s.PhonemeFrameCounts[phoneme],
		}
	}

	return json.Marshal(wire)
}

// UnmarshalJSON parses Statistics from the persisted GV-statistics contract.
func (s *Statistics) UnmarshalJSON(data []byte) error {
	var wire statisticsWireFormat
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	s.FeatureDimension = wire.FeatureDimension
	s.TotalFrames = wire.TotalFrames
	s.GlobalGVMean = wire.GlobalGVMean
	s.GlobalGVVar = wire.GlobalGVVar
	s.PhonemeGVMean = make(map[string][]float64, len(wire.PhonemeStatistics))
	s.PhonemeGVVar = make(map[string][]float64, len(wire.PhonemeStatistics))
	s.PhonemeFrameCounts = make(map[string]int, len(wire.PhonemeStatistics))

	for phoneme, entry := range wire.PhonemeStatistics {
		s.PhonemeGVMean[phoneme] = entry.Mean
		s.PhonemeGVVar[phoneme] = entry.Variance
		s.PhonemeFrameCounts[phoneme] = entry.FrameCount
	}

	return nil
}

// NewStatistics returns zeroed Statistics for the given feature dimension.
func NewStatistics(dim int) *Statistics {
	return &Statistics{
		PhonemeGVMean:      make(map[string][]float64),
		PhonemeGVVar:       make(map[string][]float64),
		GlobalGVMean:       make([]float64, dim),
		GlobalGVVar:        make([]float64, dim),
		PhonemeFrameCounts: make(map[string]int),
		FeatureDimension:   dim,
	}
}

// Clear resets every accumulated statistic, preserving FeatureDimension.
func (s *Statistics) Clear() {
	s.PhonemeGVMean = make(map[string][]float64)
	s.PhonemeGVVar = make(map[string][]float64)
	s.PhonemeFrameCounts = make(map[string]int)
	s.GlobalGVMean = make([]float64, s.FeatureDimension)
	s.GlobalGVVar = make([]float64, s.FeatureDimension)
	s.TotalFrames = 0
}

// HasPhonemeStatistics reports whether phoneme has its own GV entry.
func (s *Statistics) HasPhonemeStatistics(phoneme string) bool {
	_, ok := s.PhonemeGVMean[phoneme]
	return ok
}

// GetStatistics returns phoneme's (mean, variance) pair, falling back to the
// global statistics when phoneme has none of its own.
func (s *Statistics) GetStatistics(phoneme string) (mean, variance []float64) {
	if m, ok := s.PhonemeGVMean[phoneme]; ok {
		return m, s.PhonemeGVVar[phoneme]
	}

	return s.GlobalGVMean, s.GlobalGVVar
}

// Validate reports whether the statistics are internally consistent: a
// positive feature dimension, matching global vector lengths, and finite,
// non-negative-mean / above-floor-variance entries.
func (s *Statistics) Validate() bool {
	if s.FeatureDimension <= 0 {
		return false
	}

	if len(s.GlobalGVMean) != s.FeatureDimension || len(s.GlobalGVVar) != s.FeatureDimension {
		return false
	}

	for i := range s.GlobalGVMean {
		if s.GlobalGVMean[i] < 0 || s.GlobalGVVar[i] < MinVariance {
			return false
		}

		if math.IsNaN(s.GlobalGVMean[i]) || math.IsInf(s.GlobalGVMean[i], 0) {
			return false
		}

		if math.IsNaN(s.GlobalGVVar[i]) || math.IsInf(s.GlobalGVVar[i], 0) {
			return false
		}
	}

	return true
}

func validateDimensions(frames [][]float64) (int, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("gv: %w: empty frame set", nserrors.ErrInvalidParameter)
	}

	dim := len(frames[0])
	for _, f := range frames {
		if len(f) != dim {
			return 0, fmt.Errorf("gv: %w: frame dimension %d, want %d", nserrors.ErrInvalidDimension, len(f), dim)
		}
	}

	return dim, nil
}
