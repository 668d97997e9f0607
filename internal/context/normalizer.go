package context

import (
	"fmt"
	"math"
	"sort"

	"github.com/nexussynth/nexussynth-core/internal/nserrors"
)

// NormalizationType selects how Normalizer rescales each feature dimension.
type NormalizationType int

const (
	NormalizeNone NormalizationType = iota
	NormalizeZScore
	NormalizeMinMax
	NormalizeRobust
	NormalizeQuantile
	NormalizeLog
)

// dimStats accumulates the per-dimension statistics needed by every
// NormalizationType, via Welford's single-pass mean/variance update plus a
// running min/max and a sorted copy of every observed value for quantile
// estimates.
type dimStats struct {
	count      int
	mean       float64
	m2         float64
	min, max   float64
	sorted     []float64 // maintained lazily by quantile()
	sortedDone bool
}

func (d *dimStats) observe(x float64) {
	d.count++
	delta := x - d.mean
	d.mean += delta / float64(d.count)
	d.m2 += delta * (x - d.mean)

	if d.count == 1 || x < d.min {
		d.min = x
	}
	if d.count == 1 || x > d.max {
		d.max = x
	}

	d.sorted = append(d.sorted, x)
	d.sortedDone = false
}

func (d *dimStats) variance() float64 {
	if d.count < 2 {
		return 0
	}
	return d.m2 / float64(d.count-1)
}

func (d *dimStats) quantile(q float64) float64 {
	if !d.sortedDone {
		sort.Float64s(d.sorted)
		d.sortedDone = true
	}
	if len(d.sorted) == 0 {
		return 0
	}

	pos := q * float64(len(d.sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return d.sorted[lo]
	}

	frac := pos - float64(lo)
	return d.sorted[lo]*(1-frac) + d.sorted[hi]*frac
}

// Normalizer rescales fixed-width feature vectors per-dimension, fitted
// incrementally (Welford) over a stream of observed vectors.
type Normalizer struct {
	kind NormalizationType
	dims []dimStats
	fit  bool
}

// NewNormalizer returns a Normalizer of the given kind, sized for dim
// features. Call FitIncremental (or Fit) before Normalize/Denormalize.
func NewNormalizer(kind NormalizationType, dim int) *Normalizer {
	return &Normalizer{kind: kind, dims: make([]dimStats, dim)}
}

// FitIncremental folds one more observed vector into the running statistics.
func (n *Normalizer) FitIncremental(vector []float64) error {
	if len(vector) != len(n.dims) {
		return fmt.Errorf("context: %w: vector has %d dims, want %d", nserrors.ErrInvalidDimension, len(vector), len(n.dims))
	}

	for i, x := range vector {
		n.dims[i].observe(x)
	}
	n.fit = true

	return nil
}

// Fit resets the Normalizer and fits it over every vector in the batch.
func (n *Normalizer) Fit(vectors [][]float64) error {
	n.dims = make([]dimStats, len(n.dims))
	n.fit = false

	for _, v := range vectors {
		if err := n.FitIncremental(v); err != nil {
			return err
		}
	}

	return nil
}

// Normalize rescales vector per-dimension according to the fitted
// statistics and the Normalizer's NormalizationType.
func (n *Normalizer) Normalize(vector []float64) ([]float64, error) {
	if !n.fit {
		return nil, fmt.Errorf("context: %w: normalizer has no fitted statistics", nserrors.ErrInvalidParameter)
	}
	if len(vector) != len(n.dims) {
		return nil, fmt.Errorf("context: %w: vector has %d dims, want %d", nserrors.ErrInvalidDimension, len(vector), len(n.dims))
	}

	out := make([]float64, len(vector))
	for i, x := range vector {
		out[i] = n.normalizeOne(i, x)
	}

	return out, nil
}

func (n *Normalizer) normalizeOne(i int, x float64) float64 {
	d := &n.dims[i]

	switch n.kind {
	case NormalizeZScore:
		std := math.Sqrt(d.variance())
		if std < 1e-9 {
			return 0
		}
		return (x - d.mean) / std

	case NormalizeMinMax:
		span := d.max - d.min
		if span < 1e-9 {
			return 0
		}
		return (x - d.min) / span

	case NormalizeRobust:
		median := d.quantile(0.5)
		iqr := d.quantile(0.75) - d.quantile(0.25)
		if iqr < 1e-9 {
			return 0
		}
		return (x - median) / iqr

	case NormalizeQuantile:
		if len(d.sorted) == 0 {
			return 0
		}
		rank := sort.SearchFloat64s(sortedCopy(d), x)
		return float64(rank) / float64(len(d.sorted)-1+boolToInt(len(d.sorted) == 1))

	case NormalizeLog:
		return math.Log1p(math.Max(x, 0))

	default: // NormalizeNone
		return x
	}
}

// Denormalize inverts Normalize. Only NormalizeZScore and NormalizeMinMax
// have well-defined inverses here; the other kinds return the input
// unchanged since their forward transforms are lossy or non-invertible
// given only per-dimension summary statistics.
func (n *Normalizer) Denormalize(vector []float64) ([]float64, error) {
	if !n.fit {
		return nil, fmt.Errorf("context: %w: normalizer has no fitted statistics", nserrors.ErrInvalidParameter)
	}
	if len(vector) != len(n.dims) {
		return nil, fmt.Errorf("context: %w: vector has %d dims, want %d", nserrors.ErrInvalidDimension, len(vector), len(n.dims))
	}

	out := make([]float64, len(vector))
	for i, x := range vector {
		d := &n.dims[i]

		switch n.kind {
		case NormalizeZScore:
			std := math.Sqrt(d.variance())
			out[i] = x*std + d.mean

		case NormalizeMinMax:
			out[i] = x*(d.max-d.min) + d.min

		default:
			out[i] = x
		}
	}

	return out, nil
}

func sortedCopy(d *dimStats) []float64 {
	if !d.sortedDone {
		sort.Float64s(d.sorted)
		d.sortedDone = true
	}
	return d.sorted
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
