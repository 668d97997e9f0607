package gv

import (
	"math"

	"github.com/nexussynth/nexussynth-core/internal/align"
)

// Calculator computes, updates, and applies Global Variance statistics. The
// zero value is ready to use.
type Calculator struct{}

// NewCalculator returns a ready-to-use Calculator.
func NewCalculator() *Calculator { return &Calculator{} }

// Calculate accumulates per-phoneme and global frame-wise variance across a
// corpus of (sequence, phoneme-label-per-frame) pairs.
func (c *Calculator) Calculate(sequences [][][]float64, phonemeLabels [][]string) *Statistics {
	stats := &Statistics{PhonemeGVMean: map[string][]float64{}, PhonemeGVVar: map[string][]float64{}, PhonemeFrameCounts: map[string]int{}}

	if len(sequences) == 0 || len(phonemeLabels) == 0 {
		return stats
	}

	for _, seq := range sequences {
		if len(seq) > 0 {
			stats.FeatureDimension = len(seq[0])
			stats.GlobalGVMean = make([]float64, stats.FeatureDimension)
			stats.GlobalGVVar = make([]float64, stats.FeatureDimension)

			break
		}
	}

	phonemeFrames := map[string][][]float64{}

	var allFrames [][]float64

	n := len(sequences)
	if len(phonemeLabels) < n {
		n = len(phonemeLabels)
	}

	for i := 0; i < n; i++ {
		accumulatePhonemeStatistics(phonemeFrames, sequences[i], phonemeLabels[i])
		allFrames = append(allFrames, sequences[i]...)
	}

	for phoneme, frames := range phonemeFrames {
		if len(frames) == 0 {
			continue
		}

		variance := frameWiseVariance(frames)
		stats.PhonemeGVMean[phoneme] = variance
		stats.PhonemeGVVar[phoneme] = safeVectorVariance([][]float64{variance})
		stats.PhonemeFrameCounts[phoneme] = len(frames)
	}

	if len(allFrames) > 0 {
		stats.GlobalGVMean = frameWiseVariance(allFrames)
		stats.GlobalGVVar = safeVectorVariance([][]float64{stats.GlobalGVMean})
		stats.TotalFrames = len(allFrames)
	}

	return stats
}

// CalculateWithAlignment is Calculate, grouping frames by phoneme boundary
// from an alignment result instead of a per-frame label slice.
func (c *Calculator) CalculateWithAlignment(sequences [][][]float64, alignments []*align.AlignmentResult) *Statistics {
	labels := make([][]string, len(sequences))

	for i, seq := range sequences {
		if i >= len(alignments) || alignments[i] == nil {
			continue
		}

		labels[i] = labelsFromBoundaries(len(seq), alignments[i].Boundaries)
	}

	return c.Calculate(sequences, labels)
}

func labelsFromBoundaries(numFrames int, boundaries []align.PhonemeBoundary) []string {
	labels := make([]string, numFrames)

	for _, b := range boundaries {
		for t := b.StartFrame; t < b.EndFrame && t < numFrames; t++ {
			labels[t] = b.Phoneme
		}
	}

	return labels
}

// Update folds one new sequence into stats incrementally: per-phoneme and
// global means are exponential moving averages with rate emaAlpha, seeded
// directly from the first observation of each.
func (c *Calculator) Update(stats *Statistics, sequence [][]float64, phonemeLabels []string) {
	if len(sequence) == 0 || len(phonemeLabels) == 0 {
		return
	}

	if stats.FeatureDimension == 0 {
		stats.FeatureDimension = len(sequence[0])
		stats.GlobalGVMean = make([]float64, stats.FeatureDimension)
		stats.GlobalGVVar = make([]float64, stats.FeatureDimension)
	}

	if stats.PhonemeGVMean == nil {
		stats.PhonemeGVMean = map[string][]float64{}
	}

	if stats.PhonemeGVVar == nil {
		stats.PhonemeGVVar = map[string][]float64{}
	}

	if stats.PhonemeFrameCounts == nil {
		stats.PhonemeFrameCounts = map[string]int{}
	}

	phonemeFrames := map[string][][]float64{}
	accumulatePhonemeStatistics(phonemeFrames, sequence, phonemeLabels)

	for phoneme, frames := range phonemeFrames {
		if len(frames) == 0 {
			continue
		}

		newVariance := frameWiseVariance(frames)

		if stats.HasPhonemeStatistics(phoneme) {
			stats.PhonemeGVMean[phoneme] = emaBlend(stats.PhonemeGVMean[phoneme], newVariance, emaAlpha)
		} else {
			stats.PhonemeGVMean[phoneme] = newVariance
			stats.PhonemeGVVar[phoneme] = safeVectorVariance([][]float64{newVariance})
		}

		stats.PhonemeFrameCounts[phoneme] += len(frames)
	}

	sequenceVariance := frameWiseVariance(sequence)

	if stats.TotalFrames > 0 {
		stats.GlobalGVMean = emaBlend(stats.GlobalGVMean, sequenceVariance, emaAlpha)
	} else {
		stats.GlobalGVMean = sequenceVariance
		stats.GlobalGVVar = safeVectorVariance([][]float64{sequenceVariance})
	}

	stats.TotalFrames += len(sequence)
}

func emaBlend(old, next []float64, alpha float64) []float64 {
	out := make([]float64, len(old))
	for i := range out {
		out[i] = (1-alpha)*old[i] + alpha*next[i]
	}

	return out
}

// SequenceVariance returns the frame-wise variance of one sequence.
func (c *Calculator) SequenceVariance(sequence [][]float64) []float64 {
	return frameWiseVariance(sequence)
}

// PhonemeVariances groups sequence's frames by alignment.Boundaries and
// returns the frame-wise variance within each phoneme's span.
func (c *Calculator) PhonemeVariances(sequence [][]float64, alignment *align.AlignmentResult) map[string][]float64 {
	out := map[string][]float64{}

	if alignment == nil {
		return out
	}

	for _, b := range alignment.Boundaries {
		if b.StartFrame < 0 || b.EndFrame > len(sequence) || b.StartFrame >= b.EndFrame {
			continue
		}

		frames := sequence[b.StartFrame:b.EndFrame]
		if len(frames) > 0 {
			out[b.Phoneme] = frameWiseVariance(frames)
		}
	}

	return out
}

// ApplyCorrection rescales each frame of trajectory toward its phoneme's
// target GV, clamped by [MinGVWeight, MaxGVWeight] and further scaled by
// gvWeight. A gvWeight of zero or less (or an empty trajectory) is a no-op.
func (c *Calculator) ApplyCorrection(trajectory [][]float64, stats *Statistics, phonemeSequence []string, gvWeight float64) [][]float64 {
	if len(trajectory) == 0 || gvWeight <= 0 {
		return trajectory
	}

	corrected := make([][]float64, len(trajectory))
	for i, frame := range trajectory {
		corrected[i] = append([]float64(nil), frame...)
	}

	currentVariance := frameWiseVariance(trajectory)
	trajectoryMean := frameWiseMean(trajectory)

	for i := 0; i < len(corrected) && i < len(phonemeSequence); i++ {
		targetMean, _ := stats.GetStatistics(phonemeSequence[i])
		if len(targetMean) != len(corrected[i]) {
			continue
		}

		for d := range corrected[i] {
			if currentVariance[d] <= MinVariance || targetMean[d] <= MinVariance {
				continue
			}

			factor := math.Sqrt(targetMean[d] / currentVariance[d])
			factor = clamp(factor, MinGVWeight, MaxGVWeight)

			mu := trajectoryMean[d]
			corrected[i][d] = mu + gvWeight*factor*(corrected[i][d]-mu)
		}
	}

	return corrected
}

// frameWiseMean returns the per-dimension mean of trajectory across all
// frames.
func frameWiseMean(trajectory [][]float64) []float64 {
	dim := len(trajectory[0])
	mean := make([]float64, dim)

	var count float64
	for _, frame := range trajectory {
		if len(frame) != dim {
			continue
		}
		count++
		for d, v := range frame {
			mean[d] += v
		}
	}
	if count == 0 {
		return mean
	}
	for d := range mean {
		mean[d] /= count
	}

	return mean
}

// Weights returns a per-frame correction weight derived from how far the
// trajectory's current variance diverges (in log-ratio terms) from each
// frame's target GV.
func (c *Calculator) Weights(trajectory [][]float64, stats *Statistics, phonemeSequence []string) []float64 {
	weights := make([]float64, len(trajectory))
	for i := range weights {
		weights[i] = 1.0
	}

	if len(trajectory) == 0 || stats.FeatureDimension == 0 {
		return weights
	}

	currentVariance := frameWiseVariance(trajectory)

	for i := 0; i < len(weights) && i < len(phonemeSequence); i++ {
		targetMean, _ := stats.GetStatistics(phonemeSequence[i])
		if len(targetMean) != len(currentVariance) {
			continue
		}

		var distance float64

		var validDims int

		for d := range targetMean {
			if currentVariance[d] > MinVariance && targetMean[d] > MinVariance {
				ratio := currentVariance[d] / targetMean[d]
				distance += math.Abs(math.Log(ratio))
				validDims++
			}
		}

		if validDims > 0 {
			distance /= float64(validDims)
			weights[i] = clamp(1.0+distance, MinGVWeight, MaxGVWeight)
		}
	}

	return weights
}

// Merge averages global and per-phoneme statistics across a list of
// Statistics computed from different training shards.
func (c *Calculator) Merge(statsList []*Statistics) *Statistics {
	merged := &Statistics{PhonemeGVMean: map[string][]float64{}, PhonemeGVVar: map[string][]float64{}, PhonemeFrameCounts: map[string]int{}}

	if len(statsList) == 0 {
		return merged
	}

	for _, s := range statsList {
		if s.FeatureDimension > 0 {
			merged.FeatureDimension = s.FeatureDimension
			merged.GlobalGVMean = make([]float64, merged.FeatureDimension)
			merged.GlobalGVVar = make([]float64, merged.FeatureDimension)

			break
		}
	}

	if merged.FeatureDimension == 0 {
		return merged
	}

	var validCount int

	phonemeShards := map[string]int{}

	for _, s := range statsList {
		if s.FeatureDimension != merged.FeatureDimension {
			continue
		}

		if validCount == 0 {
			merged.GlobalGVMean = append([]float64(nil), s.GlobalGVMean...)
			merged.GlobalGVVar = append([]float64(nil), s.GlobalGVVar...)
		} else {
			merged.GlobalGVMean = runningAverage(merged.GlobalGVMean, s.GlobalGVMean, validCount)
			merged.GlobalGVVar = runningAverage(merged.GlobalGVVar, s.GlobalGVVar, validCount)
		}

		merged.TotalFrames += s.TotalFrames
		validCount++

		for phoneme, mean := range s.PhonemeGVMean {
			if existing, ok := merged.PhonemeGVMean[phoneme]; !ok {
				merged.PhonemeGVMean[phoneme] = append([]float64(nil), mean...)

				if v, ok := s.PhonemeGVVar[phoneme]; ok {
					merged.PhonemeGVVar[phoneme] = append([]float64(nil), v...)
				}

				if c, ok := s.PhonemeFrameCounts[phoneme]; ok {
					merged.PhonemeFrameCounts[phoneme] = c
				}
			} else {
				merged.PhonemeGVMean[phoneme] = runningAverage(existing, mean, phonemeShards[phoneme])
			}

			phonemeShards[phoneme]++
		}
	}

	return merged
}

func runningAverage(accum, next []float64, priorCount int) []float64 {
	out := make([]float64, len(accum))
	for i := range out {
		out[i] = (accum[i]*float64(priorCount) + next[i]) / float64(priorCount+1)
	}

	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func frameWiseVariance(frames [][]float64) []float64 {
	if len(frames) == 0 {
		return nil
	}

	dim := len(frames[0])
	mean := make([]float64, dim)

	var count float64

	for _, f := range frames {
		if len(f) != dim {
			continue
		}

		for d, v := range f {
			mean[d] += v
		}

		count++
	}

	if count == 0 {
		return mean
	}

	for d := range mean {
		mean[d] /= count
	}

	variance := make([]float64, dim)

	for _, f := range frames {
		if len(f) != dim {
			continue
		}

		for d, v := range f {
			diff := v - mean[d]
			variance[d] += diff * diff
		}
	}

	for d := range variance {
		variance[d] /= count
		if variance[d] < MinVariance {
			variance[d] = MinVariance
		}
	}

	return variance
}

func accumulatePhonemeStatistics(phonemeFrames map[string][][]float64, sequence [][]float64, phonemeLabels []string) {
	n := len(sequence)
	if len(phonemeLabels) < n {
		n = len(phonemeLabels)
	}

	for i := 0; i < n; i++ {
		phonemeFrames[phonemeLabels[i]] = append(phonemeFrames[phonemeLabels[i]], sequence[i])
	}
}

func safeVectorVariance(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}

	return frameWiseVariance(vectors)
}
