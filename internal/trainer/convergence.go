package trainer

import "math"

// checkConvergence runs the multi-criteria test, then the unconditional
// early-stopping checks (patience, overfitting) regardless of whether the
// multi-criteria test fired.
func (tr *Trainer) checkConvergence(stats *Stats) bool {
	criteriaMet := tr.checkMultiCriteriaConvergence(stats)

	converged := len(criteriaMet) > 0
	if converged {
		stats.ConvergenceConfidence = tr.calculateConvergenceConfidence(stats)
		stats.ConvergenceCriteriaMet = criteriaMet
		stats.ConvergenceReason = joinCriteria(criteriaMet)
	}

	if tr.checkEarlyStoppingConditions(stats) {
		stats.EarlyStopped = true
		if stats.ConvergenceReason == "" {
			stats.ConvergenceReason = "early stopping triggered"
		}

		return true
	}

	return converged
}

func joinCriteria(criteria []string) string {
	out := "converged: "
	for i, c := range criteria {
		if i > 0 {
			out += ", "
		}
		out += c
	}

	return out
}

// checkLogLikelihoodConvergence reports whether the improvement over the
// last ConvergenceWindow iterations is below threshold.
func (tr *Trainer) checkLogLikelihoodConvergence(logLikelihoods []float64, threshold float64) bool {
	if len(logLikelihoods) < tr.config.ConvergenceWindow {
		return false
	}

	effective := threshold
	if effective <= 0 {
		effective = tr.config.ConvergenceThreshold
	}

	windowStart := len(logLikelihoods) - tr.config.ConvergenceWindow
	improvement := logLikelihoods[len(logLikelihoods)-1] - logLikelihoods[windowStart]

	return improvement < effective
}

// checkValidationConvergence reports whether the best validation score in
// the recent window trails the best-ever score by more than the convergence
// threshold.
func (tr *Trainer) checkValidationConvergence(scores []float64) bool {
	if len(scores) < tr.config.ConvergenceWindow {
		return false
	}

	windowStart := len(scores) - tr.config.ConvergenceWindow

	maxRecent := maxOf(scores[windowStart:])
	maxOverall := maxOf(scores)

	return maxRecent < maxOverall-tr.config.ConvergenceThreshold
}

func maxOf(values []float64) float64 {
	best := math.Inf(-1)
	for _, v := range values {
		if v > best {
			best = v
		}
	}

	return best
}

// computeRelativeImprovement compares the mean of the most recent windowSize
// values to the mean of the windowSize values before that. Returns +Inf when
// there isn't yet two full windows, or when the previous window's mean is
// within 1e-12 of zero (nothing to divide by).
func computeRelativeImprovement(values []float64, windowSize int) float64 {
	if len(values) < windowSize*2 {
		return math.Inf(1)
	}

	n := len(values)

	var recent, previous float64

	for i := 0; i < windowSize; i++ {
		recent += values[n-1-i]
	}

	recent /= float64(windowSize)

	for i := windowSize; i < windowSize*2; i++ {
		previous += values[n-1-i]
	}

	previous /= float64(windowSize)

	if math.Abs(previous) < 1e-12 {
		return math.Inf(1)
	}

	return (recent - previous) / math.Abs(previous)
}

// checkMultiCriteriaConvergence evaluates the four convergence signals
// (log-likelihood plateau, parameter-change floor, relative-improvement
// floor, validation plateau) and, if any fired, requires the aggregate
// convergence confidence to clear ConvergenceConfidence before accepting.
func (tr *Trainer) checkMultiCriteriaConvergence(stats *Stats) []string {
	var criteria []string

	if tr.config.EnableAdaptiveThresholds {
		stats.AdaptiveThreshold = tr.updateAdaptiveThreshold(stats)
	}

	if tr.checkLogLikelihoodConvergence(stats.LogLikelihoods, stats.AdaptiveThreshold) {
		criteria = append(criteria, "log-likelihood")
	}

	if len(stats.ParameterChanges) > 0 {
		if stats.ParameterChanges[len(stats.ParameterChanges)-1] < tr.config.ParameterThreshold {
			criteria = append(criteria, "parameter-change")
		}
	}

	if len(stats.LogLikelihoods) >= 3 {
		relImprovement := computeRelativeImprovement(stats.LogLikelihoods, 1)
		stats.RelativeImprovements = append(stats.RelativeImprovements, relImprovement)

		if relImprovement < tr.config.MinImprovement {
			criteria = append(criteria, "relative-improvement")
		}
	}

	if tr.config.UseValidationSet && len(stats.ValidationScores) > 0 {
		if tr.checkValidationConvergence(stats.ValidationScores) {
			criteria = append(criteria, "validation")
		}
	}

	if len(criteria) == 0 {
		return nil
	}

	confidence := tr.calculateConvergenceConfidence(stats)
	stats.ConvergenceConfidenceScores = append(stats.ConvergenceConfidenceScores, confidence)

	if confidence < tr.config.ConvergenceConfidence {
		return nil
	}

	return criteria
}

// calculateConvergenceConfidence averages up to three stability signals:
// log-likelihood variance in the recent window (exp(-100*variance)),
// parameter-change stability (1 if every recent change is below twice the
// parameter threshold, else 0), and validation non-deterioration (1 if the
// recent average is at least 95% of the best score seen, else 0.5).
func (tr *Trainer) calculateConvergenceConfidence(stats *Stats) float64 {
	if len(stats.LogLikelihoods) < 3 {
		return 0
	}

	var confidence float64

	var criteriaCount int

	if len(stats.LogLikelihoods) >= tr.config.ConvergenceWindow {
		windowStart := len(stats.LogLikelihoods) - tr.config.ConvergenceWindow
		recent := stats.LogLikelihoods[windowStart:]

		var mean float64
		for _, ll := range recent {
			mean += ll
		}
		mean /= float64(len(recent))

		var variance float64
		for _, ll := range recent {
			variance += (ll - mean) * (ll - mean)
		}
		variance /= float64(len(recent))

		confidence += math.Exp(-variance * 100.0)
		criteriaCount++
	}

	if len(stats.ParameterChanges) >= tr.config.ConvergenceWindow {
		windowStart := len(stats.ParameterChanges) - tr.config.ConvergenceWindow

		stable := true
		for _, pc := range stats.ParameterChanges[windowStart:] {
			if pc > tr.config.ParameterThreshold*2.0 {
				stable = false
				break
			}
		}

		if stable {
			confidence++
		}

		criteriaCount++
	}

	if len(stats.ValidationScores) >= 3 {
		recentCount := 3
		var recentAvg float64

		for i := 0; i < recentCount; i++ {
			recentAvg += stats.ValidationScores[len(stats.ValidationScores)-1-i]
		}

		recentAvg /= float64(recentCount)

		if recentAvg >= stats.BestValidationScore*0.95 {
			confidence++
		} else {
			confidence += 0.5
		}

		criteriaCount++
	}

	if criteriaCount == 0 {
		return 0
	}

	return confidence / float64(criteriaCount)
}

// checkOverfittingDetection reports whether the recent validation average
// has dropped more than OverfittingThreshold below the best score seen.
func (tr *Trainer) checkOverfittingDetection(stats *Stats) bool {
	if !tr.config.UseValidationSet || len(stats.ValidationScores) < 5 {
		return false
	}

	window := 3
	if len(stats.ValidationScores) < window {
		window = len(stats.ValidationScores)
	}

	var recentAvg float64
	for i := 0; i < window; i++ {
		recentAvg += stats.ValidationScores[len(stats.ValidationScores)-1-i]
	}

	recentAvg /= float64(window)

	return stats.BestValidationScore-recentAvg > tr.config.OverfittingThreshold
}

// checkEarlyStoppingConditions updates the patience counter against the
// latest validation score, then checks patience-exceeded and overfitting.
func (tr *Trainer) checkEarlyStoppingConditions(stats *Stats) bool {
	if len(stats.ValidationScores) > 0 {
		current := stats.ValidationScores[len(stats.ValidationScores)-1]
		previousBest := maxOf(stats.ValidationScores[:len(stats.ValidationScores)-1])

		if current > previousBest {
			stats.PatienceCounter = 0
			stats.BestValidationIteration = stats.FinalIteration
		} else {
			stats.PatienceCounter++
		}

		if stats.PatienceCounter >= tr.config.Patience {
			stats.ConvergenceReason = "early stopping: patience exceeded"
			return true
		}
	}

	if tr.checkOverfittingDetection(stats) {
		stats.ConvergenceReason = "early stopping: overfitting detected"
		return true
	}

	return false
}

// updateAdaptiveThreshold scales the configured convergence threshold by the
// standard deviation of the last (up to 9) per-iteration improvements,
// clamped to [0.1, 10]x: stable improvements tighten the threshold, volatile
// ones loosen it.
func (tr *Trainer) updateAdaptiveThreshold(stats *Stats) float64 {
	if len(stats.LogLikelihoods) < 5 {
		return tr.config.ConvergenceThreshold
	}

	n := len(stats.LogLikelihoods)

	limit := 10
	if n < limit {
		limit = n
	}

	var improvements []float64
	for i := 1; i < limit; i++ {
		idx := n - i
		improvements = append(improvements, stats.LogLikelihoods[idx]-stats.LogLikelihoods[idx-1])
	}

	if len(improvements) == 0 {
		return tr.config.ConvergenceThreshold
	}

	var mean float64
	for _, v := range improvements {
		mean += v
	}
	mean /= float64(len(improvements))

	var variance float64
	for _, v := range improvements {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(improvements))

	stdDev := math.Sqrt(variance)

	factor := stdDev / tr.config.ConvergenceThreshold
	if factor < 0.1 {
		factor = 0.1
	}
	if factor > 10.0 {
		factor = 10.0
	}

	return tr.config.ConvergenceThreshold * factor
}
