package nca

import "math"

// lnEqualTolerance is the threshold below which two log-concentrations are
// treated as equal and the interval falls back to the linear rule.
const lnEqualTolerance = 1e-10

// FilterBLQ applies the BLQ substitution policy and returns the working
// sequence for integration. The input is not modified.
func FilterBLQ(observations []Observation, policy BLQPolicy) []Observation {
	filtered := make([]Observation, 0, len(observations))
	for _, obs := range observations {
		if !obs.BLQ {
			filtered = append(filtered, obs)
			continue
		}
		switch policy {
		case BLQDrop:
			// excluded entirely
		case BLQZero:
			obs.Concentration = 0
			filtered = append(filtered, obs)
		case BLQHalfLLOQ:
			if obs.LLOQ != nil {
				obs.Concentration = *obs.LLOQ / 2
			} else {
				obs.Concentration = 0
			}
			filtered = append(filtered, obs)
		}
	}
	return filtered
}

// Integrate computes AUC over a time-ordered, BLQ-substituted sequence using
// the given method. Intervals with non-increasing time are skipped.
func Integrate(observations []Observation, method AUCMethod) float64 {
	auc := 0.0
	for i := 1; i < len(observations); i++ {
		t1, c1 := observations[i-1].Time, observations[i-1].Concentration
		t2, c2 := observations[i].Time, observations[i].Concentration
		if t2 <= t1 {
			continue
		}
		auc += intervalArea(t1, c1, t2, c2, method)
	}
	return auc
}

// intervalArea applies the method's rule to one interval.
func intervalArea(t1, c1, t2, c2 float64, method AUCMethod) float64 {
	switch method {
	case LogTrapezoidal:
		if c1 > 0 && c2 > 0 {
			return logArea(t1, c1, t2, c2)
		}
		// The pure log rule has no contribution for non-positive
		// concentrations; the interval is skipped.
		return 0
	case LinearLogTrapezoidal:
		if c1 > 0 && c2 > 0 && c2 < c1 {
			return logArea(t1, c1, t2, c2)
		}
		return linearArea(t1, c1, t2, c2)
	case LinearUpLogDown:
		if c2 >= c1 {
			return linearArea(t1, c1, t2, c2)
		}
		if c1 > 0 && c2 > 0 {
			return logArea(t1, c1, t2, c2)
		}
		return linearArea(t1, c1, t2, c2)
	default:
		return linearArea(t1, c1, t2, c2)
	}
}

func linearArea(t1, c1, t2, c2 float64) float64 {
	return (t2 - t1) * (c1 + c2) / 2
}

// logArea assumes c1 > 0 and c2 > 0. Near-equal concentrations fall back to
// the linear rule to avoid dividing by a vanishing log difference.
func logArea(t1, c1, t2, c2 float64) float64 {
	lnC1, lnC2 := math.Log(c1), math.Log(c2)
	if math.Abs(lnC1-lnC2) < lnEqualTolerance {
		return linearArea(t1, c1, t2, c2)
	}
	return (t2 - t1) * (c1 - c2) / (lnC1 - lnC2)
}

// IntegrateAll computes AUC under every requested method over a
// time-ordered, BLQ-substituted sequence. It fails when fewer than two
// points survive the BLQ policy.
func IntegrateAll(observations []Observation, methods []AUCMethod) (map[string]float64, error) {
	if len(observations) < 2 {
		return nil, insufficientDataf("need at least 2 data points for AUC calculation, have %d", len(observations))
	}
	results := make(map[string]float64, len(methods))
	for _, method := range methods {
		results[method.String()] = Integrate(observations, method)
	}
	return results, nil
}

// MomentIntegrate computes AUMC over a time-ordered, BLQ-substituted
// sequence. The moment curve always uses the linear trapezoidal analogue,
// regardless of the configured AUC method.
func MomentIntegrate(observations []Observation) (float64, error) {
	if len(observations) < 2 {
		return 0, insufficientDataf("need at least 2 data points for AUMC calculation, have %d", len(observations))
	}
	aumc := 0.0
	for i := 1; i < len(observations); i++ {
		t1, c1 := observations[i-1].Time, observations[i-1].Concentration
		t2, c2 := observations[i].Time, observations[i].Concentration
		if t2 <= t1 {
			continue
		}
		aumc += (t2 - t1) * (t1*c1 + t2*c2) / 2
	}
	return aumc, nil
}

// AUCInf extrapolates AUC to infinite time: AUC_last + Clast/lambda_z.
func AUCInf(aucLast, clast, lambdaZ float64) (float64, error) {
	if lambdaZ <= 0 {
		return 0, calculationErrorf("lambda_z must be positive for AUC_inf, got %g", lambdaZ)
	}
	return aucLast + clast/lambdaZ, nil
}

// AUMCInf extrapolates AUMC to infinite time:
// AUMC_last + Tlast·Clast/lambda_z + Clast/lambda_z².
func AUMCInf(aumcLast, tlast, clast, lambdaZ float64) (float64, error) {
	if lambdaZ <= 0 {
		return 0, calculationErrorf("lambda_z must be positive for AUMC_inf, got %g", lambdaZ)
	}
	return aumcLast + tlast*clast/lambdaZ + clast/(lambdaZ*lambdaZ), nil
}
