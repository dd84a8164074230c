package nca

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// autoRSquaredThreshold is the minimum acceptable fit for the automatic
// terminal-phase search.
const autoRSquaredThreshold = 0.8

// LambdaZFit is the outcome of a terminal-phase regression: the elimination
// rate constant, its goodness of fit, and the observation indices the window
// covered.
type LambdaZFit struct {
	LambdaZ  float64 `json:"lambda_z"`
	RSquared float64 `json:"r_squared"`
	Indices  []int   `json:"indices"`
}

// EstimateLambdaZ estimates the terminal elimination rate constant over a
// time-ordered observation sequence. The sequence is the full profile, not
// the BLQ-substituted one; only points with positive concentration enter a
// fit.
func EstimateLambdaZ(observations []Observation, selection LambdaZSelection) (LambdaZFit, error) {
	switch selection.Method {
	case LambdaZManual:
		return manualLambdaZ(observations, selection.Indices)
	case LambdaZBestFit:
		return bestFitLambdaZ(observations, selection.MinPoints, selection.RSquaredThreshold)
	default:
		return autoLambdaZ(observations)
	}
}

// autoLambdaZ tries every tail window with the right edge fixed at the last
// observation, varying only the left edge. A window wins only on a strict
// R² improvement, so among equal fits the longest window (first found) is
// kept. Trailing points are never dropped.
func autoLambdaZ(observations []Observation) (LambdaZFit, error) {
	n := len(observations)
	if n < 3 {
		return LambdaZFit{}, insufficientDataf("need at least 3 points for lambda_z, have %d", n)
	}

	best := LambdaZFit{}
	for start := 0; start <= n-3; start++ {
		indices := indexRange(start, n)
		lambdaZ, rSquared, err := fitLogLinear(observations, indices)
		if err != nil {
			continue
		}
		if rSquared > best.RSquared && rSquared >= autoRSquaredThreshold {
			best = LambdaZFit{LambdaZ: lambdaZ, RSquared: rSquared, Indices: indices}
		}
	}

	if len(best.Indices) == 0 {
		return LambdaZFit{}, calculationErrorf("no terminal-phase window reached R² >= %g", autoRSquaredThreshold)
	}
	return best, nil
}

// manualLambdaZ fits a single regression over caller-supplied indices.
func manualLambdaZ(observations []Observation, indices []int) (LambdaZFit, error) {
	lambdaZ, rSquared, err := fitLogLinear(observations, indices)
	if err != nil {
		return LambdaZFit{}, err
	}
	out := make([]int, len(indices))
	copy(out, indices)
	return LambdaZFit{LambdaZ: lambdaZ, RSquared: rSquared, Indices: out}, nil
}

// bestFitLambdaZ exhaustively tries every contiguous window of at least
// minPoints observations. Like the automatic search, ties favor the first
// window found under ascending start-then-end iteration.
func bestFitLambdaZ(observations []Observation, minPoints int, threshold float64) (LambdaZFit, error) {
	n := len(observations)
	if n < minPoints {
		return LambdaZFit{}, insufficientDataf("need at least %d points for lambda_z, have %d", minPoints, n)
	}

	best := LambdaZFit{}
	for start := 0; start <= n-minPoints; start++ {
		for end := start + minPoints - 1; end < n; end++ {
			indices := indexRange(start, end+1)
			lambdaZ, rSquared, err := fitLogLinear(observations, indices)
			if err != nil {
				continue
			}
			if rSquared > best.RSquared && rSquared >= threshold {
				best = LambdaZFit{LambdaZ: lambdaZ, RSquared: rSquared, Indices: indices}
			}
		}
	}

	if len(best.Indices) == 0 {
		return LambdaZFit{}, calculationErrorf("no window reached R² >= %g", threshold)
	}
	return best, nil
}

// fitLogLinear regresses ln(concentration) on time over the windowed points.
// lambda_z is the negated slope; the fit assumes a declining terminal phase.
func fitLogLinear(observations []Observation, indices []int) (lambdaZ, rSquared float64, err error) {
	times := make([]float64, 0, len(indices))
	lnConcs := make([]float64, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(observations) {
			continue
		}
		obs := observations[idx]
		if obs.Concentration > 0 {
			times = append(times, obs.Time)
			lnConcs = append(lnConcs, math.Log(obs.Concentration))
		}
	}

	if len(times) < 2 {
		return 0, 0, insufficientDataf("need at least 2 positive concentrations for lambda_z, have %d", len(times))
	}
	if stat.Variance(times, nil) == 0 {
		return 0, 0, calculationErrorf("regression window has no time spread")
	}

	alpha, beta := stat.LinearRegression(times, lnConcs, nil, false)
	lambdaZ = -beta

	// A window of identical log-concentrations has zero total variance;
	// gonum's RSquared would be NaN there, the fit carries no information.
	if stat.Variance(lnConcs, nil) == 0 {
		return lambdaZ, 0, nil
	}
	rSquared = stat.RSquared(times, lnConcs, nil, alpha, beta)
	return lambdaZ, rSquared, nil
}

func indexRange(start, end int) []int {
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return indices
}
