package nca

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monoExpProfile(c0, lambda float64, times ...float64) []Observation {
	observations := make([]Observation, 0, len(times))
	for _, tm := range times {
		observations = append(observations, obs(tm, c0*math.Exp(-lambda*tm)))
	}
	return observations
}

// TestAutoLambdaZ tests the automatic tail-window search
func TestAutoLambdaZ(t *testing.T) {
	t.Run("recovers the rate constant from clean decay", func(t *testing.T) {
		observations := monoExpProfile(100, 0.1, 0, 2, 4, 8, 12, 24)

		fit, err := EstimateLambdaZ(observations, LambdaZSelection{Method: LambdaZAuto})
		require.NoError(t, err)
		assert.InDelta(t, 0.1, fit.LambdaZ, 1e-9)
		assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
		// Equal fits keep the longest window.
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, fit.Indices)
	})

	t.Run("fewer than three points fails", func(t *testing.T) {
		observations := monoExpProfile(100, 0.1, 0, 2)
		_, err := EstimateLambdaZ(observations, LambdaZSelection{Method: LambdaZAuto})
		require.Error(t, err)
		assert.True(t, IsInsufficientData(err))
	})

	t.Run("no window above threshold fails", func(t *testing.T) {
		// Oscillating values cannot reach R² 0.8 in any tail window.
		observations := []Observation{
			obs(0, 10), obs(1, 100), obs(2, 10), obs(3, 100), obs(4, 10), obs(5, 100),
		}
		_, err := EstimateLambdaZ(observations, LambdaZSelection{Method: LambdaZAuto})
		require.Error(t, err)
		assert.True(t, IsCalculationError(err))
	})

	t.Run("absorption phase is excluded by a later window", func(t *testing.T) {
		// Rise to Cmax at t=1, then clean decay.
		observations := []Observation{obs(0, 1), obs(1, 100)}
		observations = append(observations, monoExpProfile(100*math.Exp(0.2), 0.2, 2, 4, 8, 12, 24)...)

		fit, err := EstimateLambdaZ(observations, LambdaZSelection{Method: LambdaZAuto})
		require.NoError(t, err)
		assert.InDelta(t, 0.2, fit.LambdaZ, 1e-6)
		assert.GreaterOrEqual(t, fit.Indices[0], 1)
	})
}

// TestManualLambdaZ tests caller-supplied window regression
func TestManualLambdaZ(t *testing.T) {
	observations := monoExpProfile(100, 0.15, 0, 1, 2, 4, 8)
	selection := LambdaZSelection{Method: LambdaZManual, Indices: []int{2, 3, 4}}

	fit, err := EstimateLambdaZ(observations, selection)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, fit.LambdaZ, 1e-9)
	assert.Equal(t, []int{2, 3, 4}, fit.Indices)

	t.Run("fewer than two usable indices fails", func(t *testing.T) {
		_, err := EstimateLambdaZ(observations, LambdaZSelection{
			Method:  LambdaZManual,
			Indices: []int{4},
		})
		require.Error(t, err)
		assert.True(t, IsInsufficientData(err))
	})

	t.Run("out-of-range indices are ignored", func(t *testing.T) {
		fit, err := EstimateLambdaZ(observations, LambdaZSelection{
			Method:  LambdaZManual,
			Indices: []int{2, 3, 4, 99},
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.15, fit.LambdaZ, 1e-9)
	})
}

// TestBestFitLambdaZ tests the exhaustive window search
func TestBestFitLambdaZ(t *testing.T) {
	selection := LambdaZSelection{
		Method:            LambdaZBestFit,
		MinPoints:         3,
		RSquaredThreshold: 0.9,
	}

	t.Run("finds the rate constant in a clean profile", func(t *testing.T) {
		observations := monoExpProfile(100, 0.25, 0, 1, 2, 4, 8, 12)
		fit, err := EstimateLambdaZ(observations, selection)
		require.NoError(t, err)
		assert.InDelta(t, 0.25, fit.LambdaZ, 1e-9)
		assert.GreaterOrEqual(t, len(fit.Indices), selection.MinPoints)
	})

	t.Run("too few observations fails", func(t *testing.T) {
		observations := monoExpProfile(100, 0.25, 0, 1)
		_, err := EstimateLambdaZ(observations, selection)
		require.Error(t, err)
		assert.True(t, IsInsufficientData(err))
	})
}

// TestFitLogLinear tests the regression guards
func TestFitLogLinear(t *testing.T) {
	t.Run("zero time spread is rejected", func(t *testing.T) {
		observations := []Observation{obs(2, 100), obs(2, 50)}
		_, _, err := fitLogLinear(observations, []int{0, 1})
		require.Error(t, err)
		assert.True(t, IsCalculationError(err))
	})

	t.Run("non-positive concentrations are excluded from the fit", func(t *testing.T) {
		observations := []Observation{obs(0, 100), obs(1, 0), obs(2, 100 * math.Exp(-0.4))}
		lambdaZ, _, err := fitLogLinear(observations, []int{0, 1, 2})
		require.NoError(t, err)
		assert.InDelta(t, 0.2, lambdaZ, 1e-9)
	})

	t.Run("flat profile reports zero r-squared", func(t *testing.T) {
		observations := []Observation{obs(0, 50), obs(1, 50), obs(2, 50)}
		lambdaZ, rSquared, err := fitLogLinear(observations, []int{0, 1, 2})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, lambdaZ, 1e-9)
		assert.Equal(t, 0.0, rSquared)
	})
}
