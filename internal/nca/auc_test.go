package nca

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(time, conc float64) Observation {
	lloq := 0.1
	return Observation{Time: time, Concentration: conc, LLOQ: &lloq, DV: conc}
}

func blqObs(time, lloq float64) Observation {
	return Observation{Time: time, LLOQ: &lloq, BLQ: true}
}

// TestFilterBLQ tests the three BLQ substitution policies
func TestFilterBLQ(t *testing.T) {
	input := []Observation{
		obs(0, 100),
		blqObs(1, 0.2),
		obs(2, 50),
	}

	tests := []struct {
		name      string
		policy    BLQPolicy
		wantLen   int
		wantConc1 float64
	}{
		{"half LLOQ substitutes LLOQ/2", BLQHalfLLOQ, 3, 0.1},
		{"zero substitutes zero", BLQZero, 3, 0.0},
		{"drop removes the sample", BLQDrop, 2, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered := FilterBLQ(input, tt.policy)
			assert.Len(t, filtered, tt.wantLen)
			assert.Equal(t, tt.wantConc1, filtered[1].Concentration)
		})
	}

	t.Run("half LLOQ without LLOQ falls back to zero", func(t *testing.T) {
		filtered := FilterBLQ([]Observation{{Time: 1, BLQ: true}}, BLQHalfLLOQ)
		require.Len(t, filtered, 1)
		assert.Equal(t, 0.0, filtered[0].Concentration)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		FilterBLQ(input, BLQZero)
		assert.True(t, input[1].BLQ)
		assert.Equal(t, 0.0, input[1].Concentration)
	})
}

// TestIntegrateLinear verifies the linear trapezoidal rule against a
// hand-computed profile.
func TestIntegrateLinear(t *testing.T) {
	observations := []Observation{
		obs(0, 100),
		obs(1, 75),
		obs(2, 50),
		obs(4, 25),
	}

	// (100+75)/2 + (75+50)/2 + 2*(50+25)/2 = 87.5 + 62.5 + 75
	auc := Integrate(observations, LinearTrapezoidal)
	assert.InDelta(t, 225.0, auc, 1e-9)
}

// TestIntegrateLogExact verifies the log rule is exact for a single
// mono-exponential interval.
func TestIntegrateLogExact(t *testing.T) {
	lambda := 0.2
	c1, c2 := 100.0, 100.0*math.Exp(-lambda*4)
	observations := []Observation{obs(0, c1), obs(4, c2)}

	// Analytic integral of c1*exp(-lambda*t) over [0,4].
	want := (c1 - c2) / lambda
	auc := Integrate(observations, LogTrapezoidal)
	assert.InDelta(t, want, auc, 1e-9)
}

// TestIntervalArea tests the per-interval method dispatch
func TestIntervalArea(t *testing.T) {
	tests := []struct {
		name   string
		method AUCMethod
		c1, c2 float64
		want   float64
	}{
		{"linear on rising pair", LinearTrapezoidal, 10, 20, 15},
		{"pure log skips zero concentration", LogTrapezoidal, 10, 0, 0},
		{"hybrid uses linear on rising pair", LinearLogTrapezoidal, 10, 20, 15},
		{"hybrid uses log on declining pair", LinearLogTrapezoidal, 20, 10, 10 / math.Log(2)},
		{"up/down uses linear on flat pair", LinearUpLogDown, 10, 10, 10},
		{"up/down uses log on declining pair", LinearUpLogDown, 20, 10, 10 / math.Log(2)},
		{"up/down falls back to linear when declining to zero", LinearUpLogDown, 20, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := intervalArea(0, tt.c1, 1, tt.c2, tt.method)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// TestIntegrateSkipsNonIncreasingTime verifies duplicate timepoints contribute
// no area instead of corrupting the sum.
func TestIntegrateSkipsNonIncreasingTime(t *testing.T) {
	observations := []Observation{
		obs(0, 100),
		obs(1, 80),
		obs(1, 60),
		obs(2, 40),
	}
	auc := Integrate(observations, LinearTrapezoidal)
	assert.InDelta(t, 90.0+50.0, auc, 1e-9)
}

// TestIntegrateAll tests multi-method integration and the two-point floor
func TestIntegrateAll(t *testing.T) {
	t.Run("returns one entry per method", func(t *testing.T) {
		observations := []Observation{obs(0, 100), obs(1, 75), obs(2, 50), obs(4, 25)}
		methods := []AUCMethod{LinearTrapezoidal, LogTrapezoidal, LinearLogTrapezoidal, LinearUpLogDown}

		results, err := IntegrateAll(observations, methods)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.InDelta(t, 225.0, results["linear_trapezoidal"], 1e-9)
		for key, auc := range results {
			assert.Greater(t, auc, 0.0, "method %s", key)
		}
	})

	t.Run("all methods agree on a constant profile", func(t *testing.T) {
		observations := []Observation{obs(0, 50), obs(2, 50), obs(4, 50)}
		methods := []AUCMethod{LinearTrapezoidal, LogTrapezoidal, LinearLogTrapezoidal, LinearUpLogDown}

		results, err := IntegrateAll(observations, methods)
		require.NoError(t, err)
		for key, auc := range results {
			assert.InDelta(t, 200.0, auc, 1e-9, "method %s", key)
		}
	})

	t.Run("fewer than two points fails", func(t *testing.T) {
		_, err := IntegrateAll([]Observation{obs(0, 100)}, []AUCMethod{LinearTrapezoidal})
		require.Error(t, err)
		assert.True(t, IsInsufficientData(err))
	})
}

// TestMomentIntegrate tests the AUMC linear moment rule
func TestMomentIntegrate(t *testing.T) {
	observations := []Observation{obs(0, 100), obs(2, 50)}

	// (2-0)*(0*100 + 2*50)/2 = 100
	aumc, err := MomentIntegrate(observations)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, aumc, 1e-9)

	_, err = MomentIntegrate([]Observation{obs(0, 100)})
	assert.True(t, IsInsufficientData(err))
}

// TestAUCInf tests infinite-time extrapolation
func TestAUCInf(t *testing.T) {
	aucInf, err := AUCInf(225.0, 25.0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 475.0, aucInf, 1e-9)

	_, err = AUCInf(225.0, 25.0, 0)
	require.Error(t, err)
	assert.True(t, IsCalculationError(err))
}

// TestAUMCInf tests the moment extrapolation terms
func TestAUMCInf(t *testing.T) {
	// aumcLast + tlast*clast/lambda + clast/lambda^2
	aumcInf, err := AUMCInf(1000.0, 4.0, 25.0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0+1000.0+2500.0, aumcInf, 1e-9)

	_, err = AUMCInf(1000.0, 4.0, 25.0, -0.1)
	require.Error(t, err)
	assert.True(t, IsCalculationError(err))
}
