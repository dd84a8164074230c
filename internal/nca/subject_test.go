package nca

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubject(id string) Subject {
	times := []float64{0.25, 0.5, 1, 2, 4, 8, 12, 24}
	observations := make([]Observation, 0, len(times))
	for _, tm := range times {
		observations = append(observations, obs(tm, 100*math.Exp(-0.1*tm)))
	}
	return Subject{
		ID:           id,
		Observations: observations,
		DosingEvents: []DosingEvent{{Time: 0, Dose: 100, Route: RouteIVBolus}},
	}
}

// TestAnalyzeSubject tests the full single-subject workflow
func TestAnalyzeSubject(t *testing.T) {
	analyzer := NewAnalyzer(DefaultAnalysisConfig(), nil)
	ctx := context.Background()

	t.Run("clean IV profile yields the full parameter set", func(t *testing.T) {
		result, warnings, err := analyzer.AnalyzeSubject(ctx, testSubject("SUBJ-001"))
		require.NoError(t, err)
		assert.Equal(t, "SUBJ-001", result.SubjectID)
		assert.Empty(t, warnings)

		p := result.Parameters
		require.NotNil(t, p.Cmax)
		assert.InDelta(t, 100*math.Exp(-0.025), *p.Cmax, 1e-9)
		require.NotNil(t, p.Tmax)
		assert.Equal(t, 0.25, *p.Tmax)
		require.NotNil(t, p.LambdaZ)
		assert.InDelta(t, 0.1, *p.LambdaZ, 1e-9)
		require.NotNil(t, p.HalfLife)
		assert.InDelta(t, math.Ln2/0.1, *p.HalfLife, 1e-6)
		require.NotNil(t, p.AUCLast)
		require.NotNil(t, p.AUCInf)
		assert.Greater(t, *p.AUCInf, *p.AUCLast)
		require.NotNil(t, p.AUCPercentExtrap)
		assert.Less(t, *p.AUCPercentExtrap, 20.0)
		require.NotNil(t, p.Clearance)
		assert.Greater(t, *p.Clearance, 0.0)
		require.NotNil(t, p.MRT)
		require.NotNil(t, p.VolumeSteadyState)
		require.NotNil(t, p.VolumeTerminal)
		assert.InDelta(t, *p.Clearance/0.1, *p.VolumeTerminal, 1e-6)
	})

	t.Run("method comparison entries cover every configured method", func(t *testing.T) {
		result, _, err := analyzer.AnalyzeSubject(ctx, testSubject("SUBJ-002"))
		require.NoError(t, err)
		require.Len(t, result.MethodComparisons, 4)
		for _, method := range DefaultAnalysisConfig().AUCMethods {
			entry, ok := result.MethodComparisons[method.String()]
			require.True(t, ok, "missing entry for %s", method)
			require.NotNil(t, entry.AUCLast)
			assert.Greater(t, *entry.AUCLast, 0.0)
		}
	})

	t.Run("no observations fails", func(t *testing.T) {
		_, _, err := analyzer.AnalyzeSubject(ctx, Subject{ID: "EMPTY"})
		require.Error(t, err)
		assert.True(t, IsInsufficientData(err))
	})

	t.Run("fewer than three quantifiable concentrations fails", func(t *testing.T) {
		subject := Subject{
			ID: "SPARSE",
			Observations: []Observation{
				obs(0, 100),
				obs(1, 50),
				blqObs(2, 0.2),
				blqObs(4, 0.2),
			},
		}
		_, _, err := analyzer.AnalyzeSubject(ctx, subject)
		require.Error(t, err)
		assert.True(t, IsInsufficientData(err))
		assert.Contains(t, err.Error(), "SPARSE")
	})

	t.Run("unsorted observations are handled without mutating the input", func(t *testing.T) {
		subject := testSubject("SUBJ-003")
		// Reverse the profile in place.
		for i, j := 0, len(subject.Observations)-1; i < j; i, j = i+1, j-1 {
			subject.Observations[i], subject.Observations[j] = subject.Observations[j], subject.Observations[i]
		}
		firstTime := subject.Observations[0].Time

		result, _, err := analyzer.AnalyzeSubject(ctx, subject)
		require.NoError(t, err)
		require.NotNil(t, result.Parameters.LambdaZ)
		assert.InDelta(t, 0.1, *result.Parameters.LambdaZ, 1e-9)
		assert.Equal(t, firstTime, subject.Observations[0].Time)
	})

	t.Run("deterministic across repeated runs", func(t *testing.T) {
		first, _, err := analyzer.AnalyzeSubject(ctx, testSubject("SUBJ-004"))
		require.NoError(t, err)
		second, _, err := analyzer.AnalyzeSubject(ctx, testSubject("SUBJ-004"))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

// TestAnalyzeSubjectWarnings tests the plausibility warnings on degraded data
func TestAnalyzeSubjectWarnings(t *testing.T) {
	ctx := context.Background()

	t.Run("flat profile reports missing terminal-phase parameters", func(t *testing.T) {
		analyzer := NewAnalyzer(DefaultAnalysisConfig(), nil)
		subject := Subject{
			ID: "FLAT",
			Observations: []Observation{
				obs(0, 50), obs(1, 50), obs(2, 50), obs(4, 50),
			},
			DosingEvents: []DosingEvent{{Time: 0, Dose: 100, Route: RouteIVBolus}},
		}

		result, warnings, err := analyzer.AnalyzeSubject(ctx, subject)
		require.NoError(t, err)
		assert.Nil(t, result.Parameters.LambdaZ)
		assert.Nil(t, result.Parameters.AUCInf)
		assert.Nil(t, result.Parameters.HalfLife)

		joined := ""
		for _, w := range warnings {
			joined += w + "\n"
		}
		assert.Contains(t, joined, "lambda_z")
		assert.Contains(t, joined, "AUC_inf")
		assert.Contains(t, joined, "half-life")
		assert.Contains(t, joined, "clearance")
		assert.Contains(t, joined, "MRT")
	})

	t.Run("very fast elimination reports an unusual half-life", func(t *testing.T) {
		analyzer := NewAnalyzer(DefaultAnalysisConfig(), nil)
		subject := Subject{
			ID: "FAST",
			Observations: []Observation{
				obs(0, 100),
				obs(0.01, 100*math.Exp(-10*0.01)),
				obs(0.02, 100*math.Exp(-10*0.02)),
				obs(0.03, 100*math.Exp(-10*0.03)),
			},
			DosingEvents: []DosingEvent{{Time: 0, Dose: 100, Route: RouteIVBolus}},
		}

		_, warnings, err := analyzer.AnalyzeSubject(ctx, subject)
		require.NoError(t, err)

		found := false
		for _, w := range warnings {
			if strings.Contains(w, "unusual half-life") && strings.Contains(w, "FAST") {
				found = true
			}
		}
		assert.True(t, found, "expected an unusual half-life warning, got %v", warnings)
	})
}
