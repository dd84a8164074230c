package population

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncacli/internal/nca"
)

func fptr(v float64) *float64 { return &v }

// studySubject builds a clean mono-exponential IV profile with the given
// elimination rate and demographics.
func studySubject(id string, lambda, dose float64, demographics nca.Demographics) nca.Subject {
	lloq := 0.1
	times := []float64{0.25, 0.5, 1, 2, 4, 8, 12, 24}
	observations := make([]nca.Observation, 0, len(times))
	for _, tm := range times {
		c := 100 * math.Exp(-lambda*tm)
		observations = append(observations, nca.Observation{
			Time: tm, Concentration: c, LLOQ: &lloq, DV: c,
		})
	}
	return nca.Subject{
		ID:           id,
		Observations: observations,
		DosingEvents: []nca.DosingEvent{{Time: 0, Dose: dose, Route: nca.RouteIVBolus}},
		Demographics: demographics,
	}
}

func sparseSubject(id string) nca.Subject {
	lloq := 0.1
	return nca.Subject{
		ID: id,
		Observations: []nca.Observation{
			{Time: 0, Concentration: 10, LLOQ: &lloq, DV: 10},
			{Time: 1, LLOQ: &lloq, BLQ: true},
			{Time: 2, LLOQ: &lloq, BLQ: true},
		},
	}
}

// TestAnalyzePopulation tests the aggregate workflow with failure isolation
func TestAnalyzePopulation(t *testing.T) {
	agg, err := NewAggregator(nca.DefaultAnalysisConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	subjects := []nca.Subject{
		studySubject("S001", 0.10, 100, nca.Demographics{}),
		sparseSubject("S002"),
		studySubject("S003", 0.12, 100, nca.Demographics{}),
		studySubject("S004", 0.08, 100, nca.Demographics{}),
	}

	results, err := agg.AnalyzePopulation(ctx, subjects)
	require.NoError(t, err)

	t.Run("failures are isolated and recorded", func(t *testing.T) {
		require.Len(t, results.IndividualResults, 3)
		require.Len(t, results.FailedSubjects, 1)
		failed := results.FailedSubjects[0]
		assert.Equal(t, "S002", failed.SubjectID)
		assert.Equal(t, 1, failed.QuantifiableConcentrations)
		assert.Equal(t, 3, failed.TotalObservations)
		assert.NotEmpty(t, failed.FailureReason)
	})

	t.Run("output preserves input order", func(t *testing.T) {
		ids := make([]string, 0, len(results.IndividualResults))
		for _, r := range results.IndividualResults {
			ids = append(ids, r.SubjectID)
		}
		assert.Equal(t, []string{"S001", "S003", "S004"}, ids)
	})

	t.Run("summary statistics cover the reportable parameters", func(t *testing.T) {
		for _, name := range []string{"auc_last", "auc_inf", "cmax", "half_life", "clearance"} {
			stats, ok := results.SummaryStatistics[name]
			require.True(t, ok, "missing stats for %s", name)
			assert.Equal(t, 3, stats.N)
			assert.Greater(t, stats.Mean, 0.0)
		}
	})

	t.Run("method comparison spans all configured methods", func(t *testing.T) {
		assert.Len(t, results.MethodComparison.AUCMethods, 4)
		for method, row := range results.MethodComparison.CorrelationMatrix {
			assert.InDelta(t, 1.0, row[method], 1e-9, "self-correlation for %s", method)
		}
		// Every non-reference method has a bias entry against the reference.
		assert.Len(t, results.MethodComparison.BiasAnalysis, 3)
		_, hasReference := results.MethodComparison.BiasAnalysis[referenceMethod]
		assert.False(t, hasReference)
	})

	t.Run("deterministic across repeated runs", func(t *testing.T) {
		again, err := agg.AnalyzePopulation(ctx, subjects)
		require.NoError(t, err)
		assert.Equal(t, results, again)
	})
}

// TestAnalyzePopulationEmpty tests the degenerate zero-subject run
func TestAnalyzePopulationEmpty(t *testing.T) {
	agg, err := NewAggregator(nca.DefaultAnalysisConfig(), nil)
	require.NoError(t, err)

	results, err := agg.AnalyzePopulation(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results.IndividualResults)
	assert.Empty(t, results.FailedSubjects)
	assert.Empty(t, results.SummaryStatistics)
}

// TestNewAggregatorValidation tests configuration rejection
func TestNewAggregatorValidation(t *testing.T) {
	cfg := nca.DefaultAnalysisConfig()
	cfg.AUCMethods = nil
	_, err := NewAggregator(cfg, nil)
	assert.Error(t, err)
}

// TestCompareMethods tests the correlation matrix and bias analysis directly
func TestCompareMethods(t *testing.T) {
	results := []nca.SubjectResult{
		{
			SubjectID: "S001",
			MethodComparisons: map[string]nca.IndividualParameters{
				"linear_trapezoidal": {AUCLast: fptr(100)},
				"log_trapezoidal":    {AUCLast: fptr(95)},
			},
		},
		{
			SubjectID: "S002",
			MethodComparisons: map[string]nca.IndividualParameters{
				"linear_trapezoidal": {AUCLast: fptr(200)},
				"log_trapezoidal":    {AUCLast: fptr(190)},
			},
		},
		{
			SubjectID: "S003",
			MethodComparisons: map[string]nca.IndividualParameters{
				"linear_trapezoidal": {AUCLast: fptr(300)},
				"log_trapezoidal":    {AUCLast: fptr(285)},
			},
		},
	}

	comparison := CompareMethods(results)

	assert.InDelta(t, 200.0, comparison.AUCMethods["linear_trapezoidal"], 1e-9)
	assert.InDelta(t, 190.0, comparison.AUCMethods["log_trapezoidal"], 1e-9)

	// The two methods are perfectly linearly related here.
	assert.InDelta(t, 1.0, comparison.CorrelationMatrix["log_trapezoidal"]["linear_trapezoidal"], 1e-9)

	bias, ok := comparison.BiasAnalysis["log_trapezoidal"]
	require.True(t, ok)
	assert.InDelta(t, -10.0, bias.MeanDifference, 1e-9)
	assert.Less(t, bias.MeanPercentDifference, 0.0)
	assert.Less(t, bias.LimitsOfAgreement[0], bias.LimitsOfAgreement[1])
}

// TestCompareMethodsEmpty tests the no-results case
func TestCompareMethodsEmpty(t *testing.T) {
	comparison := CompareMethods(nil)
	assert.Empty(t, comparison.AUCMethods)
	assert.Empty(t, comparison.CorrelationMatrix)
	assert.Empty(t, comparison.BiasAnalysis)
}
