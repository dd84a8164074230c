package population

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncacli/internal/nca"
)

// TestStratumValue tests demographic resolution and derived bins
func TestStratumValue(t *testing.T) {
	tests := []struct {
		name     string
		subject  nca.Subject
		variable string
		want     string
		wantOK   bool
	}{
		{
			name:     "sex passes through",
			subject:  nca.Subject{Demographics: nca.Demographics{Sex: "F"}},
			variable: "SEX",
			want:     "F",
			wantOK:   true,
		},
		{
			name:     "variable lookup is case-insensitive",
			subject:  nca.Subject{Demographics: nca.Demographics{Sex: "M"}},
			variable: "sex",
			want:     "M",
			wantOK:   true,
		},
		{
			name:     "treatment alias TRT",
			subject:  nca.Subject{Demographics: nca.Demographics{Treatment: "A"}},
			variable: "TRT",
			want:     "A",
			wantOK:   true,
		},
		{
			name:     "missing demographic resolves to nothing",
			subject:  nca.Subject{},
			variable: "RACE",
			wantOK:   false,
		},
		{
			name:     "pediatric age bin",
			subject:  nca.Subject{Demographics: nca.Demographics{Age: fptr(12)}},
			variable: "AGE_GROUP",
			want:     "Pediatric",
			wantOK:   true,
		},
		{
			name:     "adult age bin",
			subject:  nca.Subject{Demographics: nca.Demographics{Age: fptr(40)}},
			variable: "AGE_GROUP",
			want:     "Adult",
			wantOK:   true,
		},
		{
			name:     "elderly age bin",
			subject:  nca.Subject{Demographics: nca.Demographics{Age: fptr(65)}},
			variable: "AGE_GROUP",
			want:     "Elderly",
			wantOK:   true,
		},
		{
			name:     "normal weight bin",
			subject:  nca.Subject{Demographics: nca.Demographics{Weight: fptr(75)}},
			variable: "WEIGHT_GROUP",
			want:     "Normal",
			wantOK:   true,
		},
		{
			name: "medium dose bin",
			subject: nca.Subject{
				DosingEvents: []nca.DosingEvent{{Dose: 250, Route: nca.RouteIVBolus}},
			},
			variable: "DOSE_GROUP",
			want:     "Medium",
			wantOK:   true,
		},
		{
			name:     "zero dose resolves to nothing",
			subject:  nca.Subject{},
			variable: "DOSE_GROUP",
			wantOK:   false,
		},
		{
			name:     "unknown variable resolves to nothing",
			subject:  nca.Subject{Demographics: nca.Demographics{Sex: "F"}},
			variable: "GENOTYPE",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StratumValue(tt.subject, tt.variable)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// TestAnalyzeStratified tests partitioning, the minimum-N rule, and nesting
func TestAnalyzeStratified(t *testing.T) {
	cfg := nca.DefaultAnalysisConfig()
	cfg.Stratification = &nca.StratificationConfig{
		StratifyColumns:    []string{"SEX"},
		MinimumNPerStratum: 2,
	}
	agg, err := NewAggregator(cfg, nil)
	require.NoError(t, err)

	subjects := []nca.Subject{
		studySubject("S001", 0.10, 100, nca.Demographics{Sex: "F"}),
		studySubject("S002", 0.11, 100, nca.Demographics{Sex: "F"}),
		studySubject("S003", 0.12, 100, nca.Demographics{Sex: "M"}),
		studySubject("S004", 0.13, 100, nca.Demographics{Sex: "M"}),
		// A lone value below the minimum stratum size.
		studySubject("S005", 0.14, 100, nca.Demographics{Sex: "U"}),
		// No sex recorded; excluded from every stratum.
		studySubject("S006", 0.15, 100, nca.Demographics{}),
	}

	results, err := agg.AnalyzePopulation(context.Background(), subjects)
	require.NoError(t, err)

	require.Len(t, results.StratifiedResults, 2)

	females, ok := results.StratifiedResults["SEX_F"]
	require.True(t, ok)
	assert.Equal(t, "SEX", females.StratumName)
	assert.Equal(t, "F", females.StratumValue)
	assert.Equal(t, 2, females.NSubjects)
	assert.Len(t, females.IndividualResults, 2)
	assert.NotEmpty(t, females.SummaryStatistics)

	_, undersized := results.StratifiedResults["SEX_U"]
	assert.False(t, undersized, "undersized stratum must be skipped")
}

// TestAnalyzeStratifiedInteractions tests two-way interaction strata
func TestAnalyzeStratifiedInteractions(t *testing.T) {
	cfg := nca.DefaultAnalysisConfig()
	cfg.Stratification = &nca.StratificationConfig{
		StratifyColumns:     []string{"SEX", "TREATMENT"},
		IncludeInteractions: true,
		MinimumNPerStratum:  2,
	}
	agg, err := NewAggregator(cfg, nil)
	require.NoError(t, err)

	subjects := []nca.Subject{
		studySubject("S001", 0.10, 100, nca.Demographics{Sex: "F", Treatment: "A"}),
		studySubject("S002", 0.11, 100, nca.Demographics{Sex: "F", Treatment: "A"}),
		studySubject("S003", 0.12, 100, nca.Demographics{Sex: "M", Treatment: "A"}),
		studySubject("S004", 0.13, 100, nca.Demographics{Sex: "M", Treatment: "A"}),
	}

	results, err := agg.AnalyzePopulation(context.Background(), subjects)
	require.NoError(t, err)

	interaction, ok := results.StratifiedResults["interaction_SEX_TREATMENT_F-A"]
	require.True(t, ok, "expected interaction stratum, have %v", keysOf(results.StratifiedResults))
	assert.Equal(t, 2, interaction.NSubjects)

	// A stratum's nested run must not be stratified again.
	assert.Contains(t, results.StratifiedResults, "SEX_F")
	assert.Contains(t, results.StratifiedResults, "TREATMENT_A")
}

// TestStrataComparisonsWiring tests that statistical tests run for the
// configured strata when requested
func TestStrataComparisonsWiring(t *testing.T) {
	subjects := []nca.Subject{
		studySubject("S001", 0.10, 100, nca.Demographics{Sex: "F"}),
		studySubject("S002", 0.11, 100, nca.Demographics{Sex: "F"}),
		studySubject("S003", 0.30, 100, nca.Demographics{Sex: "M"}),
		studySubject("S004", 0.31, 100, nca.Demographics{Sex: "M"}),
	}

	t.Run("tests requested", func(t *testing.T) {
		cfg := nca.DefaultAnalysisConfig()
		cfg.Stratification = &nca.StratificationConfig{
			StratifyColumns:         []string{"SEX"},
			MinimumNPerStratum:      2,
			PerformStatisticalTests: true,
		}
		agg, err := NewAggregator(cfg, nil)
		require.NoError(t, err)

		results, err := agg.AnalyzePopulation(context.Background(), subjects)
		require.NoError(t, err)

		require.NotEmpty(t, results.StrataComparisons)
		comparison, ok := results.StrataComparisons["SEX_half_life"]
		require.True(t, ok, "expected a half_life comparison for the SEX strata")
		assert.Equal(t, "half_life", comparison.Parameter)
		require.Len(t, comparison.PairwiseComparisons, 1)

		pc := comparison.PairwiseComparisons[0]
		assert.Equal(t, "welch_t_test", pc.TestType)
		assert.Equal(t, 2, pc.N1)
		assert.Equal(t, 2, pc.N2)
		// Elimination differs threefold between the groups.
		assert.Greater(t, pc.Mean1, pc.Mean2)
	})

	t.Run("tests not requested", func(t *testing.T) {
		cfg := nca.DefaultAnalysisConfig()
		cfg.Stratification = &nca.StratificationConfig{
			StratifyColumns:    []string{"SEX"},
			MinimumNPerStratum: 2,
		}
		agg, err := NewAggregator(cfg, nil)
		require.NoError(t, err)

		results, err := agg.AnalyzePopulation(context.Background(), subjects)
		require.NoError(t, err)

		assert.NotEmpty(t, results.StratifiedResults)
		assert.Empty(t, results.StrataComparisons)
	})
}

func keysOf(m map[string]nca.StratifiedResults) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// TestCompareStrata tests the Welch's t-test grid between strata
func TestCompareStrata(t *testing.T) {
	makeStratum := func(value string, clearances ...float64) nca.StratifiedResults {
		results := make([]nca.SubjectResult, 0, len(clearances))
		for _, cl := range clearances {
			v := cl
			results = append(results, nca.SubjectResult{
				Parameters: nca.IndividualParameters{Clearance: &v},
			})
		}
		return nca.StratifiedResults{StratumValue: value, IndividualResults: results}
	}

	t.Run("clearly separated groups are significant", func(t *testing.T) {
		strata := map[string]nca.StratifiedResults{
			"SEX_F": makeStratum("F", 10, 11, 12, 13),
			"SEX_M": makeStratum("M", 20, 21, 22, 23),
		}

		comparison := CompareStrata(strata, "clearance")
		assert.Equal(t, "clearance", comparison.Parameter)
		require.Len(t, comparison.PairwiseComparisons, 1)

		pc := comparison.PairwiseComparisons[0]
		assert.Equal(t, "F", pc.Stratum1Name)
		assert.Equal(t, "M", pc.Stratum2Name)
		assert.Equal(t, 4, pc.N1)
		assert.Equal(t, 4, pc.N2)
		assert.InDelta(t, 11.5, pc.Mean1, 1e-9)
		assert.InDelta(t, 21.5, pc.Mean2, 1e-9)
		assert.Equal(t, "welch_t_test", pc.TestType)
		assert.Less(t, pc.PValue, 0.01)
		assert.True(t, pc.Significant)
		assert.Greater(t, pc.EffectSize, 5.0)
		assert.Less(t, pc.TestStatistic, 0.0)
	})

	t.Run("identical groups are not significant", func(t *testing.T) {
		strata := map[string]nca.StratifiedResults{
			"A": makeStratum("A", 10, 12, 14),
			"B": makeStratum("B", 10, 12, 14),
		}
		comparison := CompareStrata(strata, "clearance")
		require.Len(t, comparison.PairwiseComparisons, 1)
		pc := comparison.PairwiseComparisons[0]
		assert.False(t, pc.Significant)
		assert.InDelta(t, 1.0, pc.PValue, 1e-9)
	})

	t.Run("empty stratum reports insufficient data", func(t *testing.T) {
		strata := map[string]nca.StratifiedResults{
			"A": makeStratum("A", 10, 12, 14),
			"B": makeStratum("B"),
		}
		comparison := CompareStrata(strata, "clearance")
		require.Len(t, comparison.PairwiseComparisons, 1)
		pc := comparison.PairwiseComparisons[0]
		assert.Equal(t, "insufficient_data", pc.TestType)
		assert.Equal(t, 1.0, pc.PValue)
		assert.False(t, pc.Significant)
	})
}
