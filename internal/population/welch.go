package population

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ncacli/internal/nca"
)

// significanceLevel is the two-tailed alpha for stratum comparisons.
const significanceLevel = 0.05

// CompareStrata runs a pairwise Welch's t-test for one parameter across every
// pair of strata. Stratum pairs iterate in sorted key order so the output is
// deterministic.
func CompareStrata(strata map[string]nca.StratifiedResults, parameter string) nca.StrataComparison {
	keys := make([]string, 0, len(strata))
	for key := range strata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	comparisons := make([]nca.PairwiseComparison, 0, len(keys)*(len(keys)-1)/2)
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			comparisons = append(comparisons, compareTwo(strata[keys[i]], strata[keys[j]], parameter))
		}
	}

	return nca.StrataComparison{
		Parameter:           parameter,
		PairwiseComparisons: comparisons,
	}
}

// compareTwo tests one parameter between two strata. Empty value sets yield a
// neutral "insufficient_data" record instead of an error so a sparse stratum
// never aborts the comparison grid.
func compareTwo(s1, s2 nca.StratifiedResults, parameter string) nca.PairwiseComparison {
	values1 := ParameterValues(s1.IndividualResults, parameter)
	values2 := ParameterValues(s2.IndividualResults, parameter)

	comparison := nca.PairwiseComparison{
		Stratum1Name: s1.StratumValue,
		Stratum2Name: s2.StratumValue,
		N1:           len(values1),
		N2:           len(values2),
		PValue:       1.0,
		TestType:     "welch_t_test",
	}

	if len(values1) == 0 || len(values2) == 0 {
		comparison.TestType = "insufficient_data"
		return comparison
	}

	comparison.Mean1 = stat.Mean(values1, nil)
	comparison.Mean2 = stat.Mean(values2, nil)

	tStat, pValue := welchTTest(values1, values2)
	comparison.TestStatistic = tStat
	comparison.PValue = pValue
	comparison.Significant = pValue < significanceLevel

	if pooled := pooledStd(values1, values2); pooled > 0 {
		comparison.EffectSize = math.Abs(comparison.Mean1-comparison.Mean2) / pooled
	}

	return comparison
}

// welchTTest is the unequal-variance two-sample t-test with
// Welch-Satterthwaite degrees of freedom and a two-tailed p-value from the
// Student's t distribution.
func welchTTest(values1, values2 []float64) (tStat, pValue float64) {
	if len(values1) < 2 || len(values2) < 2 {
		return 0, 1
	}

	mean1, mean2 := stat.Mean(values1, nil), stat.Mean(values2, nil)
	var1, var2 := stat.Variance(values1, nil), stat.Variance(values2, nil)
	n1, n2 := float64(len(values1)), float64(len(values2))

	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 {
		return 0, 1
	}
	tStat = (mean1 - mean2) / se

	var df float64
	if var1 > 0 && var2 > 0 {
		num := math.Pow(var1/n1+var2/n2, 2)
		den := math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1)
		df = num / den
	} else {
		df = n1 + n2 - 2
	}
	if df <= 0 {
		return tStat, 1
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue = 2 * dist.Survival(math.Abs(tStat))
	return tStat, pValue
}

// pooledStd is the classic pooled standard deviation used for Cohen's d.
func pooledStd(values1, values2 []float64) float64 {
	if len(values1) < 2 || len(values2) < 2 {
		return 0
	}
	n1, n2 := float64(len(values1)), float64(len(values2))
	var1, var2 := stat.Variance(values1, nil), stat.Variance(values2, nil)
	pooledVariance := ((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2)
	return math.Sqrt(pooledVariance)
}
