package population

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"ncacli/internal/nca"
)

// referenceMethod anchors the bias analysis: every other integration scheme
// is compared against the linear trapezoidal AUC.
const referenceMethod = "linear_trapezoidal"

// CompareMethods summarizes cross-method AUC agreement over the population:
// mean AUC per method, the pairwise Pearson correlation matrix, and
// Bland-Altman style bias against the linear trapezoidal reference.
func CompareMethods(results []nca.SubjectResult) nca.MethodComparison {
	comparison := nca.MethodComparison{
		AUCMethods:        map[string]float64{},
		CorrelationMatrix: map[string]map[string]float64{},
		BiasAnalysis:      map[string]nca.BiasAnalysis{},
	}

	byMethod := aucByMethod(results)
	if len(byMethod) == 0 {
		return comparison
	}

	methods := make([]string, 0, len(byMethod))
	for method, values := range byMethod {
		methods = append(methods, method)
		comparison.AUCMethods[method] = stat.Mean(values, nil)
	}
	sort.Strings(methods)

	for _, m1 := range methods {
		row := make(map[string]float64, len(methods))
		for _, m2 := range methods {
			x, y := pairedAUC(results, m1, m2)
			row[m2] = correlation(x, y)
		}
		comparison.CorrelationMatrix[m1] = row
	}

	for _, method := range methods {
		if method == referenceMethod {
			continue
		}
		x, y := pairedAUC(results, method, referenceMethod)
		if len(x) == 0 {
			continue
		}
		comparison.BiasAnalysis[method] = biasAnalysis(x, y)
	}

	return comparison
}

// aucByMethod collects every subject's per-method AUC_last.
func aucByMethod(results []nca.SubjectResult) map[string][]float64 {
	byMethod := make(map[string][]float64)
	for _, r := range results {
		for method, params := range r.MethodComparisons {
			if params.AUCLast != nil {
				byMethod[method] = append(byMethod[method], *params.AUCLast)
			}
		}
	}
	return byMethod
}

// pairedAUC returns aligned AUC_last slices for the subjects that carry both
// methods, in result order.
func pairedAUC(results []nca.SubjectResult, m1, m2 string) (x, y []float64) {
	for _, r := range results {
		p1, ok1 := r.MethodComparisons[m1]
		p2, ok2 := r.MethodComparisons[m2]
		if !ok1 || !ok2 || p1.AUCLast == nil || p2.AUCLast == nil {
			continue
		}
		x = append(x, *p1.AUCLast)
		y = append(y, *p2.AUCLast)
	}
	return x, y
}

// correlation is the Pearson coefficient, with degenerate inputs (short or
// zero-variance series) reported as zero rather than NaN.
func correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// biasAnalysis computes the mean difference, mean percent difference against
// the pairwise average, and 95% limits of agreement (mean ± 1.96·SD).
func biasAnalysis(x, y []float64) nca.BiasAnalysis {
	n := len(x)
	differences := make([]float64, n)
	percentDifferences := make([]float64, n)
	for i := range x {
		differences[i] = x[i] - y[i]
		if avg := (x[i] + y[i]) / 2; avg != 0 {
			percentDifferences[i] = (x[i] - y[i]) / avg * 100
		}
	}

	meanDiff := stat.Mean(differences, nil)
	stdDiff := 0.0
	if n > 1 {
		stdDiff = stat.StdDev(differences, nil)
	}

	return nca.BiasAnalysis{
		MeanDifference:        meanDiff,
		MeanPercentDifference: stat.Mean(percentDifferences, nil),
		LimitsOfAgreement:     [2]float64{meanDiff - 1.96*stdDiff, meanDiff + 1.96*stdDiff},
	}
}
