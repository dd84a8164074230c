package covariate

import (
	"context"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ncacli/internal/nca"
)

// minPairsForAnalysis is the floor below which no correlation or regression
// is attempted for a covariate/parameter pair.
const minPairsForAnalysis = 3

// covariateNames are the continuous demographics screened against the derived
// parameters.
var covariateNames = []string{"age", "weight", "height"}

// correlationParameters are screened in the correlation section.
var correlationParameters = []string{"auc_inf", "cmax", "clearance", "half_life", "volume_terminal"}

// regressionParameters get a full OLS fit per covariate.
var regressionParameters = []string{"auc_inf", "cmax", "clearance"}

// Analyzer screens continuous demographics against derived parameters and,
// when requested, assesses dose proportionality per treatment group.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a covariate analyzer. A nil logger falls back to
// slog.Default().
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Analyze produces the covariate section of a population run. Results and
// subjects are matched by subject ID, so subjects that failed analysis simply
// contribute no pairs. Degenerate inputs produce empty sections, never
// errors.
func (a *Analyzer) Analyze(ctx context.Context, results []nca.SubjectResult, subjects []nca.Subject, doseNormalization bool) nca.CovariateAnalysis {
	a.logger.InfoContext(ctx, "starting covariate analysis",
		"n_results", len(results),
		"dose_normalization", doseNormalization,
	)

	subjectsByID := make(map[string]nca.Subject, len(subjects))
	for _, s := range subjects {
		subjectsByID[s.ID] = s
	}

	analysis := nca.CovariateAnalysis{
		Correlations:       a.correlations(results, subjectsByID),
		RegressionAnalysis: a.regressions(results, subjectsByID),
	}
	if doseNormalization {
		dn := a.doseNormalizedAnalysis(ctx, results, subjectsByID, subjects)
		analysis.DoseNormalizedAnalysis = &dn
	}
	return analysis
}

// correlations computes Pearson correlations with two-tailed p-values for
// every covariate/parameter pair with enough data.
func (a *Analyzer) correlations(results []nca.SubjectResult, subjectsByID map[string]nca.Subject) map[string]nca.CovariateCorrelation {
	correlations := make(map[string]nca.CovariateCorrelation)

	for _, covariate := range covariateNames {
		parameterCorrelations := make(map[string]float64)
		pValues := make(map[string]float64)

		for _, parameter := range correlationParameters {
			x, y := pairedValues(results, subjectsByID, covariate, parameter)
			if len(x) < minPairsForAnalysis {
				continue
			}
			r := pearson(x, y)
			parameterCorrelations[parameter] = r
			pValues[parameter] = correlationPValue(r, len(x))
		}

		if len(parameterCorrelations) > 0 {
			correlations[covariate] = nca.CovariateCorrelation{
				CovariateName:         covariate,
				ParameterCorrelations: parameterCorrelations,
				PValues:               pValues,
			}
		}
	}

	return correlations
}

// regressions fits an OLS line for each regression parameter against each
// covariate, keyed "<parameter>_<covariate>".
func (a *Analyzer) regressions(results []nca.SubjectResult, subjectsByID map[string]nca.Subject) map[string]nca.RegressionResults {
	regressions := make(map[string]nca.RegressionResults)

	for _, covariate := range covariateNames {
		for _, parameter := range regressionParameters {
			x, y := pairedValues(results, subjectsByID, covariate, parameter)
			if len(x) < minPairsForAnalysis {
				continue
			}
			regression := fitRegression(x, y)
			regression.Parameter = parameter
			regression.Covariate = covariate
			regressions[parameter+"_"+covariate] = regression
		}
	}

	return regressions
}

// pairedValues aligns one covariate with one parameter across the subjects
// that carry both.
func pairedValues(results []nca.SubjectResult, subjectsByID map[string]nca.Subject, covariate, parameter string) (x, y []float64) {
	for _, r := range results {
		subject, ok := subjectsByID[r.SubjectID]
		if !ok {
			continue
		}
		cov := covariateValue(subject, covariate)
		if cov == nil {
			continue
		}
		param, ok := r.Parameters.Parameter(parameter)
		if !ok {
			continue
		}
		x = append(x, *cov)
		y = append(y, param)
	}
	return x, y
}

func covariateValue(subject nca.Subject, covariate string) *float64 {
	switch covariate {
	case "age":
		return subject.Demographics.Age
	case "weight":
		return subject.Demographics.Weight
	case "height":
		return subject.Demographics.Height
	default:
		return nil
	}
}

// pearson is the Pearson coefficient with degenerate inputs reported as zero.
func pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// correlationPValue is the two-tailed p-value of r under the null of zero
// correlation, via the t transform with n-2 degrees of freedom.
func correlationPValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	df := float64(n - 2)
	denom := 1 - r*r
	if denom <= 0 {
		return 0
	}
	tStat := r * math.Sqrt(df/denom)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(tStat))
}

// fitRegression is a simple OLS fit of y on x with a slope p-value from the
// t distribution and a fixed z=1.96 confidence interval on the slope.
func fitRegression(x, y []float64) nca.RegressionResults {
	regression := nca.RegressionResults{PValue: 1}
	if len(x) != len(y) || len(x) < 2 {
		return regression
	}

	n := float64(len(x))
	meanX, meanY := stat.Mean(x, nil), stat.Mean(y, nil)

	var sxy, sxx float64
	for i := range x {
		sxy += (x[i] - meanX) * (y[i] - meanY)
		sxx += (x[i] - meanX) * (x[i] - meanX)
	}
	if sxx == 0 {
		return regression
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssTot, ssRes float64
	for i := range y {
		ssTot += (y[i] - meanY) * (y[i] - meanY)
		predicted := intercept + slope*x[i]
		ssRes += (y[i] - predicted) * (y[i] - predicted)
	}

	regression.Slope = slope
	regression.Intercept = intercept
	if ssTot != 0 {
		regression.RSquared = 1 - ssRes/ssTot
	}

	if n > 2 {
		mse := ssRes / (n - 2)
		if mse > 0 {
			seSlope := math.Sqrt(mse / sxx)
			tStat := slope / seSlope
			dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
			regression.PValue = 2 * dist.Survival(math.Abs(tStat))
			margin := 1.96 * seSlope
			regression.ConfidenceInterval = [2]float64{slope - margin, slope + margin}
		}
	}

	return regression
}
