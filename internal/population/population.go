package population

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"ncacli/internal/covariate"
	"ncacli/internal/nca"
)

// Aggregator runs the population-level NCA workflow: parallel per-subject
// analysis with failure isolation, summary statistics, method comparison, and
// the optional stratified and covariate sections.
type Aggregator struct {
	cfg         nca.AnalysisConfig
	analyzer    *nca.Analyzer
	logger      *slog.Logger
	concurrency int
}

// NewAggregator creates a population aggregator after validating the
// configuration. A nil logger falls back to slog.Default().
func NewAggregator(cfg nca.AnalysisConfig, logger *slog.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:         cfg,
		analyzer:    nca.NewAnalyzer(cfg, logger),
		logger:      logger,
		concurrency: runtime.GOMAXPROCS(0),
	}, nil
}

// SetConcurrency overrides the per-subject worker limit. Values below 1 are
// ignored.
func (a *Aggregator) SetConcurrency(n int) {
	if n >= 1 {
		a.concurrency = n
	}
}

// subjectOutcome is one slot of the scatter/gather fan-out. Exactly one of
// result or failure is set.
type subjectOutcome struct {
	result  *nca.SubjectResult
	failure *nca.FailedSubjectAnalysis
}

// AnalyzePopulation analyzes every subject and assembles the aggregate
// sections. Subject failures are recorded, never propagated: the only error a
// run returns is context cancellation. Output ordering follows input
// ordering regardless of worker scheduling.
func (a *Aggregator) AnalyzePopulation(ctx context.Context, subjects []nca.Subject) (nca.PopulationResults, error) {
	a.logger.InfoContext(ctx, "starting population analysis",
		"n_subjects", len(subjects),
		"auc_methods", len(a.cfg.AUCMethods),
		"blq_policy", a.cfg.BLQ.String(),
	)

	outcomes := make([]subjectOutcome, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range subjects {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = a.analyzeOne(gctx, subjects[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nca.PopulationResults{}, err
	}

	individualResults := make([]nca.SubjectResult, 0, len(subjects))
	failedSubjects := make([]nca.FailedSubjectAnalysis, 0)
	for _, outcome := range outcomes {
		switch {
		case outcome.result != nil:
			individualResults = append(individualResults, *outcome.result)
		case outcome.failure != nil:
			failedSubjects = append(failedSubjects, *outcome.failure)
		}
	}

	a.logger.InfoContext(ctx, "subject analysis complete",
		"succeeded", len(individualResults),
		"failed", len(failedSubjects),
	)

	results := nca.PopulationResults{
		IndividualResults: individualResults,
		FailedSubjects:    failedSubjects,
		SummaryStatistics: SummaryStatistics(individualResults),
		MethodComparison:  CompareMethods(individualResults),
	}

	stratified, err := a.analyzeStratified(ctx, subjects)
	if err != nil {
		return nca.PopulationResults{}, err
	}
	results.StratifiedResults = stratified
	if s := a.cfg.Stratification; s != nil && s.PerformStatisticalTests {
		results.StrataComparisons = a.compareConfiguredStrata(stratified)
	}

	if a.cfg.PerformCovariateAnalysis {
		covAnalyzer := covariate.NewAnalyzer(a.logger)
		results.CovariateAnalysis = covAnalyzer.Analyze(ctx, individualResults, subjects, a.cfg.DoseNormalization)
	} else {
		results.CovariateAnalysis = nca.CovariateAnalysis{
			Correlations:       map[string]nca.CovariateCorrelation{},
			RegressionAnalysis: map[string]nca.RegressionResults{},
		}
	}

	return results, nil
}

// analyzeOne wraps a single subject analysis into an outcome slot.
func (a *Aggregator) analyzeOne(ctx context.Context, subject nca.Subject) subjectOutcome {
	result, warnings, err := a.analyzer.AnalyzeSubject(ctx, subject)
	if err != nil {
		a.logger.WarnContext(ctx, "subject analysis failed",
			"subject_id", subject.ID,
			"error", err,
		)
		return subjectOutcome{failure: &nca.FailedSubjectAnalysis{
			SubjectID:                  subject.ID,
			FailureReason:              err.Error(),
			QuantifiableConcentrations: subject.QuantifiableCount(),
			TotalObservations:          len(subject.Observations),
		}}
	}

	for _, warning := range warnings {
		a.logger.WarnContext(ctx, "subject analysis warning",
			"subject_id", subject.ID,
			"warning", warning,
		)
	}
	return subjectOutcome{result: &result}
}
