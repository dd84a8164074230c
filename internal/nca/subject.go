package nca

import (
	"context"
	"fmt"
	"log/slog"
)

// MinQuantifiableForAnalysis is the subject-level gate: a profile with fewer
// positive non-BLQ concentrations fails outright.
const MinQuantifiableForAnalysis = 3

// Plausibility bounds for derived parameters, in the configured time units.
const (
	maxAcceptableExtrapPercent = 20.0
	minAcceptableRSquared      = 0.8
	minPlausibleHalfLife       = 0.1
	maxPlausibleHalfLife       = 1000.0
)

// Analyzer performs the per-subject NCA workflow for one immutable
// configuration.
type Analyzer struct {
	cfg    AnalysisConfig
	logger *slog.Logger
}

// NewAnalyzer creates a subject analyzer. A nil logger falls back to
// slog.Default().
func NewAnalyzer(cfg AnalysisConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() AnalysisConfig {
	return a.cfg
}

// AnalyzeSubject runs the full single-subject workflow: sort, gate on
// quantifiable points, derive the primary parameter set over the configured
// method list, then recompute once per method for comparison. The subject is
// read-only; warnings report degraded but usable results.
func (a *Analyzer) AnalyzeSubject(ctx context.Context, subject Subject) (SubjectResult, []string, error) {
	if len(subject.Observations) == 0 {
		return SubjectResult{}, nil, insufficientDataf("no observations available for analysis")
	}

	sorted := subject.SortedObservations()

	if n := subject.QuantifiableCount(); n < MinQuantifiableForAnalysis {
		return SubjectResult{}, nil, insufficientDataf(
			"subject %s has only %d quantifiable concentrations (minimum %d required)",
			subject.ID, n, MinQuantifiableForAnalysis)
	}

	primary, err := a.computeParameters(ctx, sorted, subject, a.cfg.AUCMethods)
	if err != nil {
		return SubjectResult{}, nil, err
	}

	comparisons := make(map[string]IndividualParameters, len(a.cfg.AUCMethods))
	for _, method := range a.cfg.AUCMethods {
		params, err := a.computeParameters(ctx, sorted, subject, []AUCMethod{method})
		if err != nil {
			a.logger.DebugContext(ctx, "method comparison entry skipped",
				"subject_id", subject.ID,
				"method", method.String(),
				"error", err,
			)
			continue
		}
		comparisons[method.String()] = params
	}

	result := SubjectResult{
		SubjectID:         subject.ID,
		Parameters:        primary,
		MethodComparisons: comparisons,
	}
	return result, collectWarnings(result), nil
}

// computeParameters derives one IndividualParameters bundle using only the
// given methods. Per-parameter precondition failures leave the field nil;
// only a shortage of usable points fails the whole computation.
func (a *Analyzer) computeParameters(ctx context.Context, sorted []Observation, subject Subject, methods []AUCMethod) (IndividualParameters, error) {
	var params IndividualParameters

	cmax, tmax, err := CmaxTmax(sorted)
	if err != nil {
		return params, err
	}
	params.Cmax, params.Tmax = &cmax, &tmax

	tlast, clast, ok := TlastClast(sorted)
	if !ok {
		return params, insufficientDataf("no quantifiable concentrations found for subject %s", subject.ID)
	}
	params.Tlast, params.Clast = &tlast, &clast

	filtered := FilterBLQ(sorted, a.cfg.BLQ)

	aucByMethod, err := IntegrateAll(filtered, methods)
	if err != nil {
		return params, err
	}
	aucLast := selectAUCLast(aucByMethod, methods)
	params.AUCLast = &aucLast

	aumcLast, err := MomentIntegrate(filtered)
	if err != nil {
		return params, err
	}
	params.AUMCLast = &aumcLast

	fit, err := EstimateLambdaZ(sorted, a.cfg.LambdaZ)
	if err != nil {
		a.logger.DebugContext(ctx, "terminal phase estimation failed",
			"subject_id", subject.ID,
			"error", err,
		)
	} else if fit.LambdaZ > 0 {
		params.LambdaZ = &fit.LambdaZ
		if fit.RSquared > 0 {
			params.LambdaZRSquared = &fit.RSquared
		}
	}

	if params.LambdaZ != nil {
		if aucInf, err := AUCInf(aucLast, clast, *params.LambdaZ); err == nil {
			params.AUCInf, params.AUCInfPred = &aucInf, &aucInf
		}
		if aumcInf, err := AUMCInf(aumcLast, tlast, clast, *params.LambdaZ); err == nil {
			params.AUMCInf = &aumcInf
		}
		if halfLife, err := HalfLife(*params.LambdaZ); err == nil {
			params.HalfLife = &halfLife
		}
	}

	if params.AUCInf != nil {
		if extrap, err := PercentExtrapolated(aucLast, *params.AUCInf); err == nil {
			params.AUCPercentExtrap = &extrap
		}
	}

	if params.AUMCInf != nil && params.AUCInf != nil {
		if mrt, err := MRT(*params.AUMCInf, *params.AUCInf); err == nil {
			params.MRT = &mrt
		}
	}

	a.deriveClearanceAndVolumes(subject, &params)
	return params, nil
}

// deriveClearanceAndVolumes fills CL, Vss and Vz when their preconditions
// hold. Oral subjects get apparent clearance (CL/F when bioavailability is
// unknown).
func (a *Analyzer) deriveClearanceAndVolumes(subject Subject, params *IndividualParameters) {
	if params.AUCInf == nil {
		return
	}
	dose := subject.TotalDose()

	var clearance float64
	var err error
	if primaryRoute(subject) == RouteOral {
		clearance, err = ClearanceOral(dose, *params.AUCInf, params.Bioavailability)
	} else {
		clearance, err = ClearanceIV(dose, *params.AUCInf)
	}
	if err != nil {
		return
	}
	params.Clearance = &clearance

	if params.MRT != nil {
		if vss, err := Vss(clearance, *params.MRT); err == nil {
			params.VolumeSteadyState = &vss
		}
	}
	if params.LambdaZ != nil {
		if vz, err := Vz(clearance, *params.LambdaZ); err == nil {
			params.VolumeTerminal = &vz
		}
	}
}

// selectAUCLast picks the primary AUC value: linear trapezoidal when it was
// computed, otherwise the first configured method's value.
func selectAUCLast(aucByMethod map[string]float64, methods []AUCMethod) float64 {
	if v, ok := aucByMethod[LinearTrapezoidal.String()]; ok {
		return v
	}
	for _, method := range methods {
		if v, ok := aucByMethod[method.String()]; ok {
			return v
		}
	}
	return 0
}

func primaryRoute(subject Subject) Route {
	if len(subject.DosingEvents) == 0 {
		return RouteIVBolus
	}
	return subject.DosingEvents[0].Route
}

// collectWarnings runs the plausibility checks over a completed result.
func collectWarnings(result SubjectResult) []string {
	var warnings []string
	p := result.Parameters

	if p.AUCInf == nil {
		warnings = append(warnings, "AUC_inf could not be calculated - insufficient terminal phase data")
	}
	if p.LambdaZ == nil {
		warnings = append(warnings, "lambda_z could not be calculated - poor terminal phase fit")
	}
	if p.HalfLife == nil {
		warnings = append(warnings, "half-life could not be calculated - lambda_z unavailable")
	}
	if p.Clearance == nil {
		warnings = append(warnings, "clearance could not be calculated - AUC_inf unavailable")
	}
	if p.MRT == nil {
		warnings = append(warnings, "MRT could not be calculated - AUMC_inf or AUC_inf unavailable")
	}
	if p.AUCPercentExtrap != nil && *p.AUCPercentExtrap > maxAcceptableExtrapPercent {
		warnings = append(warnings, fmt.Sprintf(
			"high AUC extrapolation (%.1f%%) for subject %s - results may be unreliable",
			*p.AUCPercentExtrap, result.SubjectID))
	}
	if p.LambdaZRSquared != nil && *p.LambdaZRSquared < minAcceptableRSquared {
		warnings = append(warnings, fmt.Sprintf(
			"poor terminal phase fit (R² = %.3f) for subject %s - lambda_z may be unreliable",
			*p.LambdaZRSquared, result.SubjectID))
	}
	if p.HalfLife != nil && (*p.HalfLife < minPlausibleHalfLife || *p.HalfLife > maxPlausibleHalfLife) {
		warnings = append(warnings, fmt.Sprintf(
			"unusual half-life (%.3f) for subject %s",
			*p.HalfLife, result.SubjectID))
	}

	return warnings
}
