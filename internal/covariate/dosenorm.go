package covariate

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"ncacli/internal/nca"
)

// unknownTreatment groups subjects whose treatment demographic is absent.
const unknownTreatment = "Unknown"

// minGroupForDoseAnalysis is the smallest treatment group that enters the
// dose-normalized section.
const minGroupForDoseAnalysis = 3

// Dose-linearity thresholds on the regression of dose-normalized AUC against
// dose. Under linear kinetics the regression is flat.
const (
	linearSlopeLimit     = 0.1
	linearRSquaredLimit  = 0.3
	nonlinearSlopeLimit  = 0.3
	nonlinearRSquaredMin = 0.7
)

// doseNormalizedAnalysis computes per-treatment dose-normalized exposure
// statistics and a dose-linearity classification.
func (a *Analyzer) doseNormalizedAnalysis(ctx context.Context, results []nca.SubjectResult, subjectsByID map[string]nca.Subject, subjects []nca.Subject) nca.DoseNormalizedAnalysis {
	analysis := nca.DoseNormalizedAnalysis{
		DoseNormalizedAUC:       map[string]nca.ParameterStats{},
		DoseNormalizedCmax:      map[string]nca.ParameterStats{},
		DoseLinearityAssessment: map[string]nca.LinearityAssessment{},
	}

	for treatment, groupIDs := range groupByTreatment(subjects) {
		var dnAUC, dnCmax, doses []float64
		groupResults := 0

		for _, r := range results {
			if !groupIDs[r.SubjectID] {
				continue
			}
			groupResults++
			subject := subjectsByID[r.SubjectID]
			dose := subject.TotalDose()
			if dose <= 0 {
				continue
			}
			if auc, ok := r.Parameters.Parameter("auc_inf"); ok {
				dnAUC = append(dnAUC, auc/dose)
				doses = append(doses, dose)
			}
			if cmax, ok := r.Parameters.Parameter("cmax"); ok {
				dnCmax = append(dnCmax, cmax/dose)
			}
		}

		if groupResults < minGroupForDoseAnalysis {
			a.logger.DebugContext(ctx, "treatment group below dose analysis minimum",
				"treatment", treatment,
				"n", groupResults,
			)
			continue
		}

		if len(dnAUC) > 0 {
			analysis.DoseNormalizedAUC[treatment] = nca.DescriptiveStats(dnAUC)
		}
		if len(dnCmax) > 0 {
			analysis.DoseNormalizedCmax[treatment] = nca.DescriptiveStats(dnCmax)
		}
		if len(doses) >= minGroupForDoseAnalysis {
			analysis.DoseLinearityAssessment[treatment] = assessDoseLinearity(doses, dnAUC)
		}
	}

	return analysis
}

// groupByTreatment buckets subject IDs by their treatment demographic.
func groupByTreatment(subjects []nca.Subject) map[string]map[string]bool {
	groups := make(map[string]map[string]bool)
	for _, subject := range subjects {
		treatment := subject.Demographics.Treatment
		if treatment == "" {
			treatment = unknownTreatment
		}
		if groups[treatment] == nil {
			groups[treatment] = make(map[string]bool)
		}
		groups[treatment][subject.ID] = true
	}
	return groups
}

// assessDoseLinearity regresses dose-normalized AUC on dose. A flat,
// uninformative regression indicates dose-proportional exposure; a strong
// trend indicates non-linearity.
func assessDoseLinearity(doses, dnAUC []float64) nca.LinearityAssessment {
	if len(doses) != len(dnAUC) || len(doses) < minGroupForDoseAnalysis {
		return nca.LinearityAssessment{LinearityConclusion: "Insufficient data"}
	}

	meanDose := stat.Mean(doses, nil)
	meanAUC := stat.Mean(dnAUC, nil)

	var sxy, sxx float64
	for i := range doses {
		sxy += (doses[i] - meanDose) * (dnAUC[i] - meanAUC)
		sxx += (doses[i] - meanDose) * (doses[i] - meanDose)
	}

	slope := 0.0
	if sxx != 0 {
		slope = sxy / sxx
	}

	var ssTot, ssRes float64
	for i := range dnAUC {
		ssTot += (dnAUC[i] - meanAUC) * (dnAUC[i] - meanAUC)
		predicted := meanAUC + slope*(doses[i]-meanDose)
		ssRes += (dnAUC[i] - predicted) * (dnAUC[i] - predicted)
	}
	rSquared := 0.0
	if ssTot != 0 {
		rSquared = 1 - ssRes/ssTot
	}

	var conclusion string
	switch {
	case math.Abs(slope) < linearSlopeLimit && rSquared < linearRSquaredLimit:
		conclusion = "Linear pharmacokinetics"
	case math.Abs(slope) > nonlinearSlopeLimit || rSquared > nonlinearRSquaredMin:
		conclusion = "Non-linear pharmacokinetics"
	default:
		conclusion = "Inconclusive"
	}

	return nca.LinearityAssessment{
		Slope:               slope,
		RSquared:            rSquared,
		LinearityConclusion: conclusion,
	}
}
