package population

import (
	"context"
	"fmt"
	"strings"

	"ncacli/internal/nca"
)

// Derived stratification variables and their bin edges. Numeric covariates
// are binned so stratification can run on continuous demographics.
const (
	pediatricAgeLimit = 18.0
	adultAgeLimit     = 65.0
	lowWeightLimit    = 60.0
	normalWeightLimit = 90.0
	lowDoseLimit      = 100.0
	mediumDoseLimit   = 500.0
)

// analyzeStratified partitions the subjects along each configured variable and
// re-runs the aggregate workflow per stratum. Strata below the configured
// minimum size are skipped with a warning. The nested runs use the
// stratification-free configuration variant so a stratum is never
// re-stratified.
func (a *Aggregator) analyzeStratified(ctx context.Context, subjects []nca.Subject) (map[string]nca.StratifiedResults, error) {
	stratCfg := a.cfg.Stratification
	if stratCfg == nil {
		return map[string]nca.StratifiedResults{}, nil
	}

	nested, err := NewAggregator(a.cfg.WithoutStratification(), a.logger)
	if err != nil {
		return nil, err
	}
	nested.SetConcurrency(a.concurrency)

	stratified := make(map[string]nca.StratifiedResults)

	for _, variable := range stratCfg.StratifyColumns {
		for _, stratum := range createStrata(subjects, variable) {
			if len(stratum.subjects) < stratCfg.MinimumNPerStratum {
				a.logger.WarnContext(ctx, "skipping undersized stratum",
					"variable", variable,
					"value", stratum.value,
					"n", len(stratum.subjects),
					"minimum", stratCfg.MinimumNPerStratum,
				)
				continue
			}
			result, err := nested.analyzeStratum(ctx, stratum.subjects, variable, stratum.value)
			if err != nil {
				return nil, err
			}
			stratified[variable+"_"+stratum.value] = result
		}
	}

	if stratCfg.IncludeInteractions && len(stratCfg.StratifyColumns) >= 2 {
		if err := a.analyzeInteractions(ctx, nested, subjects, stratified); err != nil {
			return nil, err
		}
	}

	return stratified, nil
}

// analyzeInteractions adds every two-way combination of the configured
// variables, applying the same minimum-size rule.
func (a *Aggregator) analyzeInteractions(ctx context.Context, nested *Aggregator, subjects []nca.Subject, out map[string]nca.StratifiedResults) error {
	columns := a.cfg.Stratification.StratifyColumns
	for i := 0; i < len(columns); i++ {
		for j := i + 1; j < len(columns); j++ {
			var1, var2 := columns[i], columns[j]
			for _, stratum := range createInteractionStrata(subjects, var1, var2) {
				if len(stratum.subjects) < a.cfg.Stratification.MinimumNPerStratum {
					continue
				}
				result, err := nested.analyzeStratum(ctx, stratum.subjects, var1+"_"+var2, stratum.value)
				if err != nil {
					return err
				}
				out[fmt.Sprintf("interaction_%s_%s_%s", var1, var2, stratum.value)] = result
			}
		}
	}
	return nil
}

// analyzeStratum runs the aggregate workflow over one stratum's subjects.
func (a *Aggregator) analyzeStratum(ctx context.Context, subjects []nca.Subject, variable, value string) (nca.StratifiedResults, error) {
	a.logger.InfoContext(ctx, "analyzing stratum",
		"variable", variable,
		"value", value,
		"n", len(subjects),
	)

	results, err := a.AnalyzePopulation(ctx, subjects)
	if err != nil {
		return nca.StratifiedResults{}, err
	}

	return nca.StratifiedResults{
		StratumName:       variable,
		StratumValue:      value,
		NSubjects:         len(subjects),
		IndividualResults: results.IndividualResults,
		SummaryStatistics: results.SummaryStatistics,
		MethodComparison:  results.MethodComparison,
	}, nil
}

// compareConfiguredStrata runs the pairwise parameter tests within each
// configured variable's strata, keyed by variable and parameter. Interaction
// strata are excluded: their members already appear in the one-way grids.
func (a *Aggregator) compareConfiguredStrata(stratified map[string]nca.StratifiedResults) map[string]nca.StrataComparison {
	comparisons := make(map[string]nca.StrataComparison)
	for _, variable := range a.cfg.Stratification.StratifyColumns {
		group := make(map[string]nca.StratifiedResults)
		for key, s := range stratified {
			if s.StratumName == variable {
				group[key] = s
			}
		}
		if len(group) < 2 {
			continue
		}
		for _, parameter := range nca.ParameterNames {
			comparison := CompareStrata(group, parameter)
			if len(comparison.PairwiseComparisons) == 0 {
				continue
			}
			comparisons[variable+"_"+parameter] = comparison
		}
	}
	return comparisons
}

// stratum is one partition of the population under a single variable.
type stratum struct {
	value    string
	subjects []nca.Subject
}

// createStrata partitions subjects by a stratification variable, preserving
// first-seen value order. Subjects without a resolvable value are excluded.
func createStrata(subjects []nca.Subject, variable string) []stratum {
	var order []string
	byValue := make(map[string][]nca.Subject)

	for _, subject := range subjects {
		value, ok := StratumValue(subject, variable)
		if !ok {
			continue
		}
		if _, seen := byValue[value]; !seen {
			order = append(order, value)
		}
		byValue[value] = append(byValue[value], subject)
	}

	strata := make([]stratum, 0, len(order))
	for _, value := range order {
		strata = append(strata, stratum{value: value, subjects: byValue[value]})
	}
	return strata
}

func createInteractionStrata(subjects []nca.Subject, var1, var2 string) []stratum {
	var order []string
	byValue := make(map[string][]nca.Subject)

	for _, subject := range subjects {
		v1, ok1 := StratumValue(subject, var1)
		v2, ok2 := StratumValue(subject, var2)
		if !ok1 || !ok2 {
			continue
		}
		key := v1 + "-" + v2
		if _, seen := byValue[key]; !seen {
			order = append(order, key)
		}
		byValue[key] = append(byValue[key], subject)
	}

	strata := make([]stratum, 0, len(order))
	for _, key := range order {
		strata = append(strata, stratum{value: key, subjects: byValue[key]})
	}
	return strata
}

// StratumValue resolves a subject's value for a stratification variable.
// Direct demographics pass through; AGE_GROUP, WEIGHT_GROUP and DOSE_GROUP
// are derived bins. ok is false when the underlying demographic is absent or
// the variable is unknown.
func StratumValue(subject nca.Subject, variable string) (string, bool) {
	d := subject.Demographics
	switch strings.ToUpper(variable) {
	case "SEX":
		return nonEmpty(d.Sex)
	case "RACE":
		return nonEmpty(d.Race)
	case "TREATMENT", "TRT":
		return nonEmpty(d.Treatment)
	case "PERIOD":
		if d.Period == nil {
			return "", false
		}
		return fmt.Sprintf("%d", *d.Period), true
	case "SEQUENCE", "SEQ":
		return nonEmpty(d.Sequence)
	case "FORMULATION", "FORM":
		return nonEmpty(d.Formulation)
	case "AGE_GROUP":
		if d.Age == nil {
			return "", false
		}
		switch {
		case *d.Age < pediatricAgeLimit:
			return "Pediatric", true
		case *d.Age < adultAgeLimit:
			return "Adult", true
		default:
			return "Elderly", true
		}
	case "WEIGHT_GROUP":
		if d.Weight == nil {
			return "", false
		}
		switch {
		case *d.Weight < lowWeightLimit:
			return "Low", true
		case *d.Weight < normalWeightLimit:
			return "Normal", true
		default:
			return "High", true
		}
	case "DOSE_GROUP":
		dose := subject.TotalDose()
		if dose <= 0 {
			return "", false
		}
		switch {
		case dose < lowDoseLimit:
			return "Low", true
		case dose < mediumDoseLimit:
			return "Medium", true
		default:
			return "High", true
		}
	default:
		return "", false
	}
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}
