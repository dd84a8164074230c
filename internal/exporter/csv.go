package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ncacli/internal/nca"
)

var individualHeader = []string{
	"SUBJECT_ID", "AUC_LAST", "AUC_INF", "AUC_INF_PRED", "AUC_EXTRAP_PERCENT",
	"AUMC_LAST", "AUMC_INF", "CMAX", "TMAX", "TLAST", "CLAST",
	"HALF_LIFE", "LAMBDA_Z", "LAMBDA_Z_R2", "CLEARANCE", "VSS", "VZ", "MRT",
}

// writeCSVFile writes one header plus records to a file under the output
// directory.
func (e *Exporter) writeCSVFile(name string, header []string, records [][]string) error {
	f, err := os.Create(e.path(name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func individualRecord(result nca.SubjectResult) []string {
	p := result.Parameters
	return []string{
		result.SubjectID,
		formatOpt(p.AUCLast),
		formatOpt(p.AUCInf),
		formatOpt(p.AUCInfPred),
		formatOpt(p.AUCPercentExtrap),
		formatOpt(p.AUMCLast),
		formatOpt(p.AUMCInf),
		formatOpt(p.Cmax),
		formatOpt(p.Tmax),
		formatOpt(p.Tlast),
		formatOpt(p.Clast),
		formatOpt(p.HalfLife),
		formatOpt(p.LambdaZ),
		formatOpt(p.LambdaZRSquared),
		formatOpt(p.Clearance),
		formatOpt(p.VolumeSteadyState),
		formatOpt(p.VolumeTerminal),
		formatOpt(p.MRT),
	}
}

func (e *Exporter) writeIndividualResults(results []nca.SubjectResult) error {
	return e.writeCSVFile("individual_results.csv", individualHeader, individualRecords(results))
}

func (e *Exporter) writeSummaryStatistics(summary map[string]nca.ParameterStats) error {
	return e.writeCSVFile("summary_statistics.csv", summarySheetHeader, summaryRecords(summary))
}

func (e *Exporter) writeMethodComparison(comparison nca.MethodComparison) error {
	if err := e.writeCSVFile("method_comparison.csv", []string{"METHOD", "MEAN_AUC"}, methodRecords(comparison)); err != nil {
		return err
	}

	methods := sortedKeys(comparison.CorrelationMatrix)
	corrHeader := append([]string{"METHOD"}, methods...)
	corrRecords := make([][]string, 0, len(methods))
	for _, m1 := range methods {
		record := []string{m1}
		for _, m2 := range methods {
			record = append(record, formatFixed(comparison.CorrelationMatrix[m1][m2], 4))
		}
		corrRecords = append(corrRecords, record)
	}
	if err := e.writeCSVFile("method_correlations.csv", corrHeader, corrRecords); err != nil {
		return err
	}

	biasHeader := []string{"METHOD", "MEAN_DIFFERENCE", "MEAN_PERCENT_DIFFERENCE", "LOA_LOWER", "LOA_UPPER"}
	biasRecords := make([][]string, 0, len(comparison.BiasAnalysis))
	for _, method := range sortedKeys(comparison.BiasAnalysis) {
		bias := comparison.BiasAnalysis[method]
		biasRecords = append(biasRecords, []string{
			method,
			formatFixed(bias.MeanDifference, 6),
			formatFixed(bias.MeanPercentDifference, 2),
			formatFixed(bias.LimitsOfAgreement[0], 6),
			formatFixed(bias.LimitsOfAgreement[1], 6),
		})
	}
	return e.writeCSVFile("method_bias.csv", biasHeader, biasRecords)
}

func (e *Exporter) writeStratifiedResults(stratified map[string]nca.StratifiedResults) error {
	if len(stratified) == 0 {
		return nil
	}

	header := []string{
		"STRATUM", "STRATUM_VALUE", "N", "PARAMETER",
		"MEAN", "STD", "CV_PERCENT", "MEDIAN", "GEO_MEAN", "GEO_CV_PERCENT",
	}
	var records [][]string
	for _, key := range sortedKeys(stratified) {
		s := stratified[key]
		for _, param := range sortedKeys(s.SummaryStatistics) {
			stats := s.SummaryStatistics[param]
			records = append(records, []string{
				s.StratumName,
				s.StratumValue,
				strconv.Itoa(s.NSubjects),
				param,
				formatFixed(stats.Mean, 6),
				formatFixed(stats.Std, 6),
				formatFixed(stats.CVPercent, 2),
				formatFixed(stats.Median, 6),
				formatOptFixed(stats.GeometricMean, 6),
				formatOptFixed(stats.GeometricCVPct, 2),
			})
		}
	}
	if err := e.writeCSVFile("stratified_analysis.csv", header, records); err != nil {
		return err
	}

	for _, key := range sortedKeys(stratified) {
		s := stratified[key]
		stratumRecords := make([][]string, 0, len(s.IndividualResults))
		for _, result := range s.IndividualResults {
			stratumRecords = append(stratumRecords, individualRecord(result))
		}
		if err := e.writeCSVFile("stratum_"+key+".csv", individualHeader, stratumRecords); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeStrataComparisons(comparisons map[string]nca.StrataComparison) error {
	if len(comparisons) == 0 {
		return nil
	}

	header := []string{
		"VARIABLE", "PARAMETER", "STRATUM_1", "STRATUM_2", "N1", "N2", "MEAN_1", "MEAN_2",
		"T_STATISTIC", "P_VALUE", "TEST_TYPE", "SIGNIFICANT", "EFFECT_SIZE",
	}
	var records [][]string
	for _, key := range sortedKeys(comparisons) {
		comparison := comparisons[key]
		// Keys are <variable>_<parameter>.
		variable := strings.TrimSuffix(key, "_"+comparison.Parameter)
		for _, pc := range comparison.PairwiseComparisons {
			significant := "No"
			if pc.Significant {
				significant = "Yes"
			}
			records = append(records, []string{
				variable,
				comparison.Parameter,
				pc.Stratum1Name,
				pc.Stratum2Name,
				strconv.Itoa(pc.N1),
				strconv.Itoa(pc.N2),
				formatFixed(pc.Mean1, 6),
				formatFixed(pc.Mean2, 6),
				formatFixed(pc.TestStatistic, 4),
				formatFixed(pc.PValue, 4),
				pc.TestType,
				significant,
				formatFixed(pc.EffectSize, 4),
			})
		}
	}
	return e.writeCSVFile("strata_comparisons.csv", header, records)
}

func (e *Exporter) writeCovariateAnalysis(analysis nca.CovariateAnalysis) error {
	corrHeader := []string{"COVARIATE", "PARAMETER", "CORRELATION", "P_VALUE", "SIGNIFICANCE"}
	var corrRecords [][]string
	for _, covariate := range sortedKeys(analysis.Correlations) {
		correlation := analysis.Correlations[covariate]
		for _, param := range sortedKeys(correlation.ParameterCorrelations) {
			pValue := correlation.PValues[param]
			significance := "No"
			if pValue < 0.05 {
				significance = "Yes"
			}
			corrRecords = append(corrRecords, []string{
				covariate,
				param,
				formatFixed(correlation.ParameterCorrelations[param], 4),
				formatFixed(pValue, 4),
				significance,
			})
		}
	}
	if err := e.writeCSVFile("covariate_correlations.csv", corrHeader, corrRecords); err != nil {
		return err
	}

	regHeader := []string{"PARAMETER", "COVARIATE", "SLOPE", "INTERCEPT", "R_SQUARED", "P_VALUE", "CI_LOWER", "CI_UPPER"}
	var regRecords [][]string
	for _, key := range sortedKeys(analysis.RegressionAnalysis) {
		r := analysis.RegressionAnalysis[key]
		regRecords = append(regRecords, []string{
			r.Parameter,
			r.Covariate,
			formatFixed(r.Slope, 6),
			formatFixed(r.Intercept, 6),
			formatFixed(r.RSquared, 4),
			formatFixed(r.PValue, 4),
			formatFixed(r.ConfidenceInterval[0], 6),
			formatFixed(r.ConfidenceInterval[1], 6),
		})
	}
	if err := e.writeCSVFile("regression_analysis.csv", regHeader, regRecords); err != nil {
		return err
	}

	if analysis.DoseNormalizedAnalysis == nil {
		return nil
	}
	dn := analysis.DoseNormalizedAnalysis
	dnHeader := []string{"TREATMENT", "PARAMETER", "N", "MEAN", "STD", "CV_PERCENT", "LINEARITY_ASSESSMENT"}
	var dnRecords [][]string
	for _, treatment := range sortedKeys(dn.DoseNormalizedAUC) {
		stats := dn.DoseNormalizedAUC[treatment]
		linearity := naValue
		if assessment, ok := dn.DoseLinearityAssessment[treatment]; ok {
			linearity = assessment.LinearityConclusion
		}
		dnRecords = append(dnRecords, []string{
			treatment, "AUC_DN",
			strconv.Itoa(stats.N),
			formatFixed(stats.Mean, 6),
			formatFixed(stats.Std, 6),
			formatFixed(stats.CVPercent, 2),
			linearity,
		})
	}
	for _, treatment := range sortedKeys(dn.DoseNormalizedCmax) {
		stats := dn.DoseNormalizedCmax[treatment]
		dnRecords = append(dnRecords, []string{
			treatment, "CMAX_DN",
			strconv.Itoa(stats.N),
			formatFixed(stats.Mean, 6),
			formatFixed(stats.Std, 6),
			formatFixed(stats.CVPercent, 2),
			naValue,
		})
	}
	return e.writeCSVFile("dose_normalized_analysis.csv", dnHeader, dnRecords)
}
