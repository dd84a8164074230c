package exporter

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"ncacli/internal/nca"
)

// writeFailedSubjects writes the failed-subject log. No failures, no file.
func (e *Exporter) writeFailedSubjects(failed []nca.FailedSubjectAnalysis) error {
	if len(failed) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("FAILED SUBJECT ANALYSIS LOG\n")
	b.WriteString("==========================\n\n")
	fmt.Fprintf(&b, "Total failed subjects: %d\n\n", len(failed))

	for _, f := range failed {
		fmt.Fprintf(&b, "Subject ID: %s\n", f.SubjectID)
		fmt.Fprintf(&b, "Failure Reason: %s\n", f.FailureReason)
		fmt.Fprintf(&b, "Quantifiable Concentrations: %d\n", f.QuantifiableConcentrations)
		fmt.Fprintf(&b, "Total Observations: %d\n", f.TotalObservations)
		b.WriteString("---\n")
	}

	return os.WriteFile(e.path("failed_subjects.log"), []byte(b.String()), 0o644)
}

// writeReport writes the human-readable analysis summary.
func (e *Exporter) writeReport(results nca.PopulationResults, cfg nca.AnalysisConfig) error {
	var b strings.Builder
	b.WriteString("PHARMACOKINETICS NON-COMPARTMENTAL ANALYSIS REPORT\n")
	b.WriteString("==================================================\n\n")
	fmt.Fprintf(&b, "Run ID: %s\n", uuid.NewString())
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("Analysis Configuration:\n")
	fmt.Fprintf(&b, "- Time units: %s\n", cfg.TimeUnits)
	fmt.Fprintf(&b, "- Concentration units: %s\n", cfg.ConcentrationUnits)
	fmt.Fprintf(&b, "- BLQ handling: %s\n", cfg.BLQ)
	fmt.Fprintf(&b, "- Lambda_z selection: %s\n", cfg.LambdaZ.Method)
	methods := make([]string, 0, len(cfg.AUCMethods))
	for _, m := range cfg.AUCMethods {
		methods = append(methods, m.String())
	}
	fmt.Fprintf(&b, "- AUC methods: %s\n\n", strings.Join(methods, ", "))

	b.WriteString("Population Summary:\n")
	fmt.Fprintf(&b, "- Total subjects analyzed: %d\n", len(results.IndividualResults))
	if len(results.FailedSubjects) > 0 {
		fmt.Fprintf(&b, "- Failed subjects: %d\n", len(results.FailedSubjects))
	}
	b.WriteString("\n")

	b.WriteString("Key Parameters:\n")
	for _, param := range sortedKeys(results.SummaryStatistics) {
		stats := results.SummaryStatistics[param]
		fmt.Fprintf(&b, "- %s (Arithmetic): %.3f ± %.1f%%\n", param, stats.Mean, stats.CVPercent)
		if stats.GeometricMean != nil && stats.GeometricCVPct != nil {
			fmt.Fprintf(&b, "- %s (Geometric): %.3f ± %.1f%%\n", param, *stats.GeometricMean, *stats.GeometricCVPct)
		}
	}

	b.WriteString("\nMethod Comparison (mean AUC_last):\n")
	for _, method := range sortedKeys(results.MethodComparison.AUCMethods) {
		fmt.Fprintf(&b, "- %s: %.3f\n", method, results.MethodComparison.AUCMethods[method])
	}

	return os.WriteFile(e.path("analysis_report.txt"), []byte(b.String()), 0o644)
}
