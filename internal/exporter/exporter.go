package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"ncacli/internal/nca"
)

// naValue marks a parameter whose preconditions did not hold.
const naValue = "NA"

// Exporter writes a population run's full report set into one output
// directory: per-section CSVs, the failed-subject log, a JSON dump of the
// complete results, a plain-text report and a combined Excel workbook.
type Exporter struct {
	outDir string
	logger *slog.Logger
}

// NewExporter creates an exporter rooted at outDir. A nil logger falls back
// to slog.Default().
func NewExporter(outDir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{outDir: outDir, logger: logger}
}

// SaveResults writes every report artifact. The output directory is created
// if needed; existing files are overwritten.
func (e *Exporter) SaveResults(ctx context.Context, results nca.PopulationResults, cfg nca.AnalysisConfig) error {
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	e.logger.InfoContext(ctx, "writing analysis reports",
		"output_dir", e.outDir,
		"n_subjects", len(results.IndividualResults),
		"n_failed", len(results.FailedSubjects),
	)

	steps := []struct {
		name string
		run  func() error
	}{
		{"individual results", func() error { return e.writeIndividualResults(results.IndividualResults) }},
		{"summary statistics", func() error { return e.writeSummaryStatistics(results.SummaryStatistics) }},
		{"failed subjects", func() error { return e.writeFailedSubjects(results.FailedSubjects) }},
		{"method comparison", func() error { return e.writeMethodComparison(results.MethodComparison) }},
		{"stratified analysis", func() error { return e.writeStratifiedResults(results.StratifiedResults) }},
		{"strata comparisons", func() error { return e.writeStrataComparisons(results.StrataComparisons) }},
		{"covariate analysis", func() error { return e.writeCovariateAnalysis(results.CovariateAnalysis) }},
		{"complete results", func() error { return e.writeJSON(results) }},
		{"analysis report", func() error { return e.writeReport(results, cfg) }},
		{"workbook", func() error { return e.writeWorkbook(results) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("write %s: %w", step.name, err)
		}
	}

	e.logger.InfoContext(ctx, "analysis reports written", "output_dir", e.outDir)
	return nil
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.outDir, name)
}

// writeJSON dumps the complete results for downstream tooling.
func (e *Exporter) writeJSON(results nca.PopulationResults) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.path("complete_results.json"), data, 0o644)
}

func formatOpt(v *float64) string {
	if v == nil {
		return naValue
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatFixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatOptFixed(v *float64, decimals int) string {
	if v == nil {
		return naValue
	}
	return formatFixed(*v, decimals)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
