package exporter

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"ncacli/internal/nca"
)

// writeWorkbook writes the combined Excel workbook with one sheet per report
// section.
func (e *Exporter) writeWorkbook(results nca.PopulationResults) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, "Individual Results", individualHeader, individualRecords(results.IndividualResults)); err != nil {
		return err
	}
	if err := writeSheet(f, "Summary Statistics", summarySheetHeader, summaryRecords(results.SummaryStatistics)); err != nil {
		return err
	}
	if err := writeSheet(f, "Method Comparison", []string{"METHOD", "MEAN_AUC"}, methodRecords(results.MethodComparison)); err != nil {
		return err
	}

	// The default sheet excelize creates is replaced by the first section.
	f.DeleteSheet("Sheet1")
	index, err := f.GetSheetIndex("Individual Results")
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	return f.SaveAs(e.path("nca_results.xlsx"))
}

var summarySheetHeader = []string{
	"PARAMETER", "N", "MEAN", "STD", "CV_PERCENT", "MEDIAN",
	"Q25", "Q75", "MIN", "MAX", "GEO_MEAN", "GEO_CV_PERCENT",
}

func writeSheet(f *excelize.File, name string, header []string, records [][]string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	rows := append([][]string{header}, records...)
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func individualRecords(results []nca.SubjectResult) [][]string {
	records := make([][]string, 0, len(results))
	for _, result := range results {
		records = append(records, individualRecord(result))
	}
	return records
}

func summaryRecords(summary map[string]nca.ParameterStats) [][]string {
	records := make([][]string, 0, len(summary))
	for _, param := range sortedKeys(summary) {
		stats := summary[param]
		records = append(records, []string{
			param,
			strconv.Itoa(stats.N),
			formatFixed(stats.Mean, 6),
			formatFixed(stats.Std, 6),
			formatFixed(stats.CVPercent, 2),
			formatFixed(stats.Median, 6),
			formatFixed(stats.Q25, 6),
			formatFixed(stats.Q75, 6),
			formatFixed(stats.Min, 6),
			formatFixed(stats.Max, 6),
			formatOptFixed(stats.GeometricMean, 6),
			formatOptFixed(stats.GeometricCVPct, 2),
		})
	}
	return records
}

func methodRecords(comparison nca.MethodComparison) [][]string {
	records := make([][]string, 0, len(comparison.AUCMethods))
	for _, method := range sortedKeys(comparison.AUCMethods) {
		records = append(records, []string{method, formatFixed(comparison.AUCMethods[method], 6)})
	}
	return records
}
