package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"ncacli/internal/nca"
)

// ParseExcelFile reads a NONMEM-style dataset from an Excel workbook. The
// data sheet is located by its header row: the first sheet whose first row
// carries both ID and TIME columns wins.
func ParseExcelFile(path string) ([]nca.Subject, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := findDataSheet(f)
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func findDataSheet(f *excelize.File) ([][]string, error) {
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		header := strings.ToUpper(strings.Join(rows[0], " "))
		if strings.Contains(header, "ID") && strings.Contains(header, "TIME") {
			return rows, nil
		}
	}
	return nil, parseErrorf(0, "no sheet with ID and TIME columns found")
}

// ParseFile dispatches on the file extension: .xlsx workbooks go through
// excelize, everything else is treated as CSV.
func ParseFile(path string) ([]nca.Subject, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return ParseExcelFile(path)
	}
	return ParseCSVFile(path)
}
