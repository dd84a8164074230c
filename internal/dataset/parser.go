package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"ncacli/internal/nca"
)

// parseRows applies the dataset row semantics to pre-split rows: a header
// row naming the columns, then one record per row. EVID 0 rows become
// observations and EVID 1 rows become dosing events; other EVID values
// (reset, additional dose) are skipped. Subjects are returned sorted by ID.
func parseRows(rows [][]string) ([]nca.Subject, error) {
	if len(rows) == 0 {
		return nil, parseErrorf(0, "empty dataset")
	}
	columns := indexColumns(rows[0])
	if _, ok := columns["ID"]; !ok {
		return nil, parseErrorf(1, "missing ID column")
	}
	if _, ok := columns["TIME"]; !ok {
		return nil, parseErrorf(1, "missing TIME column")
	}

	byID := make(map[string]*nca.Subject)
	for i, record := range rows[1:] {
		line := i + 2
		if emptyRow(record) {
			continue
		}
		row := rowView{columns: columns, record: record}
		id := strings.TrimSpace(row.get("ID"))
		if id == "" {
			return nil, parseErrorf(line, "empty subject ID")
		}
		subject, ok := byID[id]
		if !ok {
			subject = &nca.Subject{ID: id}
			byID[id] = subject
		}
		if err := processRow(row, subject, line); err != nil {
			return nil, err
		}
	}

	subjects := make([]nca.Subject, 0, len(byID))
	for _, s := range byID {
		subjects = append(subjects, *s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

func emptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseError reports a malformed dataset row. Line is 1-based and counts the
// header.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset parse error at line %d: %s", e.Line, e.Reason)
	}
	return "dataset parse error: " + e.Reason
}

func parseErrorf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// ParseCSVFile reads a NONMEM-style CSV dataset from disk.
func ParseCSVFile(path string) ([]nca.Subject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads a NONMEM-style dataset: one header row naming the columns,
// then one record per row. EVID 0 rows become observations and EVID 1 rows
// become dosing events; other EVID values (reset, additional dose) are
// skipped. Columns are resolved by header name, not position, and unknown
// columns are ignored. Subjects are returned sorted by ID.
func ParseCSV(r io.Reader) ([]nca.Subject, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return parseRows(rows)
}

// rowView resolves record fields by uppercased header name.
type rowView struct {
	columns map[string]int
	record  []string
}

func (r rowView) get(name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r rowView) float(name string) (float64, bool) {
	s := r.get(name)
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r rowView) int(name string) (int, bool) {
	s := r.get(name)
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r rowView) bool(name string) bool {
	switch strings.ToLower(r.get(name)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	return columns
}

// processRow appends the row's event to the subject and folds in any
// demographics the row carries.
func processRow(row rowView, subject *nca.Subject, line int) error {
	time, ok := row.float("TIME")
	if !ok {
		return parseErrorf(line, "invalid TIME value %q", row.get("TIME"))
	}
	evid, _ := row.int("EVID")

	switch evid {
	case 0:
		dv, ok := row.float("DV")
		if !ok {
			return parseErrorf(line, "invalid DV value %q", row.get("DV"))
		}
		observation := nca.Observation{
			Time:          time,
			Concentration: dv,
			BLQ:           row.bool("BLQ"),
			EVID:          evid,
			DV:            dv,
		}
		if lloq, ok := row.float("LLOQ"); ok {
			observation.LLOQ = &lloq
		}
		subject.Observations = append(subject.Observations, observation)
	case 1:
		dose, ok := row.float("AMT")
		if !ok {
			return parseErrorf(line, "invalid AMT value %q", row.get("AMT"))
		}
		event := nca.DosingEvent{Time: time, Dose: dose, EVID: evid}
		event.Route, event.InfusionDuration = dosingRoute(row, dose)
		subject.DosingEvents = append(subject.DosingEvents, event)
	}

	updateDemographics(row, &subject.Demographics)
	return nil
}

// dosingRoute decodes the NONMEM RATE convention: a positive rate is an
// infusion (duration = dose/rate), -1 marks an IV bolus, -2 marks oral
// dosing. Anything else defaults to IV bolus.
func dosingRoute(row rowView, dose float64) (nca.Route, *float64) {
	rate, ok := row.float("RATE")
	if !ok {
		return nca.RouteIVBolus, nil
	}
	switch {
	case rate > 0:
		duration := dose / rate
		return nca.RouteIVInfusion, &duration
	case rate == -2:
		return nca.RouteOral, nil
	default:
		return nca.RouteIVBolus, nil
	}
}

func updateDemographics(row rowView, d *nca.Demographics) {
	if age, ok := row.float("AGE"); ok {
		d.Age = &age
	}
	if wt, ok := row.float("WT"); ok {
		d.Weight = &wt
	}
	if ht, ok := row.float("HT"); ok {
		d.Height = &ht
	}
	if sex := row.get("SEX"); sex != "" {
		d.Sex = sex
	}
	if race := row.get("RACE"); race != "" {
		d.Race = race
	}
	for _, col := range []string{"TRT", "TREAT", "TREATMENT"} {
		if trt := row.get(col); trt != "" {
			d.Treatment = trt
			break
		}
	}
	if stday, ok := row.int("STDAY"); ok {
		d.StudyDay = &stday
	}
	if period, ok := row.int("PERIOD"); ok {
		d.Period = &period
	}
	for _, col := range []string{"SEQ", "SEQUENCE"} {
		if seq := row.get(col); seq != "" {
			d.Sequence = seq
			break
		}
	}
	for _, col := range []string{"FORM", "FORMULATION"} {
		if form := row.get(col); form != "" {
			d.Formulation = form
			break
		}
	}
}
