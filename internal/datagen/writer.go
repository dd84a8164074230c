package datagen

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"ncacli/internal/nca"
)

var datasetHeader = []string{
	"ID", "TIME", "DV", "AMT", "EVID", "RATE", "BLQ", "LLOQ",
	"AGE", "WT", "HT", "SEX", "RACE", "TRT", "STDAY", "PERIOD", "SEQ", "FORM",
}

// WriteCSV writes subjects as a NONMEM-style dataset readable by the dataset
// parser: one dosing row per event, then one row per observation, with the
// demographics repeated on every row.
func WriteCSV(path string, subjects []nca.Subject) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(datasetHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, subject := range subjects {
		for _, event := range subject.DosingEvents {
			record := append([]string{
				subject.ID,
				formatFloat(event.Time),
				"0",
				formatFloat(event.Dose),
				"1",
				formatFloat(dosingRate(event)),
				"0",
				formatFloat(defaultLLOQ),
			}, demographicFields(subject.Demographics)...)
			if err := w.Write(record); err != nil {
				return fmt.Errorf("write dosing row: %w", err)
			}
		}
		for _, obs := range subject.Observations {
			blq := "0"
			if obs.BLQ {
				blq = "1"
			}
			lloq := defaultLLOQ
			if obs.LLOQ != nil {
				lloq = *obs.LLOQ
			}
			record := append([]string{
				subject.ID,
				formatFloat(obs.Time),
				formatFloat(obs.Concentration),
				"0",
				"0",
				"0",
				blq,
				formatFloat(lloq),
			}, demographicFields(subject.Demographics)...)
			if err := w.Write(record); err != nil {
				return fmt.Errorf("write observation row: %w", err)
			}
		}
	}

	w.Flush()
	return w.Error()
}

// dosingRate encodes the route back into the NONMEM RATE convention.
func dosingRate(event nca.DosingEvent) float64 {
	switch event.Route {
	case nca.RouteIVInfusion:
		if event.InfusionDuration != nil && *event.InfusionDuration > 0 {
			return event.Dose / *event.InfusionDuration
		}
		return event.Dose
	case nca.RouteOral:
		return -2
	default:
		return -1
	}
}

func demographicFields(d nca.Demographics) []string {
	return []string{
		formatOptFloat(d.Age),
		formatOptFloat(d.Weight),
		formatOptFloat(d.Height),
		d.Sex,
		d.Race,
		d.Treatment,
		formatOptInt(d.StudyDay),
		formatOptInt(d.Period),
		d.Sequence,
		d.Formulation,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
