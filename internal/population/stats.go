package population

import (
	"ncacli/internal/nca"
)

// SummaryStatistics computes descriptive statistics for each reportable
// parameter across the successful subjects. Parameters absent from every
// subject produce no entry.
func SummaryStatistics(results []nca.SubjectResult) map[string]nca.ParameterStats {
	summary := make(map[string]nca.ParameterStats, len(nca.ParameterNames))
	for _, name := range nca.ParameterNames {
		values := ParameterValues(results, name)
		if len(values) == 0 {
			continue
		}
		summary[name] = nca.DescriptiveStats(values)
	}
	return summary
}

// ParameterValues extracts the named parameter from every result that has it,
// preserving result order.
func ParameterValues(results []nca.SubjectResult, name string) []float64 {
	values := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r.Parameters.Parameter(name); ok {
			values = append(values, v)
		}
	}
	return values
}
