package nca

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DescriptiveStats derives ParameterStats for one value set. Quartiles use
// the sorted-index convention floor(n*q) capped at n-1, so small samples
// report observed values rather than interpolated ones. Geometric statistics
// are computed only when every value is strictly positive.
func DescriptiveStats(values []float64) ParameterStats {
	n := len(values)
	if n == 0 {
		return ParameterStats{}
	}

	mean := stat.Mean(values, nil)
	std := 0.0
	if n > 1 {
		std = stat.StdDev(values, nil)
	}
	cvPercent := 0.0
	if mean != 0 {
		cvPercent = std / mean * 100
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	q25 := sorted[min(int(float64(n)*0.25), n-1)]
	q75 := sorted[min(int(float64(n)*0.75), n-1)]

	stats := ParameterStats{
		N:         n,
		Mean:      mean,
		Std:       std,
		CVPercent: cvPercent,
		Median:    median,
		Q25:       q25,
		Q75:       q75,
		Min:       sorted[0],
		Max:       sorted[n-1],
	}

	if allPositive(values) {
		lnValues := make([]float64, n)
		for i, v := range values {
			lnValues[i] = math.Log(v)
		}
		lnStd := 0.0
		if n > 1 {
			lnStd = stat.StdDev(lnValues, nil)
		}
		geoMean := math.Exp(stat.Mean(lnValues, nil))
		geoCV := math.Sqrt(math.Exp(lnStd*lnStd)-1) * 100
		stats.GeometricMean = &geoMean
		stats.GeometricCVPct = &geoCV
	}

	return stats
}

func allPositive(values []float64) bool {
	for _, v := range values {
		if v <= 0 {
			return false
		}
	}
	return true
}
