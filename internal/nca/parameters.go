package nca

import "math"

// CmaxTmax returns the maximum observed concentration and its time. Ties
// break toward the earliest occurrence.
func CmaxTmax(observations []Observation) (cmax, tmax float64, err error) {
	if len(observations) == 0 {
		return 0, 0, insufficientDataf("no observations available")
	}
	cmax, tmax = observations[0].Concentration, observations[0].Time
	for _, obs := range observations[1:] {
		if obs.Concentration > cmax {
			cmax, tmax = obs.Concentration, obs.Time
		}
	}
	return cmax, tmax, nil
}

// TlastClast returns the time and concentration of the last quantifiable
// sample, scanning from the end. ok is false when no positive non-BLQ
// concentration exists.
func TlastClast(observations []Observation) (tlast, clast float64, ok bool) {
	for i := len(observations) - 1; i >= 0; i-- {
		if observations[i].Quantifiable() {
			return observations[i].Time, observations[i].Concentration, true
		}
	}
	return 0, 0, false
}

// HalfLife derives the terminal half-life ln(2)/lambda_z.
func HalfLife(lambdaZ float64) (float64, error) {
	if lambdaZ <= 0 {
		return 0, calculationErrorf("lambda_z must be positive for half-life, got %g", lambdaZ)
	}
	return math.Ln2 / lambdaZ, nil
}

// ClearanceIV derives systemic clearance dose/AUC_inf for intravenous
// administration.
func ClearanceIV(dose, aucInf float64) (float64, error) {
	if aucInf <= 0 {
		return 0, calculationErrorf("AUC_inf must be positive for clearance, got %g", aucInf)
	}
	return dose / aucInf, nil
}

// ClearanceOral derives apparent oral clearance. When bioavailability is
// known and positive the result is CL; otherwise it is CL/F unadjusted.
func ClearanceOral(dose, aucInf float64, bioavailability *float64) (float64, error) {
	clF, err := ClearanceIV(dose, aucInf)
	if err != nil {
		return 0, err
	}
	if bioavailability != nil && *bioavailability > 0 {
		return clF / *bioavailability, nil
	}
	return clF, nil
}

// Vss derives the steady-state volume of distribution clearance × MRT.
func Vss(clearance, mrt float64) (float64, error) {
	if clearance <= 0 || mrt <= 0 {
		return 0, calculationErrorf("clearance and MRT must be positive for Vss, got CL=%g MRT=%g", clearance, mrt)
	}
	return clearance * mrt, nil
}

// Vz derives the terminal-phase volume of distribution clearance/lambda_z.
func Vz(clearance, lambdaZ float64) (float64, error) {
	if clearance <= 0 || lambdaZ <= 0 {
		return 0, calculationErrorf("clearance and lambda_z must be positive for Vz, got CL=%g lambda_z=%g", clearance, lambdaZ)
	}
	return clearance / lambdaZ, nil
}

// MRT derives mean residence time AUMC_inf/AUC_inf.
func MRT(aumcInf, aucInf float64) (float64, error) {
	if aucInf <= 0 {
		return 0, calculationErrorf("AUC_inf must be positive for MRT, got %g", aucInf)
	}
	return aumcInf / aucInf, nil
}

// PercentExtrapolated returns the share of AUC_inf beyond the last
// quantifiable sample, in percent.
func PercentExtrapolated(aucLast, aucInf float64) (float64, error) {
	if aucInf <= 0 {
		return 0, calculationErrorf("AUC_inf must be positive for extrapolation percentage, got %g", aucInf)
	}
	return (aucInf - aucLast) / aucInf * 100, nil
}
