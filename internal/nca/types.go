package nca

import (
	"fmt"
	"sort"
)

// AUCMethod identifies a trapezoidal integration scheme.
type AUCMethod int

const (
	// LinearTrapezoidal applies the linear rule to every interval.
	LinearTrapezoidal AUCMethod = iota
	// LogTrapezoidal applies the logarithmic rule wherever both
	// concentrations are positive, falling back to linear otherwise.
	LogTrapezoidal
	// LinearLogTrapezoidal uses the log rule on declining intervals and the
	// linear rule everywhere else (Phoenix WinNonlin style).
	LinearLogTrapezoidal
	// LinearUpLogDown uses the linear rule on rising or flat intervals and
	// the log rule on declining ones.
	LinearUpLogDown
)

// String returns the stable identifier used as a map key in results and
// reports. Do not derive keys from type names; serialized output depends on
// these values staying fixed.
func (m AUCMethod) String() string {
	switch m {
	case LinearTrapezoidal:
		return "linear_trapezoidal"
	case LogTrapezoidal:
		return "log_trapezoidal"
	case LinearLogTrapezoidal:
		return "linear_log_trapezoidal"
	case LinearUpLogDown:
		return "linear_up_log_down"
	default:
		return "unknown"
	}
}

// ParseAUCMethod resolves a stable method identifier back to its enum value.
func ParseAUCMethod(s string) (AUCMethod, error) {
	switch s {
	case "linear_trapezoidal":
		return LinearTrapezoidal, nil
	case "log_trapezoidal":
		return LogTrapezoidal, nil
	case "linear_log_trapezoidal":
		return LinearLogTrapezoidal, nil
	case "linear_up_log_down":
		return LinearUpLogDown, nil
	default:
		return 0, fmt.Errorf("unknown AUC method %q", s)
	}
}

// BLQPolicy controls how below-limit-of-quantification observations enter the
// integration sequence.
type BLQPolicy int

const (
	// BLQHalfLLOQ substitutes LLOQ/2 for BLQ concentrations.
	BLQHalfLLOQ BLQPolicy = iota
	// BLQZero substitutes zero for BLQ concentrations.
	BLQZero
	// BLQDrop removes BLQ observations entirely.
	BLQDrop
)

// String returns the stable policy identifier.
func (p BLQPolicy) String() string {
	switch p {
	case BLQHalfLLOQ:
		return "half_lloq"
	case BLQZero:
		return "zero"
	case BLQDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ParseBLQPolicy resolves a stable policy identifier.
func ParseBLQPolicy(s string) (BLQPolicy, error) {
	switch s {
	case "half_lloq", "half-lloq":
		return BLQHalfLLOQ, nil
	case "zero":
		return BLQZero, nil
	case "drop":
		return BLQDrop, nil
	default:
		return 0, fmt.Errorf("unknown BLQ policy %q", s)
	}
}

// LambdaZMethod selects how the terminal-phase regression window is chosen.
type LambdaZMethod int

const (
	// LambdaZAuto searches every tail window ending at the last observation.
	LambdaZAuto LambdaZMethod = iota
	// LambdaZManual fits a single regression over caller-supplied indices.
	LambdaZManual
	// LambdaZBestFit searches every contiguous window of at least MinPoints
	// observations against a caller-supplied R² threshold.
	LambdaZBestFit
)

// String returns the stable method identifier.
func (m LambdaZMethod) String() string {
	switch m {
	case LambdaZAuto:
		return "auto"
	case LambdaZManual:
		return "manual"
	case LambdaZBestFit:
		return "best_fit"
	default:
		return "unknown"
	}
}

// ParseLambdaZMethod parses a stable method identifier.
func ParseLambdaZMethod(s string) (LambdaZMethod, error) {
	switch s {
	case "auto":
		return LambdaZAuto, nil
	case "manual":
		return LambdaZManual, nil
	case "best_fit", "best-fit":
		return LambdaZBestFit, nil
	default:
		return 0, fmt.Errorf("unknown lambda_z method %q", s)
	}
}

// LambdaZSelection bundles the window-selection method with its parameters.
// Indices is consulted only for LambdaZManual; MinPoints and
// RSquaredThreshold only for LambdaZBestFit.
type LambdaZSelection struct {
	Method            LambdaZMethod `json:"method"`
	Indices           []int         `json:"indices,omitempty"`
	MinPoints         int           `json:"min_points,omitempty"`
	RSquaredThreshold float64       `json:"r_squared_threshold,omitempty"`
}

// Route is the administration route of a dosing event.
type Route string

const (
	RouteIVBolus    Route = "IV"
	RouteIVInfusion Route = "INFUSION"
	RouteOral       Route = "ORAL"
)

// Observation is a single concentration-time sample. DV carries the recorded
// value before any BLQ substitution; Concentration is the working value.
type Observation struct {
	Time          float64  `json:"time"`
	Concentration float64  `json:"concentration"`
	LLOQ          *float64 `json:"lloq,omitempty"`
	BLQ           bool     `json:"blq"`
	EVID          int      `json:"evid"`
	DV            float64  `json:"dv"`
}

// Quantifiable reports whether the observation carries a usable positive
// concentration.
func (o Observation) Quantifiable() bool {
	return o.Concentration > 0 && !o.BLQ
}

// DosingEvent is a single administration record.
type DosingEvent struct {
	Time             float64  `json:"time"`
	Dose             float64  `json:"dose"`
	Route            Route    `json:"route"`
	InfusionDuration *float64 `json:"infusion_duration,omitempty"`
	EVID             int      `json:"evid"`
}

// Demographics carries the optional covariates attached to a subject.
// Numeric fields are nil when unknown; string fields are empty when unknown.
type Demographics struct {
	Age         *float64 `json:"age,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Sex         string   `json:"sex,omitempty"`
	Race        string   `json:"race,omitempty"`
	Treatment   string   `json:"treatment,omitempty"`
	StudyDay    *int     `json:"study_day,omitempty"`
	Period      *int     `json:"period,omitempty"`
	Sequence    string   `json:"sequence,omitempty"`
	Formulation string   `json:"formulation,omitempty"`
}

// Subject is one participant's full record. Observations are not guaranteed
// to arrive time-sorted; the analyzer sorts a copy before any calculation and
// never mutates the caller's data.
type Subject struct {
	ID           string        `json:"id"`
	Observations []Observation `json:"observations"`
	DosingEvents []DosingEvent `json:"dosing_events"`
	Demographics Demographics  `json:"demographics"`
}

// TotalDose sums all administered dose amounts.
func (s Subject) TotalDose() float64 {
	total := 0.0
	for _, d := range s.DosingEvents {
		total += d.Dose
	}
	return total
}

// QuantifiableCount returns the number of positive, non-BLQ observations.
func (s Subject) QuantifiableCount() int {
	count := 0
	for _, o := range s.Observations {
		if o.Quantifiable() {
			count++
		}
	}
	return count
}

// SortedObservations returns a copy of the observations ordered by time.
func (s Subject) SortedObservations() []Observation {
	sorted := make([]Observation, len(s.Observations))
	copy(sorted, s.Observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	return sorted
}

// IndividualParameters is the bundle of derived NCA parameters for one
// subject. A nil field means the parameter's preconditions did not hold; the
// absence itself is meaningful and is not an error.
type IndividualParameters struct {
	AUCLast           *float64 `json:"auc_last,omitempty"`
	AUCInf            *float64 `json:"auc_inf,omitempty"`
	AUCInfPred        *float64 `json:"auc_inf_pred,omitempty"`
	AUCPercentExtrap  *float64 `json:"auc_percent_extrap,omitempty"`
	AUMCLast          *float64 `json:"aumc_last,omitempty"`
	AUMCInf           *float64 `json:"aumc_inf,omitempty"`
	Cmax              *float64 `json:"cmax,omitempty"`
	Tmax              *float64 `json:"tmax,omitempty"`
	Tlast             *float64 `json:"tlast,omitempty"`
	Clast             *float64 `json:"clast,omitempty"`
	HalfLife          *float64 `json:"half_life,omitempty"`
	LambdaZ           *float64 `json:"lambda_z,omitempty"`
	LambdaZRSquared   *float64 `json:"lambda_z_r_squared,omitempty"`
	Clearance         *float64 `json:"clearance,omitempty"`
	VolumeSteadyState *float64 `json:"volume_steady_state,omitempty"`
	VolumeTerminal    *float64 `json:"volume_terminal,omitempty"`
	MRT               *float64 `json:"mrt,omitempty"`
	Bioavailability   *float64 `json:"bioavailability,omitempty"`
}

// ParameterNames lists the stable identifiers accepted by Parameter, in the
// order used for population summaries.
var ParameterNames = []string{
	"auc_last", "auc_inf", "cmax", "tmax",
	"half_life", "clearance", "volume_terminal", "mrt",
}

// Parameter returns the named parameter value when present. Names follow the
// serialized field identifiers.
func (p IndividualParameters) Parameter(name string) (float64, bool) {
	var v *float64
	switch name {
	case "auc_last":
		v = p.AUCLast
	case "auc_inf":
		v = p.AUCInf
	case "auc_percent_extrap":
		v = p.AUCPercentExtrap
	case "aumc_last":
		v = p.AUMCLast
	case "aumc_inf":
		v = p.AUMCInf
	case "cmax":
		v = p.Cmax
	case "tmax":
		v = p.Tmax
	case "tlast":
		v = p.Tlast
	case "clast":
		v = p.Clast
	case "half_life":
		v = p.HalfLife
	case "lambda_z":
		v = p.LambdaZ
	case "lambda_z_r_squared":
		v = p.LambdaZRSquared
	case "clearance":
		v = p.Clearance
	case "volume_steady_state":
		v = p.VolumeSteadyState
	case "volume_terminal":
		v = p.VolumeTerminal
	case "mrt":
		v = p.MRT
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// SubjectResult is the outcome of one successful subject analysis: the
// primary parameter set plus one parameter set per configured AUC method,
// keyed by the stable method name.
type SubjectResult struct {
	SubjectID         string                          `json:"subject_id"`
	Parameters        IndividualParameters            `json:"individual_parameters"`
	MethodComparisons map[string]IndividualParameters `json:"method_comparisons"`
}

// FailedSubjectAnalysis records a subject excluded from aggregate results.
type FailedSubjectAnalysis struct {
	SubjectID                  string `json:"subject_id"`
	FailureReason              string `json:"failure_reason"`
	QuantifiableConcentrations int    `json:"quantifiable_concentrations"`
	TotalObservations          int    `json:"total_observations"`
}

// ParameterStats are descriptive statistics for one parameter across the
// population. Geometric statistics are present only when every contributing
// value was strictly positive.
type ParameterStats struct {
	N                 int      `json:"n"`
	Mean              float64  `json:"mean"`
	Std               float64  `json:"std"`
	CVPercent         float64  `json:"cv_percent"`
	Median            float64  `json:"median"`
	Q25               float64  `json:"q25"`
	Q75               float64  `json:"q75"`
	Min               float64  `json:"min"`
	Max               float64  `json:"max"`
	GeometricMean     *float64 `json:"geometric_mean,omitempty"`
	GeometricCVPct    *float64 `json:"geometric_cv_percent,omitempty"`
}

// BiasAnalysis compares one AUC method against the linear-trapezoidal
// reference across subjects.
type BiasAnalysis struct {
	MeanDifference        float64    `json:"mean_difference"`
	MeanPercentDifference float64    `json:"mean_percent_difference"`
	LimitsOfAgreement     [2]float64 `json:"limits_of_agreement"`
}

// MethodComparison summarizes cross-method agreement over the population.
type MethodComparison struct {
	AUCMethods        map[string]float64            `json:"auc_methods"`
	CorrelationMatrix map[string]map[string]float64 `json:"correlation_matrix"`
	BiasAnalysis      map[string]BiasAnalysis       `json:"bias_analysis"`
}

// StratifiedResults are the aggregate results for one stratum.
type StratifiedResults struct {
	StratumName       string                    `json:"stratum_name"`
	StratumValue      string                    `json:"stratum_value"`
	NSubjects         int                       `json:"n_subjects"`
	IndividualResults []SubjectResult           `json:"individual_results"`
	SummaryStatistics map[string]ParameterStats `json:"summary_statistics"`
	MethodComparison  MethodComparison          `json:"method_comparison"`
}

// PairwiseComparison is the outcome of a Welch's t-test between two strata
// for one parameter.
type PairwiseComparison struct {
	Stratum1Name  string  `json:"stratum1_name"`
	Stratum2Name  string  `json:"stratum2_name"`
	N1            int     `json:"n1"`
	N2            int     `json:"n2"`
	Mean1         float64 `json:"mean1"`
	Mean2         float64 `json:"mean2"`
	PValue        float64 `json:"p_value"`
	TestStatistic float64 `json:"test_statistic"`
	TestType      string  `json:"test_type"`
	Significant   bool    `json:"significant"`
	EffectSize    float64 `json:"effect_size"`
}

// StrataComparison groups the pairwise tests run for one parameter.
type StrataComparison struct {
	Parameter           string               `json:"parameter"`
	PairwiseComparisons []PairwiseComparison `json:"pairwise_comparisons"`
}

// CovariateCorrelation holds the Pearson correlations between one covariate
// and each parameter, with two-tailed p-values.
type CovariateCorrelation struct {
	CovariateName         string             `json:"covariate_name"`
	ParameterCorrelations map[string]float64 `json:"parameter_correlations"`
	PValues               map[string]float64 `json:"p_values"`
}

// RegressionResults is a simple OLS fit of one parameter against one
// covariate. The confidence interval uses a fixed z = 1.96 critical value.
type RegressionResults struct {
	Parameter          string     `json:"parameter"`
	Covariate          string     `json:"covariate"`
	Slope              float64    `json:"slope"`
	Intercept          float64    `json:"intercept"`
	RSquared           float64    `json:"r_squared"`
	PValue             float64    `json:"p_value"`
	ConfidenceInterval [2]float64 `json:"confidence_interval"`
}

// LinearityAssessment classifies dose proportionality for one treatment
// group.
type LinearityAssessment struct {
	Slope               float64 `json:"slope"`
	RSquared            float64 `json:"r_squared"`
	LinearityConclusion string  `json:"linearity_conclusion"`
}

// DoseNormalizedAnalysis holds per-treatment dose-normalized exposure
// statistics and the dose-linearity classification.
type DoseNormalizedAnalysis struct {
	DoseNormalizedAUC       map[string]ParameterStats      `json:"dose_normalized_auc"`
	DoseNormalizedCmax      map[string]ParameterStats      `json:"dose_normalized_cmax"`
	DoseLinearityAssessment map[string]LinearityAssessment `json:"dose_linearity_assessment"`
}

// CovariateAnalysis is the full covariate section of a population run.
type CovariateAnalysis struct {
	Correlations           map[string]CovariateCorrelation `json:"correlations"`
	RegressionAnalysis     map[string]RegressionResults    `json:"regression_analysis"`
	DoseNormalizedAnalysis *DoseNormalizedAnalysis         `json:"dose_normalized_analysis,omitempty"`
}

// PopulationResults is everything a population run produces.
type PopulationResults struct {
	IndividualResults []SubjectResult              `json:"individual_results"`
	FailedSubjects    []FailedSubjectAnalysis      `json:"failed_subjects"`
	SummaryStatistics map[string]ParameterStats    `json:"summary_statistics"`
	MethodComparison  MethodComparison             `json:"method_comparison"`
	StratifiedResults map[string]StratifiedResults `json:"stratified_results"`
	StrataComparisons map[string]StrataComparison  `json:"strata_comparisons,omitempty"`
	CovariateAnalysis CovariateAnalysis            `json:"covariate_analysis"`
}
