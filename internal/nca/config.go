package nca

import "fmt"

// StratificationConfig requests stratified sub-analyses of a population run.
type StratificationConfig struct {
	StratifyColumns         []string `json:"stratify_columns"`
	IncludeInteractions     bool     `json:"include_interactions"`
	MinimumNPerStratum      int      `json:"minimum_n_per_stratum"`
	PerformStatisticalTests bool     `json:"perform_statistical_tests"`
}

// AnalysisConfig is the immutable configuration for one population run. The
// engine never mutates it; derived variants are produced by value.
type AnalysisConfig struct {
	AUCMethods               []AUCMethod           `json:"auc_methods"`
	LambdaZ                  LambdaZSelection      `json:"lambda_z_selection"`
	BLQ                      BLQPolicy             `json:"blq_handling"`
	TimeUnits                string                `json:"time_units"`
	ConcentrationUnits       string                `json:"concentration_units"`
	Stratification           *StratificationConfig `json:"stratification,omitempty"`
	PerformCovariateAnalysis bool                  `json:"perform_covariate_analysis"`
	DoseNormalization        bool                  `json:"dose_normalization"`
}

// DefaultAnalysisConfig returns the configuration used when the caller
// supplies none: all four AUC methods, automatic lambda_z selection, and
// LLOQ/2 substitution for BLQ samples.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		AUCMethods: []AUCMethod{
			LinearTrapezoidal,
			LogTrapezoidal,
			LinearLogTrapezoidal,
			LinearUpLogDown,
		},
		LambdaZ:            LambdaZSelection{Method: LambdaZAuto},
		BLQ:                BLQHalfLLOQ,
		TimeUnits:          "h",
		ConcentrationUnits: "ng/mL",
	}
}

// Validate checks that the configuration is internally consistent.
func (c AnalysisConfig) Validate() error {
	if len(c.AUCMethods) == 0 {
		return fmt.Errorf("at least one AUC method required")
	}
	for _, m := range c.AUCMethods {
		if m.String() == "unknown" {
			return fmt.Errorf("unknown AUC method %d", m)
		}
	}
	switch c.LambdaZ.Method {
	case LambdaZAuto:
	case LambdaZManual:
		if len(c.LambdaZ.Indices) < 2 {
			return fmt.Errorf("manual lambda_z selection needs at least 2 indices")
		}
	case LambdaZBestFit:
		if c.LambdaZ.MinPoints < 2 {
			return fmt.Errorf("best-fit lambda_z selection needs min_points >= 2")
		}
		if c.LambdaZ.RSquaredThreshold < 0 || c.LambdaZ.RSquaredThreshold > 1 {
			return fmt.Errorf("best-fit r_squared_threshold must be in [0,1]")
		}
	default:
		return fmt.Errorf("unknown lambda_z method %d", c.LambdaZ.Method)
	}
	if c.BLQ.String() == "unknown" {
		return fmt.Errorf("unknown BLQ policy %d", c.BLQ)
	}
	if s := c.Stratification; s != nil {
		if len(s.StratifyColumns) == 0 {
			return fmt.Errorf("stratification requested without stratify columns")
		}
		if s.MinimumNPerStratum < 1 {
			return fmt.Errorf("minimum_n_per_stratum must be >= 1")
		}
	}
	return nil
}

// WithoutStratification returns a copy of the configuration with the
// stratification and covariate sections cleared. Stratum re-aggregation must
// run with this variant: passing the original config into the nested
// population run would re-stratify each stratum without end.
func (c AnalysisConfig) WithoutStratification() AnalysisConfig {
	c.Stratification = nil
	c.PerformCovariateAnalysis = false
	c.DoseNormalization = false
	return c
}
