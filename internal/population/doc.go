// Package population aggregates single-subject NCA results across a study:
// concurrent per-subject analysis with failure isolation, descriptive summary
// statistics, AUC method comparison, demographic stratification with Welch's
// t-tests between strata, and the covariate section when enabled.
//
// A failed subject is recorded in FailedSubjects and excluded from every
// aggregate; it never aborts the run. Stratified sub-analyses reuse the same
// aggregation pipeline with the stratification-free configuration variant, so
// nesting stops at one level.
package population
