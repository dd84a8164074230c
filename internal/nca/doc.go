// Package nca implements single-subject non-compartmental pharmacokinetic
// analysis: trapezoidal AUC/AUMC integration with configurable BLQ handling,
// terminal-phase rate constant estimation by log-linear regression, and the
// derived exposure, clearance and volume parameters.
//
// The entry point is Analyzer.AnalyzeSubject, which gates on at least three
// quantifiable concentrations, computes the primary parameter set over the
// configured AUC methods, and attaches a per-method recomputation for
// cross-method comparison. Parameters whose preconditions fail are absent
// (nil), not zero; callers distinguish "not computable" from "computed as
// zero" through pointer presence.
//
// All functions treat their inputs as read-only. Population-level
// aggregation, stratification and covariate analysis build on this package
// from internal/population and internal/covariate.
package nca
