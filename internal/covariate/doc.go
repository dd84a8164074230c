// Package covariate screens continuous demographics (age, weight, height)
// against derived NCA parameters: Pearson correlations with two-tailed
// p-values, simple OLS regressions, and per-treatment dose-normalized
// exposure with a dose-linearity classification.
//
// Results and subjects are matched by subject ID, so failed subjects drop out
// of every pairing without shifting alignment. Pairs with fewer than three
// data points are skipped rather than reported.
package covariate
