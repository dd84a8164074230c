// Package datagen simulates synthetic concentration-time datasets from
// one-compartment models (IV bolus, 1-hour infusion, first-order oral
// absorption) with allometric clearance scaling, log-normal inter-subject
// variability and proportional residual error. Generated subjects round-trip
// through the dataset parser, which makes the package useful for demos and
// end-to-end tests.
package datagen
