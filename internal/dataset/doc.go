// Package dataset parses NONMEM-style concentration-time datasets from CSV
// files or Excel workbooks into subjects. Columns are resolved by header
// name; EVID distinguishes observation rows from dosing rows, and the RATE
// convention (positive = infusion, -1 = IV bolus, -2 = oral) decodes the
// administration route.
package dataset
