// Package exporter writes a population analysis into a report directory:
// per-section CSV files, a failed-subject log, the complete results as JSON,
// a plain-text summary report, and a combined Excel workbook. Map-backed
// sections iterate in sorted key order so repeated runs produce identical
// files.
package exporter
