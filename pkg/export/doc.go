// Package export archives daily composite statistics reports.
//
// Reports are written once per day under reports/daily/YYYY/MM/DD.<ext> as
// JSON or YAML. Archived reports are snapshots for offline analysis; the
// API always computes reports from the live store.
package export
