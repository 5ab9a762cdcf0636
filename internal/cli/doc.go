// Package cli implements the partloader command line.
//
//	partloader bundles app.yaml -o yaml
//	partloader resolve app.yaml com.acme.reports.Report
//	partloader download app.yaml reports charts
//	partloader serve app.yaml --addr :8090
package cli
