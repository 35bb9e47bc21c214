// Package ingest drives one catalog file through the conversion pipeline.
//
// A conversion reads the file with the reader package, maps its headers once,
// converts every row with a catalog.Converter and writes the valid products
// to a new JSON file:
//
//	svc := ingest.NewService(ingest.Options{MaxFileSize: 50 << 20})
//	out := svc.Convert(ctx, ingest.Request{Path: "catalogo.csv"})
//	// out.Status is success, partial or error
//
// File-level problems (missing file, unsupported or malformed format, no
// rows) end the conversion with StatusError and no output file. Row-level
// problems only drop the row; they are reported in Outcome.RowErrors, capped
// at Options.MaxReportedErrors.
//
// # Concurrency
//
// Service is safe for concurrent use. Limiter bounds how many conversions the
// HTTP server runs at once.
//
// # Observability
//
// Every conversion gets a UUID that appears in its log lines, its history
// record and its Outcome. Metrics, when configured, count conversions by
// status and format, rows by result and inferred values by field.
package ingest
