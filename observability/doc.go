// Package observability provides an extension that records pipeline
// lifecycle metrics (enqueues, completions, rejections, failures,
// retries, cancellations) through OpenTelemetry instruments.
//
// The extension complements the per-execution metrics middleware: the
// middleware times individual execution attempts, while this extension
// counts lifecycle outcomes across the whole pipeline.
package observability
