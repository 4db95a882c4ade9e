// Package webhook delivers pipeline lifecycle events to an external
// HTTP endpoint. When registered as an extension, it POSTs a JSON
// payload (docpipe.job.completed, docpipe.job.failed, etc.) at the
// configured lifecycle points.
//
// Delivery is best-effort with exactly one attempt per event: a failed
// delivery is logged and swallowed, never retried, and never affects
// the job that triggered it.
//
// Usage:
//
//	hook := webhook.New("https://example.com/hooks/docpipe",
//	    webhook.WithSecret("s3cret"),
//	)
//	pipeline.WithExtension(hook)
//
// To restrict which events are emitted:
//
//	hook := webhook.New(url,
//	    webhook.WithEvents(
//	        webhook.EventJobCompleted,
//	        webhook.EventJobFailed,
//	    ),
//	)
package webhook
