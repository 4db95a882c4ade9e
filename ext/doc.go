// Package ext defines the extension system for the pipeline.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, firing webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — job was accepted into the queue
//   - [JobStarted] — worker began processing the job
//   - [JobProgress] — job reported a progress update
//   - [JobCompleted] — job finished, either extracted or rejected
//   - [JobFailed] — job failed with no retries remaining
//   - [JobRetrying] — job failed but will be retried
//   - [JobCancelled] — job was cancelled before a worker picked it up
//
// # Other Hooks
//
//   - [DocumentSaved] — extracted data was written back to the document
//   - [Shutdown] — the pipeline is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
