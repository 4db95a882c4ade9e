// Package audithook records pipeline lifecycle transitions to an
// external audit trail.
//
// The extension translates job and document events into backend-neutral
// [AuditEvent] records and hands them to a caller-supplied [Recorder].
// Recorder failures are logged and swallowed: an unavailable audit
// backend must never stall extraction work.
//
//	rec := audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//		return auditClient.Write(ctx, evt)
//	})
//	eng, err := engine.Build(p, docs, types, files, extractor,
//		engine.WithExtension(audithook.New(rec)),
//	)
//
// Use [WithActions] to audit only a subset of actions, for example just
// the terminal outcomes job.completed, job.rejected and job.failed.
package audithook
