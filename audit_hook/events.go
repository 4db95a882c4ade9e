package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionJobEnqueued   = "job.enqueued"
	ActionJobStarted    = "job.started"
	ActionJobCompleted  = "job.completed"
	ActionJobRejected   = "job.rejected"
	ActionJobFailed     = "job.failed"
	ActionJobRetrying   = "job.retrying"
	ActionJobCancelled  = "job.cancelled"
	ActionDocumentSaved = "document.saved"
)

// Audit event categories group related actions.
const (
	CategoryJob      = "docpipe.job"
	CategoryDocument = "docpipe.document"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob      = "job"
	ResourceDocument = "document"
)
