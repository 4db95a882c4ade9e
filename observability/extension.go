package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/job"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/docpipe/docpipe/observability"

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobRetrying  = (*MetricsExtension)(nil)
	_ ext.JobCancelled = (*MetricsExtension)(nil)
)

// MetricsExtension records pipeline-wide lifecycle metrics via OTel.
// Register it as an extension to automatically track enqueue rates,
// completion counts, rejection counts, failure rates, retries, and
// cancellations per document type.
type MetricsExtension struct {
	jobEnqueued  metric.Int64Counter
	jobCompleted metric.Int64Counter
	jobRejected  metric.Int64Counter
	jobFailed    metric.Int64Counter
	jobRetried   metric.Int64Counter
	jobCancelled metric.Int64Counter
	jobDuration  metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. With no provider configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a test MeterProvider.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.jobEnqueued, _ = meter.Int64Counter("docpipe.job.enqueued",
		metric.WithDescription("Total jobs enqueued"),
		metric.WithUnit("{job}"))
	m.jobCompleted, _ = meter.Int64Counter("docpipe.job.completed",
		metric.WithDescription("Total jobs completed successfully"),
		metric.WithUnit("{job}"))
	m.jobRejected, _ = meter.Int64Counter("docpipe.job.rejected",
		metric.WithDescription("Total jobs completed with a validation rejection"),
		metric.WithUnit("{job}"))
	m.jobFailed, _ = meter.Int64Counter("docpipe.job.failed",
		metric.WithDescription("Total jobs failed terminally"),
		metric.WithUnit("{job}"))
	m.jobRetried, _ = meter.Int64Counter("docpipe.job.retried",
		metric.WithDescription("Total retry attempts scheduled"),
		metric.WithUnit("{retry}"))
	m.jobCancelled, _ = meter.Int64Counter("docpipe.job.cancelled",
		metric.WithDescription("Total jobs cancelled before execution"),
		metric.WithUnit("{job}"))
	m.jobDuration, _ = meter.Float64Histogram("docpipe.job.lifecycle.duration",
		metric.WithDescription("Wall-clock time from start to completion"),
		metric.WithUnit("s"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func typeAttr(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("document_type", j.DocumentTypeID))
}

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.jobEnqueued.Add(ctx, 1, typeAttr(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted. Completed-with-rejection
// counts as rejected, not completed.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	if j.Rejected() {
		m.jobRejected.Add(ctx, 1, typeAttr(j))
	} else {
		m.jobCompleted.Add(ctx, 1, typeAttr(j))
	}
	m.jobDuration.Record(ctx, elapsed.Seconds(), typeAttr(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.jobFailed.Add(ctx, 1, typeAttr(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.jobRetried.Add(ctx, 1, typeAttr(j))
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	m.jobCancelled.Add(ctx, 1, typeAttr(j))
	return nil
}
