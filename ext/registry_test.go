package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/docpipe/docpipe/document"
	"github.com/docpipe/docpipe/ext"
	"github.com/docpipe/docpipe/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobEnqueued")
	return nil
}

func (e *allHooksExt) OnJobStarted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobStarted")
	return nil
}

func (e *allHooksExt) OnJobProgress(_ context.Context, _ *job.Job, _ job.Progress) error {
	e.calls = append(e.calls, "OnJobProgress")
	return nil
}

func (e *allHooksExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobRetrying(_ context.Context, _ *job.Job, _ int, _ time.Time) error {
	e.calls = append(e.calls, "OnJobRetrying")
	return nil
}

func (e *allHooksExt) OnJobCancelled(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobCancelled")
	return nil
}

func (e *allHooksExt) OnDocumentSaved(_ context.Context, _ *job.Job, _ *document.Document) error {
	e.calls = append(e.calls, "OnDocumentSaved")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// enqueueOnlyExt only implements enqueue and completion hooks.
type enqueueOnlyExt struct {
	calls []string
}

func (e *enqueueOnlyExt) Name() string { return "enqueue-only" }

func (e *enqueueOnlyExt) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobEnqueued")
	return nil
}

func (e *enqueueOnlyExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	eo := &enqueueOnlyExt{}
	r.Register(all)
	r.Register(eo)

	ctx := context.Background()
	j := &job.Job{DocumentID: "doc-1"}

	// Both implement OnJobEnqueued → both called.
	r.EmitJobEnqueued(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobEnqueued" {
		t.Fatalf("all: expected [OnJobEnqueued], got %v", all.calls)
	}
	if len(eo.calls) != 1 || eo.calls[0] != "OnJobEnqueued" {
		t.Fatalf("eo: expected [OnJobEnqueued], got %v", eo.calls)
	}

	// Only all implements OnJobStarted → eo not called.
	r.EmitJobStarted(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobStarted" {
		t.Fatalf("all: expected OnJobStarted as 2nd, got %v", all.calls)
	}
	if len(eo.calls) != 1 {
		t.Fatalf("eo: should still have 1 call, got %v", eo.calls)
	}
}

func TestRegistry_AllJobHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{DocumentID: "doc-1"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobProgress(ctx, j, job.Progress{Status: "extracting", Percent: 50})
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobCancelled(ctx, j)

	expected := []string{
		"OnJobEnqueued", "OnJobStarted", "OnJobProgress",
		"OnJobCompleted", "OnJobFailed", "OnJobRetrying", "OnJobCancelled",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_DocumentAndShutdownHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitDocumentSaved(ctx, &job.Job{DocumentID: "doc-1"}, &document.Document{ID: "doc-1"})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d: %v", len(all.calls), all.calls)
	}
	if all.calls[0] != "OnDocumentSaved" {
		t.Errorf("call[0] = %q, want OnDocumentSaved", all.calls[0])
	}
	if all.calls[1] != "OnShutdown" {
		t.Errorf("call[1] = %q, want OnShutdown", all.calls[1])
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{DocumentID: "doc-1"}

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitJobEnqueued(ctx, j)

	if len(all.calls) != 1 || all.calls[0] != "OnJobEnqueued" {
		t.Fatalf("all: expected [OnJobEnqueued] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()

	// None of these should panic or error.
	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitJobStarted(ctx, &job.Job{})
	r.EmitJobProgress(ctx, &job.Job{}, job.Progress{})
	r.EmitJobCompleted(ctx, &job.Job{}, time.Second)
	r.EmitJobFailed(ctx, &job.Job{}, errors.New("x"))
	r.EmitJobRetrying(ctx, &job.Job{}, 1, time.Now())
	r.EmitJobCancelled(ctx, &job.Job{})
	r.EmitDocumentSaved(ctx, &job.Job{}, &document.Document{})
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &job.Job{})

	// Both should be called.
	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
