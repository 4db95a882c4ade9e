package job_test

import (
	"testing"

	"github.com/docpipe/docpipe/job"
)

func TestState_Terminal(t *testing.T) {
	tests := []struct {
		state job.State
		want  bool
	}{
		{job.StateWaiting, false},
		{job.StateDelayed, false},
		{job.StateActive, false},
		{job.StateCompleted, true},
		{job.StateFailed, true},
		{job.StateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("State(%q).Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestState_Cancellable(t *testing.T) {
	tests := []struct {
		state job.State
		want  bool
	}{
		{job.StateWaiting, true},
		{job.StateDelayed, true},
		{job.StateActive, false},
		{job.StateCompleted, false},
		{job.StateFailed, false},
		{job.StateCancelled, false},
	}
	for _, tt := range tests {
		if got := tt.state.Cancellable(); got != tt.want {
			t.Errorf("State(%q).Cancellable() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestState_Valid(t *testing.T) {
	for _, s := range []job.State{
		job.StateWaiting, job.StateDelayed, job.StateActive,
		job.StateCompleted, job.StateFailed, job.StateCancelled,
	} {
		if !s.Valid() {
			t.Errorf("State(%q).Valid() = false, want true", s)
		}
	}
	if job.State("running").Valid() {
		t.Error(`State("running").Valid() = true, want false`)
	}
}

func TestJob_Rejected(t *testing.T) {
	j := &job.Job{State: job.StateCompleted, Rejection: "not an invoice"}
	if !j.Rejected() {
		t.Error("completed job with rejection reason should report Rejected")
	}

	j = &job.Job{State: job.StateCompleted}
	if j.Rejected() {
		t.Error("clean completion should not report Rejected")
	}

	j = &job.Job{State: job.StateFailed, Rejection: "x"}
	if j.Rejected() {
		t.Error("failed job should not report Rejected")
	}
}
