package auth

import (
	"context"
	"testing"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{
		UserID:   "u-1",
		UserName: "Ada",
		Elevated: true,
	})

	p, ok := PrincipalFrom(ctx)
	if !ok {
		t.Fatal("expected principal")
	}
	if p.UserID != "u-1" || p.UserName != "Ada" || !p.Elevated {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestPrincipalFromEmpty(t *testing.T) {
	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Fatal("expected no principal on bare context")
	}
}

func TestCaptureAndRestore(t *testing.T) {
	ctx := Restore(context.Background(), "u-2", "Grace")
	userID, userName := Capture(ctx)
	if userID != "u-2" || userName != "Grace" {
		t.Errorf("got (%q, %q)", userID, userName)
	}
}

func TestRestoreNoOp(t *testing.T) {
	base := context.Background()
	ctx := Restore(base, "", "")
	if ctx != base {
		t.Error("expected unchanged context for empty identity")
	}
	if userID, userName := Capture(ctx); userID != "" || userName != "" {
		t.Errorf("got (%q, %q), want empty", userID, userName)
	}
}
