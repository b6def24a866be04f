package auth

import (
	"errors"
	"testing"
)

func TestOwnerPolicyAuthorizesOwnerOnly(t *testing.T) {
	p, err := NewOwnerPolicy("op-1")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if err := p.Authorize("op-1"); err != nil {
		t.Fatalf("owner should be authorized: %v", err)
	}
	for _, actor := range []string{"", "someone-else", "OP-1"} {
		err := p.Authorize(actor)
		if err == nil {
			t.Fatalf("actor %q should be rejected", actor)
		}
		var ue UnauthorizedError
		if !errors.As(err, &ue) {
			t.Fatalf("expected UnauthorizedError, got %T", err)
		}
	}
}

func TestNewOwnerPolicyRequiresOwner(t *testing.T) {
	if _, err := NewOwnerPolicy("  "); err == nil {
		t.Fatal("expected error for blank owner id")
	}
}
