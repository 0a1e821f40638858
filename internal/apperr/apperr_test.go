package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("value", "must be greater than zero"), http.StatusBadRequest},
		{Unauthenticated("login required"), http.StatusUnauthorized},
		{Forbidden("not the owner"), http.StatusForbidden},
		{NotFound("group not found"), http.StatusNotFound},
		{Conflict("already a member"), http.StatusConflict},
		{RateLimited("too many codes"), http.StatusTooManyRequests},
		{Internal(errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.err.Kind.Status(); got != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create group: %w", Forbidden("managers only"))
	if KindOf(err) != KindForbidden {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindForbidden)
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors should be internal")
	}
}

func TestInternalHidesDetail(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: users.email")
	e := As(cause)
	if e.Kind != KindInternal {
		t.Fatalf("kind = %v, want internal", e.Kind)
	}
	if e.Message != "internal error" {
		t.Errorf("message = %q, want %q", e.Message, "internal error")
	}
	if !errors.Is(e, cause) {
		t.Error("expected cause to be preserved for logging")
	}
}

func TestWithExtra(t *testing.T) {
	e := Unauthenticated("verification required").With("requires_verification", true).With("type", "email")
	if e.Extra["requires_verification"] != true {
		t.Error("expected requires_verification extra")
	}
	if e.Extra["type"] != "email" {
		t.Errorf("type = %v, want email", e.Extra["type"])
	}
}
