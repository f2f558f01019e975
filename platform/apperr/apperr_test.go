package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{Configuration("thresholds"), http.StatusInternalServerError},
		{Transient("db down", errors.New("dial tcp")), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Fatalf("kind %d: expected status %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := Transient("load strategy", errors.New("connection refused"))
	wrapped := fmt.Errorf("check eligibility: %w", base)

	if GetKind(wrapped) != KindTransient {
		t.Fatalf("expected transient kind through wrap, got %d", GetKind(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Fatal("expected wrapped transient error to be retryable")
	}
	if IsRetryable(Validation("missing answer")) {
		t.Fatal("validation errors must not be retryable")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Transient("load strategy", errors.New("timeout")).WithOp("cadence.get")
	if err.Error() != "cadence.get: load strategy: timeout" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
