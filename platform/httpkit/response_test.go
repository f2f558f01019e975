package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"lead_cadence_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func runHandleError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	HandleError(c, err)
	return rec
}

func TestHandleErrorMapsWrappedDomainErrors(t *testing.T) {
	err := fmt.Errorf("service: %w", apperr.Validation("answer required").WithDetails(map[string]string{"questionId": "budget"}))
	rec := runHandleError(err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "answer required" {
		t.Fatalf("unexpected message %q", body.Error)
	}
}

func TestHandleErrorTransientSetsRetryAfter(t *testing.T) {
	rec := runHandleError(apperr.Transient("strategy store unavailable", errors.New("dial tcp")))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestHandleErrorUnknownIsInternal(t *testing.T) {
	rec := runHandleError(errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() == "" || !json.Valid(rec.Body.Bytes()) {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
}

func TestHandleErrorNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if HandleError(c, nil) {
		t.Fatal("nil error must not be handled")
	}
}
