package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidRequest, http.StatusBadRequest},
		{InvalidRequest("count must be between 1 and %d", 100), http.StatusBadRequest},
		{ErrInvalidReference, http.StatusBadRequest},
		{ErrInvalidLesson, http.StatusNotFound},
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrForbidden, http.StatusForbidden},
		{ErrDeadlineExceeded, http.StatusConflict},
		{ErrAlreadyCompleted, http.StatusConflict},
		{ErrReviewNotAvailable, http.StatusConflict},
		{fmt.Errorf("submit: %w", ErrAlreadyCompleted), http.StatusConflict},
		{StorageError("lock session", errors.New("driver: bad connection")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStorageErrorWrapsBoth(t *testing.T) {
	cause := errors.New("deadlock")
	err := StorageError("store grade", cause)
	if !errors.Is(err, ErrStorageFailure) || !errors.Is(err, cause) {
		t.Fatalf("StorageError lost a wrapped error: %v", err)
	}
	if StorageError("noop", nil) != nil {
		t.Fatal("StorageError(nil) must be nil")
	}
}

func TestHandleErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	HandleError(c, StorageError("lock session", errors.New("secret dsn")))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "Internal server error" {
		t.Fatalf("internal error leaked: %q", resp.Message)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	HandleError(c, ErrDeadlineExceeded)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}
