package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/harborlane/storefront-backend/pkg/errors"
)

func TestWriteErrorMapsCodedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantMsg:    "qty must be positive",
		},
		{
			name:       "not found",
			err:        pkgerrors.New(pkgerrors.CodeNotFound, "product not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    "product not found",
		},
		{
			name:       "insufficient stock",
			err:        pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INSUFFICIENT_STOCK",
			wantMsg:    "insufficient stock",
		},
		{
			name:       "commit failed hides internals",
			err:        pkgerrors.Wrap(pkgerrors.CodeCommitFailed, errors.New("pq: deadlock detected"), "placing order"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "ORDER_COMMIT_FAILED",
			wantMsg:    "order could not be committed",
		},
		{
			name:       "untyped error becomes internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json body: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Fatalf("expected code %q, got %v", tt.wantCode, body["code"])
			}
			if body["error"] != tt.wantMsg {
				t.Fatalf("expected message %q, got %v", tt.wantMsg, body["error"])
			}
		})
	}
}

func TestWriteErrorIncludesAllowedDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"product_id": "abc", "requested": 3, "available": 1})
	WriteError(context.Background(), nil, rec, err)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %v", body["details"])
	}
	if details["product_id"] != "abc" {
		t.Fatalf("expected product_id detail, got %v", details)
	}
}

func TestWriteErrorStripsDisallowedDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeCommitFailed, "placing order").
		WithDetails(map[string]any{"step": "decrement"})
	WriteError(context.Background(), nil, rec, err)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if _, present := body["details"]; present {
		t.Fatalf("details must not leak for commit failures, got %v", body["details"])
	}
}

func TestWriteSuccessStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]any{"order_id": "o-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["order_id"] != "o-1" {
		t.Fatalf("unexpected body %v", body)
	}
}
