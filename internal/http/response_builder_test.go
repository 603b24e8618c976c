package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.Invalid("amount", core.ErrInvalidAmount), http.StatusBadRequest},
		{"not found", core.NotFound("goal", "g1"), http.StatusNotFound},
		{"insufficient funds", &core.InsufficientFundsError{GoalID: "g1"}, http.StatusBadRequest},
		{"conflict", core.Conflict("account", "username taken"), http.StatusConflict},
		{"wrapped not found", fmt.Errorf("load: %w", core.NotFound("account", "a1")), http.StatusNotFound},
		{"infrastructure", core.Infra("create transaction", errors.New("disk full")), http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	t.Run("insufficient funds carries available", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrorResponse(&core.InsufficientFundsError{
			GoalID:    "g1",
			Requested: decimal.NewFromInt(80),
			Available: decimal.RequireFromString("12.5"),
		}).Write(rec)

		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusBadRequest || body.Kind != "insufficient_funds" || body.Available != "12.5" {
			t.Errorf("got %d %+v", rec.Code, body)
		}
	})

	t.Run("infrastructure details are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrorResponse(core.Infra("update account", errors.New("pq: connection reset"))).Write(rec)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "connection reset") {
			t.Errorf("body leaks details: %s", rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
		}
	})
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body(map[string]string{"x": "y"}).Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got %d with body %q", rec.Code, rec.Body.String())
	}
}
