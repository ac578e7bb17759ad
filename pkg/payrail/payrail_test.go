package payrail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
)

func TestTransfer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/transfers" || r.Header.Get("Idempotency-Key") != "st-1" {
			t.Errorf("unexpected request %s key=%q", r.URL.Path, r.Header.Get("Idempotency-Key"))
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		var body TransferRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch body.BeneficiaryID {
		case "rejected":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"account_closed","message":"account closed"}`))
		case "down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"reference":"TRX-9","status":"accepted"}`))
		}
	}))
	defer srv.Close()

	c := New(config.PayRailConfig{BaseURL: srv.URL, APIKey: "secret"})
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(2 * time.Millisecond)

	tests := []struct {
		name      string
		req       TransferRequest
		wantRef   string
		wantErr   error
		wantCalls int32
	}{
		{"accepted", TransferRequest{IdempotencyKey: "st-1", BeneficiaryID: "u1", Amount: decimal.NewFromInt(5000)}, "TRX-9", nil, 1},
		{"rejected", TransferRequest{IdempotencyKey: "st-1", BeneficiaryID: "rejected", Amount: decimal.NewFromInt(1)}, "", ErrRejected, 1},
		{"retried then unavailable", TransferRequest{IdempotencyKey: "st-1", BeneficiaryID: "down", Amount: decimal.NewFromInt(1)}, "", ErrUnavailable, 3},
		{"no key", TransferRequest{BeneficiaryID: "u1", Amount: decimal.NewFromInt(1)}, "", ErrRejected, 0},
		{"zero amount", TransferRequest{IdempotencyKey: "st-1", BeneficiaryID: "u1"}, "", ErrRejected, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls.Store(0)
			res, err := c.Transfer(context.Background(), tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
			} else if err != nil || res.Reference != tc.wantRef {
				t.Fatalf("Transfer = %+v, %v", res, err)
			}
			if got := calls.Load(); got != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", got, tc.wantCalls)
			}
		})
	}
}
