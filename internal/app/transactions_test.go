package app

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
)

func TestTransactionSubject(t *testing.T) {
	cfg := &config.Config{}
	if got := TransactionSubject(cfg); got != "franchise.transaction.recorded" {
		t.Fatalf("default subject = %q", got)
	}
	cfg.Nats.SubjectPrefix = "acme"
	if got := TransactionSubject(cfg); got != "acme.transaction.recorded" {
		t.Fatalf("subject = %q", got)
	}
}

func TestDecodeTransaction(t *testing.T) {
	merchant := uuid.MustParse("6f1c2a8e-0d7b-4c5e-9a43-2f0b6e1d7c11")

	t.Run("full payload", func(t *testing.T) {
		msg := nats.NewMsg("franchise.transaction.recorded")
		msg.Data = []byte(`{"event_id":"tx-1","merchant_id":"` + merchant.String() + `","amount":"10000","occurred_at":"2026-03-01T09:30:00Z"}`)
		in, err := decodeTransaction(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if in.SourceEventID != "tx-1" || in.MerchantID != merchant {
			t.Fatalf("unexpected input %+v", in)
		}
		if !in.Amount.Equal(decimal.NewFromInt(10000)) {
			t.Fatalf("amount = %s", in.Amount)
		}
		if in.OccurredAt.Day() != 1 {
			t.Fatalf("occurred_at = %s", in.OccurredAt)
		}
	})

	t.Run("numeric amount and header id", func(t *testing.T) {
		msg := nats.NewMsg("franchise.transaction.recorded")
		msg.Header.Set(nats.MsgIdHdr, "hdr-7")
		msg.Data = []byte(`{"merchant_id":"` + merchant.String() + `","amount":2500.5}`)
		in, err := decodeTransaction(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if in.SourceEventID != "hdr-7" {
			t.Fatalf("event id = %q, want header value", in.SourceEventID)
		}
		if !in.Amount.Equal(decimal.RequireFromString("2500.5")) {
			t.Fatalf("amount = %s", in.Amount)
		}
	})

	t.Run("missing merchant", func(t *testing.T) {
		msg := nats.NewMsg("franchise.transaction.recorded")
		msg.Data = []byte(`{"event_id":"tx-2","amount":"1"}`)
		if _, err := decodeTransaction(msg); !errors.Is(err, errMissingMerchant) {
			t.Fatalf("err = %v, want errMissingMerchant", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		msg := nats.NewMsg("franchise.transaction.recorded")
		msg.Data = []byte(`not json`)
		if _, err := decodeTransaction(msg); err == nil {
			t.Fatal("expected decode error")
		}
	})
}
