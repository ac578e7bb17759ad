package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/service/revenue"
	"github.com/Alijeyrad/franchise_backend/pkg/constants"
)

const (
	transactionQueue   = "franchise-revenue"
	transactionTimeout = 30 * time.Second
)

var errMissingMerchant = errors.New("transaction event without merchant_id")

// TransactionSubject is where upstream systems announce chargeable events.
func TransactionSubject(cfg *config.Config) string {
	prefix := cfg.Nats.SubjectPrefix
	if prefix == "" {
		prefix = constants.DefaultSubjectPrefix
	}
	return prefix + ".transaction.recorded"
}

// decodeTransaction reads a transaction event. A missing event_id falls back
// to the Nats-Msg-Id header so redeliveries stay idempotent.
func decodeTransaction(msg *nats.Msg) (revenue.DistributeInput, error) {
	var in revenue.DistributeInput
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		return in, fmt.Errorf("decode transaction: %w", err)
	}
	if in.MerchantID == uuid.Nil {
		return in, errMissingMerchant
	}
	if in.SourceEventID == "" && msg.Header != nil {
		in.SourceEventID = msg.Header.Get(nats.MsgIdHdr)
	}
	return in, nil
}

func handleTransaction(svc revenue.Service, msg *nats.Msg) {
	in, err := decodeTransaction(msg)
	if err != nil {
		slog.Warn("transaction worker: dropping event", "subject", msg.Subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), transactionTimeout)
	defer cancel()

	rec, err := svc.Distribute(ctx, in)
	if err != nil {
		slog.Error("transaction worker: distribute failed",
			"event_id", in.SourceEventID,
			"merchant_id", in.MerchantID,
			"error", err,
		)
		return
	}
	slog.Debug("transaction worker: distributed", "event_id", in.SourceEventID, "record_id", rec.ID)
}
