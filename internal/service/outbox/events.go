// Package outbox is the durable side-effect queue. Services enqueue events in
// the same transaction as the state change they describe; the relay delivers
// them after commit.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
)

const (
	TopicSettlementApproved = "settlement.approved"
	TopicSettlementPaid     = "settlement.paid"
	TopicPayoutRequested    = "payout.requested"
)

// SettlementEvent is the payload of every settlement topic.
type SettlementEvent struct {
	SettlementID uuid.UUID             `json:"settlement_id"`
	UserID       uuid.UUID             `json:"user_id"`
	Type         repo.SettlementType   `json:"settlement_type"`
	Status       repo.SettlementStatus `json:"status"`
	Amount       decimal.Decimal       `json:"amount"`
	PeriodStart  time.Time             `json:"period_start"`
	PeriodEnd    time.Time             `json:"period_end"`
	OccurredAt   time.Time             `json:"occurred_at"`
}

func NewSettlementEvent(s *repo.Settlement, at time.Time) SettlementEvent {
	return SettlementEvent{
		SettlementID: s.ID,
		UserID:       s.UserID,
		Type:         s.Type,
		Status:       s.Status,
		Amount:       s.Amount,
		PeriodStart:  s.PeriodStart,
		PeriodEnd:    s.PeriodEnd,
		OccurredAt:   at,
	}
}

type Enqueuer interface {
	InsertOutboxEvent(ctx context.Context, e *repo.OutboxEvent) error
}

// Enqueue stores payload under topic. Call it with the transaction that
// performs the state change.
func Enqueue(ctx context.Context, q Enqueuer, topic string, aggregateID uuid.UUID, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	now := time.Now().UTC()
	if err := q.InsertOutboxEvent(ctx, &repo.OutboxEvent{
		ID:          uuid.Must(uuid.NewV7()),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     b,
		AvailableAt: now,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", topic, err)
	}
	return nil
}

// DecodeSettlementEvent reads the payload of a settlement topic.
func DecodeSettlementEvent(e *repo.OutboxEvent) (SettlementEvent, error) {
	var ev SettlementEvent
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode %s event %s: %w", e.Topic, e.ID, err)
	}
	return ev, nil
}
