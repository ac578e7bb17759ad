package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Alijeyrad/franchise_backend/internal/service"

// DomainMetrics are the business counters exported next to the HTTP ones.
// Instruments come from the global meter provider, so they start forwarding
// once InitTelemetry has run.
type DomainMetrics struct {
	revenueDistributed    metric.Int64Counter
	settlementsCreated    metric.Int64Counter
	settlementTransitions metric.Int64Counter
	outboxEvents          metric.Int64Counter
	payoutTransfers       metric.Int64Counter
}

var (
	domainOnce    sync.Once
	domainMetrics *DomainMetrics
)

// Domain returns the process-wide business counters.
func Domain() *DomainMetrics {
	domainOnce.Do(func() {
		meter := otel.Meter(meterName)
		m := &DomainMetrics{}
		m.revenueDistributed, _ = meter.Int64Counter("revenue_distributed_total",
			metric.WithDescription("Revenue records written by the distributor"))
		m.settlementsCreated, _ = meter.Int64Counter("settlements_created_total",
			metric.WithDescription("Settlements created by manual or scheduled requests"))
		m.settlementTransitions, _ = meter.Int64Counter("settlement_transitions_total",
			metric.WithDescription("Settlement state transitions"))
		m.outboxEvents, _ = meter.Int64Counter("outbox_events_total",
			metric.WithDescription("Outbox events handled by outcome"))
		m.payoutTransfers, _ = meter.Int64Counter("payout_transfers_total",
			metric.WithDescription("Payout rail transfers by outcome"))
		domainMetrics = m
	})
	return domainMetrics
}

func (m *DomainMetrics) RevenueDistributed(ctx context.Context, category string) {
	m.revenueDistributed.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (m *DomainMetrics) SettlementCreated(ctx context.Context, settlementType, source string) {
	m.settlementsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("settlement_type", settlementType),
		attribute.String("source", source),
	))
}

func (m *DomainMetrics) SettlementTransition(ctx context.Context, to string) {
	m.settlementTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

func (m *DomainMetrics) OutboxEvent(ctx context.Context, topic, outcome string) {
	m.outboxEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}

func (m *DomainMetrics) PayoutTransfer(ctx context.Context, outcome string) {
	m.payoutTransfers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
