package services

import (
	"context"

	"saldo/internal/amqp"
	"saldo/internal/log"
)

// EventPublisher receives ledger events after their unit of work committed.
// *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// publishAll sends events without failing the caller: the ledger change is
// already durable, so a broker problem is only logged.
func publishAll(ctx context.Context, pub EventPublisher, logger *log.Logger, events ...*amqp.LedgerEvent) {
	if pub == nil {
		logger.DebugContext(ctx, "Event publisher not configured, skipping ledger events", "count", len(events))
		return
	}
	for _, ev := range events {
		if err := pub.Publish(ctx, ev); err != nil {
			logger.ErrorContext(ctx, "Failed to publish ledger event",
				log.FieldEventType, ev.Type,
				log.FieldAccountID, ev.AccountID,
				log.FieldError, err)
		}
	}
}
