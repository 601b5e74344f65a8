// Package worker routes domain events to their consumers, either in process
// or from the broker queue.
package worker

import (
	"context"

	"finbits/internal/events"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

// Consumer delivers broker messages to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler events.Handler) error
}

type (
	// RewardHandler is satisfied by the progression service.
	RewardHandler interface {
		HandleBitFullyCompleted(ctx context.Context, e events.Envelope) error
	}

	// LedgerHandler is satisfied by the ledger service.
	LedgerHandler interface {
		HandleSpendingRecorded(ctx context.Context, e events.Envelope) error
	}
)

// EventWorker dispatches envelopes to registered handlers and records
// metrics for each one. It also implements events.Publisher so the API can
// deliver events synchronously when no broker is configured.
type EventWorker struct {
	bus    *events.Bus
	logger *applog.Logger
}

var _ events.Publisher = (*EventWorker)(nil)

// New registers the progression handler and, when ledger is non-nil, the
// spending ledger handler.
func New(rewards RewardHandler, ledger LedgerHandler, logger *applog.Logger) *EventWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	w := &EventWorker{bus: events.NewBus(), logger: logger.WithComponent(applog.ComponentWorker)}
	if rewards != nil {
		w.bus.Subscribe(events.TypeBitFullyCompleted, rewards.HandleBitFullyCompleted)
	}
	if ledger != nil {
		w.bus.Subscribe(events.TypeSpendingRecorded, ledger.HandleSpendingRecorded)
	}
	return w
}

// Handle runs every handler for the event. Events nobody handles are
// acknowledged and dropped.
func (w *EventWorker) Handle(ctx context.Context, e events.Envelope) error {
	fields := applog.NewFields().WithEvent(string(e.Type), e.ID).WithOperation(applog.OpConsume)
	if !w.bus.Handles(e.Type) {
		w.logger.DebugContext(ctx, "No handler for event", fields.ToSlice()...)
		return nil
	}
	err := w.bus.Publish(ctx, e)
	metrics.EventHandled(string(e.Type), err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Event handler failed", fields.WithError(err).ToSlice()...)
		return err
	}
	w.logger.DebugContext(ctx, "Event handled", fields.ToSlice()...)
	return nil
}

// Publish delivers e in process.
func (w *EventWorker) Publish(ctx context.Context, e events.Envelope) error {
	return w.Handle(ctx, e)
}

// Run consumes from c until ctx is done. Ending because ctx is done is not an error.
func (w *EventWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.Info("Event worker started", applog.FieldOperation, applog.OpStartup)
	err := c.Consume(ctx, w.Handle)
	if err != nil && ctx.Err() == nil {
		return err
	}
	w.logger.Info("Event worker stopped", applog.FieldOperation, applog.OpShutdown)
	return nil
}
