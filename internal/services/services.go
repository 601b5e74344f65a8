// Package services orchestrates the domain rules in core against the
// repositories and the event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbits/internal/core"
	"finbits/internal/events"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

// storeErr passes not-found and validation errors through and turns any
// other repository failure into a persistence error.
func storeErr(err error, op, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrNotFound):
		var de *core.Error
		if errors.As(err, &de) {
			return err
		}
		return &core.Error{Kind: core.ErrNotFound, Msg: what + " not found", Err: err}
	case errors.Is(err, core.ErrValidation):
		return err
	default:
		return core.PersistenceError(fmt.Sprintf("failed to %s %s", op, what), err)
	}
}

// publish sends e and records the outcome. A nil publisher is an error so
// callers that depend on delivery, like the completion reward, never
// mark an event as sent.
func publish(ctx context.Context, pub events.Publisher, logger *applog.Logger, t events.Type, payload any, now time.Time) error {
	if pub == nil {
		logger.WarnContext(ctx, "Event publisher not available, skipping event",
			applog.FieldEventType, string(t))
		return errors.New("no event publisher configured")
	}
	e, err := events.NewEnvelope(t, payload, now)
	if err != nil {
		return err
	}
	err = pub.Publish(ctx, e)
	metrics.EventPublished(string(t), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", t, err)
	}
	logger.DebugContext(ctx, "Event published",
		applog.NewFields().WithEvent(string(t), e.ID).WithOperation(applog.OpPublish).ToSlice()...)
	return nil
}
