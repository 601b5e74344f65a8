package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbits/internal/events"
)

type recorder struct {
	rewards []events.Envelope
	ledger  []events.Envelope
	err     error
}

func (r *recorder) HandleBitFullyCompleted(_ context.Context, e events.Envelope) error {
	r.rewards = append(r.rewards, e)
	return r.err
}

func (r *recorder) HandleSpendingRecorded(_ context.Context, e events.Envelope) error {
	r.ledger = append(r.ledger, e)
	return r.err
}

func envelope(t *testing.T, typ events.Type) events.Envelope {
	t.Helper()
	e, err := events.NewEnvelope(typ, map[string]string{"k": "v"}, time.Now())
	require.NoError(t, err)
	return e
}

func TestEventWorkerRoutesByType(t *testing.T) {
	rec := &recorder{}
	w := New(rec, rec, nil)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, envelope(t, events.TypeBitFullyCompleted)))
	require.NoError(t, w.Handle(ctx, envelope(t, events.TypeSpendingRecorded)))
	require.NoError(t, w.Handle(ctx, envelope(t, "unknown.event")))

	assert.Len(t, rec.rewards, 1)
	assert.Len(t, rec.ledger, 1)
}

func TestEventWorkerWithoutLedger(t *testing.T) {
	rec := &recorder{}
	w := New(rec, nil, nil)

	require.NoError(t, w.Handle(context.Background(), envelope(t, events.TypeSpendingRecorded)))
	assert.Empty(t, rec.ledger)
}

func TestEventWorkerReturnsHandlerError(t *testing.T) {
	rec := &recorder{err: errors.New("store down")}
	w := New(rec, nil, nil)

	err := w.Handle(context.Background(), envelope(t, events.TypeBitFullyCompleted))
	assert.ErrorContains(t, err, "store down")
}

type fakeConsumer struct {
	deliveries []events.Envelope
	handled    []error
}

func (c *fakeConsumer) Consume(ctx context.Context, handler events.Handler) error {
	for _, d := range c.deliveries {
		c.handled = append(c.handled, handler(ctx, d))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEventWorkerRun(t *testing.T) {
	rec := &recorder{}
	w := New(rec, rec, nil)
	c := &fakeConsumer{deliveries: []events.Envelope{
		envelope(t, events.TypeBitFullyCompleted),
		envelope(t, events.TypeSpendingRecorded),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx, c))
	assert.Equal(t, []error{nil, nil}, c.handled)
	assert.Len(t, rec.rewards, 1)
}
