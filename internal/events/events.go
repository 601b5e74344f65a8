// Package events defines the domain events exchanged between the API and
// the progression/ledger consumers, plus an in-process bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeBitFullyCompleted Type = "bit.fully_completed"
	TypeSpendingRecorded  Type = "budget.spending_recorded"
)

// Envelope is the wire format of every event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

type (
	BitFullyCompleted struct {
		UserID string `json:"userId"`
		BitID  string `json:"bitId"`
		Points int    `json:"points"`
	}

	SpendingRecorded struct {
		BudgetID     string          `json:"budgetId"`
		Owner        string          `json:"owner"`
		BudgetLabel  string          `json:"budgetLabel"`
		CategoryName string          `json:"categoryName"`
		Amount       decimal.Decimal `json:"amount"`
		Remaining    decimal.Decimal `json:"remaining"`
	}
)

// NewEnvelope marshals payload into a new envelope stamped with now.
func NewEnvelope(t Type, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{ID: uuid.NewString(), Type: t, OccurredAt: now.UTC(), Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

func (e Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	if e.Type == "" {
		return Envelope{}, errors.New("envelope has no type")
	}
	return e, nil
}

// Publisher delivers events to whoever consumes them.
type Publisher interface {
	Publish(ctx context.Context, e Envelope) error
}

type Handler func(ctx context.Context, e Envelope) error

// Bus dispatches events to in-process handlers synchronously. It is used as
// the publisher when no broker is configured and as the router behind the
// broker consumer in the worker.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish runs every handler for the event type and joins their errors.
// Events without handlers are dropped.
func (b *Bus) Publish(ctx context.Context, e Envelope) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handles reports whether any handler is registered for t.
func (b *Bus) Handles(t Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t]) > 0
}
