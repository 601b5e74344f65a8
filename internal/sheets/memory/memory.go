// Package memory is an in-process spending ledger used when no spreadsheet
// is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "finbits/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
	seen map[string]int
}

var _ ports.LedgerWriter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{seen: make(map[string]int)}
}

// AppendSpending stores the row and returns a synthetic row reference.
// Rows carrying an already seen event ID are not appended twice.
func (l *Ledger) AppendSpending(_ context.Context, row ports.LedgerRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if row.EventID != "" {
		if n, ok := l.seen[row.EventID]; ok {
			return fmt.Sprintf("mem:%d", n), nil
		}
	}
	l.rows = append(l.rows, row)
	n := len(l.rows)
	if row.EventID != "" {
		l.seen[row.EventID] = n
	}
	return fmt.Sprintf("mem:%d", n), nil
}

// Rows returns a copy of the recorded rows, oldest first.
func (l *Ledger) Rows() []ports.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ports.LedgerRow(nil), l.rows...)
}
