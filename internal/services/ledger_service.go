package services

import (
	"context"
	"fmt"

	"finbits/internal/events"
	applog "finbits/internal/log"
	"finbits/internal/sheets"
)

// LedgerService exports recorded spending to the ledger writer.
type LedgerService struct {
	writer sheets.LedgerWriter
	logger *applog.Logger
}

func NewLedgerService(writer sheets.LedgerWriter, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LedgerService{writer: writer, logger: logger.WithComponent(applog.ComponentLedger)}
}

func (s *LedgerService) HandleSpendingRecorded(ctx context.Context, e events.Envelope) error {
	row, err := sheets.RowFromEnvelope(e)
	if err != nil {
		return err
	}
	ref, err := s.writer.AppendSpending(ctx, row)
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	fields := applog.NewFields().WithEvent(string(e.Type), e.ID).WithBudget(row.BudgetID, row.BudgetLabel)
	fields[applog.FieldLedgerRef] = ref
	s.logger.DebugContext(ctx, "Spending exported", fields.ToSlice()...)
	return nil
}
