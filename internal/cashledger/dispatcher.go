package cashledger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// InflowSender abstracts the external ledger client for dispatch.
type InflowSender interface {
	CreateCashInflow(ctx context.Context, in InflowInput) (string, error)
}

// OutboxStore abstracts outbox persistence for dispatch.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]Entry, error)
	MarkDispatched(ctx context.Context, id int64, saleID uuid.UUID, inflowID string) error
	MarkFailed(ctx context.Context, id int64, attempts int, lastError string, terminal bool) error
}

// Dispatcher drains pending outbox entries to the external ledger. One entry
// failing never blocks the rest; entries past the attempt cap are parked as
// failed for manual follow-up.
type Dispatcher struct {
	store       OutboxStore
	sender      InflowSender
	maxAttempts int
	logger      *slog.Logger
}

// NewDispatcher constructs Dispatcher.
func NewDispatcher(store OutboxStore, sender InflowSender, maxAttempts int, logger *slog.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{store: store, sender: sender, maxAttempts: maxAttempts, logger: logger}
}

// Drain dispatches all pending entries and returns how many went through.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	entries, err := d.store.ListPending(ctx, 100)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, e := range entries {
		inflowID, err := d.sender.CreateCashInflow(ctx, InflowInput{
			Date:        e.SaleDate,
			Amount:      e.Amount,
			Description: e.Description,
		})
		if err != nil {
			attempts := e.Attempts + 1
			terminal := attempts >= d.maxAttempts
			if d.logger != nil {
				d.logger.Error("cash inflow dispatch failed",
					slog.Int64("outbox_id", e.ID),
					slog.Int("attempts", attempts),
					slog.Bool("terminal", terminal),
					slog.Any("error", err))
			}
			if markErr := d.store.MarkFailed(ctx, e.ID, attempts, err.Error(), terminal); markErr != nil {
				return dispatched, markErr
			}
			continue
		}
		if err := d.store.MarkDispatched(ctx, e.ID, e.SaleID, inflowID); err != nil {
			return dispatched, err
		}
		dispatched++
		if d.logger != nil {
			d.logger.Info("cash inflow dispatched",
				slog.Int64("outbox_id", e.ID),
				slog.String("inflow_id", inflowID))
		}
	}
	return dispatched, nil
}
