package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/filmledger/filmledger/internal/cashledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCashOutboxDispatch drains pending cash inflow entries to the
	// external ledger. Enqueued after every sale and by the cron sweep.
	TaskCashOutboxDispatch = "cash:outbox:dispatch"
)

// CashOutboxDispatchPayload carries scheduling metadata.
type CashOutboxDispatchPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewCashOutboxDispatchTask constructs an Asynq task for an outbox drain.
func NewCashOutboxDispatchTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(CashOutboxDispatchPayload{RequestedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCashOutboxDispatch, body, asynq.Queue(QueueDefault)), nil
}

// NewCashOutboxDispatchHandler builds the handler draining the outbox. Drain
// is idempotent over the pending set, so overlapping enqueues are harmless.
func NewCashOutboxDispatchHandler(dispatcher *cashledger.Dispatcher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CashOutboxDispatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		n, err := dispatcher.Drain(ctx)
		if err != nil {
			return err
		}
		if logger != nil && n > 0 {
			logger.Info("cash outbox drained", slog.Int("dispatched", n))
		}
		return nil
	}
}
