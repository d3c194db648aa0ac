package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
)

// ConfirmationWorker polls for transaction receipts.
type ConfirmationWorker struct {
	receipts    ledger.ReceiptSource
	interval    time.Duration
	maxAttempts int
}

type NewConfirmationWorkerOptions struct {
	Receipts    ledger.ReceiptSource
	Interval    time.Duration
	MaxAttempts int
}

func NewConfirmationWorker(opts NewConfirmationWorkerOptions) *ConfirmationWorker {
	if opts.Interval <= 0 {
		opts.Interval = constants.ReceiptPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = constants.ReceiptMaxAttempts
	}
	return &ConfirmationWorker{
		receipts:    opts.Receipts,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
	}
}

// Budget is the longest Wait will poll for.
func (w *ConfirmationWorker) Budget() time.Duration {
	return time.Duration(w.maxAttempts) * w.interval
}

// Wait polls for the receipt of id, first immediately and then once per
// interval. A not found receipt is retried; any other error ends the wait.
// After maxAttempts lookups a *ledger.TimeoutError is returned.
func (w *ConfirmationWorker) Wait(ctx context.Context, id ledger.TxID) (*ledger.Receipt, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		receipt, err := w.receipts.Receipt(ctx, id)
		if err == nil {
			log.Debug("Transaction %s confirmed at height %d after %d attempts", id, receipt.BlockHeight, attempt)
			return receipt, nil
		}
		if !ledger.IsNotFound(err) {
			return nil, fmt.Errorf("failed to get receipt of %s: %w", id, err)
		}
		if attempt >= w.maxAttempts {
			return nil, &ledger.TimeoutError{TxID: id, Attempts: w.maxAttempts, Interval: w.interval}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Watch runs Wait in the background and hands the outcome to callback.
func (w *ConfirmationWorker) Watch(ctx context.Context, id ledger.TxID, callback func(*ledger.Receipt, error)) {
	go func() {
		callback(w.Wait(ctx, id))
	}()
}
