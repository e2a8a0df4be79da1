// Package ledger mirrors committed orders into an external spreadsheet.
// The mirror is advisory: failures are logged and counted, never returned to
// the caller that placed the order.
package ledger

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/metrics"
	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"go.uber.org/zap"
)

// Publisher appends one order row and returns its row number.
type Publisher interface {
	Publish(ctx context.Context, o orders.Order) (int, error)
}

type RowRecorder interface {
	SetLedgerRow(ctx context.Context, id int64, row int) error
}

const publishTimeout = 15 * time.Second

// mirror publishes o and records the row reference. Failures, panics
// included, are logged and counted here; the returned error only tells the
// caller whether the row was written. A lost row reference is not an error.
func mirror(ctx context.Context, pub Publisher, rows RowRecorder, log *zap.Logger, o orders.Order) (err error) {
	log = log.With(zap.Int64("order_id", o.ID))
	defer func() {
		if r := recover(); r != nil {
			metrics.LedgerPublish("error")
			log.Error("ledger_publish_panic", zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("ledger publish panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	row, err := pub.Publish(ctx, o)
	if err != nil {
		metrics.LedgerPublish("error")
		log.Warn("ledger_publish_failed", zap.Error(err))
		return err
	}
	metrics.LedgerPublish("ok")
	log.Info("ledger_row_appended", zap.Int("row", row))

	if rows != nil {
		if err := rows.SetLedgerRow(ctx, o.ID, row); err != nil {
			log.Warn("ledger_row_not_recorded", zap.Int("row", row), zap.Error(err))
		}
	}
	return nil
}

// Disabled is used when no ledger is configured.
type Disabled struct{}

func (Disabled) Publish(context.Context, orders.Order) (int, error) {
	return 0, fmt.Errorf("publish: %w", orders.ErrLedgerNotEnabled)
}
