package ledger

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-pharma-orders/internal/metrics"
	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"go.uber.org/zap"
)

// Dispatcher hands committed orders to a Publisher from a background
// goroutine. OrderPlaced never blocks: a full queue drops the order and logs it.
type Dispatcher struct {
	pub   Publisher
	rows  RowRecorder
	log   *zap.Logger
	inbox chan orders.Order
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(pub Publisher, rows RowRecorder, buf int, log *zap.Logger) *Dispatcher {
	if buf <= 0 {
		buf = 256
	}
	return &Dispatcher{
		pub:   pub,
		rows:  rows,
		log:   log.With(zap.String("component", "ledger_dispatcher")),
		inbox: make(chan orders.Order, buf),
		done:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(d.done)
		for o := range d.inbox {
			_ = mirror(ctx, d.pub, d.rows, d.log, o)
		}
	}()
}

func (d *Dispatcher) OrderPlaced(_ context.Context, o orders.Order) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.LedgerPublish("dropped")
		d.log.Warn("ledger_dispatch_after_close", zap.Int64("order_id", o.ID))
		return
	}
	select {
	case d.inbox <- o:
	default:
		metrics.LedgerPublish("dropped")
		d.log.Warn("ledger_queue_full", zap.Int64("order_id", o.ID))
	}
}

// Close stops intake; queued orders are still published. Wait blocks until
// the queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.inbox)
	}
}

func (d *Dispatcher) Wait() { <-d.done }
