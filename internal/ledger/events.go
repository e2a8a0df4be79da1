package ledger

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-pharma-orders/internal/kafka"
	"github.com/ariefcatur/go-pharma-orders/internal/metrics"
	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type producer interface {
	Publish(key, value []byte, headers ...kafkago.Header) bool
}

// EventNotifier publishes an OrderPlaced envelope for every committed order;
// the ledger worker consumes it on the other side.
type EventNotifier struct {
	Producer producer
	Service  string
	Log      *zap.Logger
}

func (n *EventNotifier) OrderPlaced(ctx context.Context, o orders.Order) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: strconv.FormatInt(o.ID, 10),
		Payload:       kafkax.MustMarshal(orders.OrderPlacedPayload{Order: o}),
	}
	ok := n.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if !ok {
		metrics.LedgerPublish("dropped")
		n.Log.Warn("order_event_dropped", zap.Int64("order_id", o.ID))
	}
}

type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// Worker consumes OrderPlaced events and appends them to the ledger. A failed
// publish is returned so the consumer retries the message; a message that
// cannot be decoded is logged and skipped, since no retry can fix it.
type Worker struct {
	Publisher Publisher
	Rows      RowRecorder
	Dedup     Deduper
	Log       *zap.Logger
}

func (w *Worker) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		w.poison(m, err)
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	log := w.Log.With(zap.String("event_id", env.EventID), zap.String("trace_id", env.TraceID))
	if w.Dedup != nil {
		seen, err := w.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			log.Warn("dedup_lookup_failed", zap.Error(err))
		}
		if seen {
			metrics.LedgerPublish("duplicate")
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		w.poison(m, err)
		return nil
	}
	if err := mirror(ctx, w.Publisher, w.Rows, log, p.Order); err != nil {
		return err
	}
	if w.Dedup != nil {
		if err := w.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("dedup_mark_failed", zap.Error(err))
		}
	}
	return nil
}

func (w *Worker) poison(m kafkago.Message, err error) {
	metrics.LedgerPublish("poison")
	w.Log.Error("ledger_event_undecodable",
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Error(err))
}
