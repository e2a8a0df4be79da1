package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/metrics"
	"go.uber.org/zap"
)

// Engine validates carts, deducts stock and persists orders as one unit of
// work, then hands the committed order to the Notifier.
type Engine struct {
	store    Store
	notifier Notifier
	log      *zap.Logger
}

func NewEngine(store Store, notifier Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, notifier: notifier, log: log.With(zap.String("component", "order_engine"))}
}

func (e *Engine) SubmitOrder(ctx context.Context, req SubmitRequest) (Order, error) {
	start := time.Now()
	o, err := e.submit(ctx, req)
	if err != nil {
		kind := KindOf(err)
		metrics.ObserveSubmission(string(kind), time.Since(start))
		fields := []zap.Field{zap.Int64("telegram_id", req.ExternalID), zap.Error(err)}
		switch kind {
		case KindRejection:
			e.log.Info("order_rejected", fields...)
		case KindConflict:
			e.log.Warn("order_deduction_conflict", fields...)
		default:
			e.log.Error("order_persistence_failed", fields...)
		}
		return Order{}, err
	}
	metrics.ObserveSubmission("ok", time.Since(start))
	e.log.Info("order_placed",
		zap.Int64("order_id", o.ID),
		zap.String("rep_code", o.RepCode),
		zap.String("total_price", o.TotalPrice.StringFixed(2)),
		zap.Int("payment_percent", o.PaymentPercent),
	)

	if e.notifier != nil {
		e.notifier.OrderPlaced(context.WithoutCancel(ctx), o)
	}
	return o, nil
}

func (e *Engine) submit(ctx context.Context, req SubmitRequest) (Order, error) {
	if len(req.Items) == 0 {
		return Order{}, ErrEmptyCart
	}
	if !ValidPaymentPercent(req.PaymentPercent) {
		return Order{}, fmt.Errorf("%w: %d", ErrInvalidPaymentFraction, req.PaymentPercent)
	}

	rep, err := e.store.GetRepByExternalID(ctx, req.ExternalID)
	if errors.Is(err, ErrNotFound) {
		return Order{}, &UnauthorizedError{ExternalID: req.ExternalID, Reason: ReasonNotRegistered}
	}
	if err != nil {
		return Order{}, fmt.Errorf("%w: lookup representative: %w", ErrPersistence, err)
	}
	if !rep.IsActive {
		return Order{}, &UnauthorizedError{ExternalID: req.ExternalID, Reason: ReasonDeactivated}
	}
	for _, l := range req.Items {
		if l.Qty <= 0 {
			return Order{}, fmt.Errorf("%w: product %d quantity %d", ErrInvalidQuantity, l.ProductID, l.Qty)
		}
	}

	deltas := aggregate(req.Items)
	ids := make([]int64, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.ProductID)
	}

	var order Order
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("%w: read catalog: %w", ErrPersistence, err)
		}
		if err := validateCart(deltas, products); err != nil {
			return err
		}

		order = buildOrder(req, rep, products)

		if err := tx.Deduct(ctx, deltas); err != nil {
			if errors.Is(err, ErrDeductionConflict) {
				return err
			}
			return fmt.Errorf("%w: deduct stock: %w", ErrPersistence, err)
		}
		if err := tx.CreateOrder(ctx, &order); err != nil {
			return fmt.Errorf("%w: create order: %w", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		if KindOf(err) == KindPersistence && !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return Order{}, err
	}
	return order, nil
}

// aggregate sums quantities per product, keeping first-seen order.
func aggregate(lines []CartLine) []StockDelta {
	idx := make(map[int64]int, len(lines))
	out := make([]StockDelta, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, StockDelta{ProductID: l.ProductID, Qty: l.Qty})
	}
	return out
}

// validateCart checks each product in first-seen order: it must exist, fit
// the current stock and respect its per-order limit. The first failing line
// decides the error.
func validateCart(deltas []StockDelta, products map[int64]Product) error {
	for _, d := range deltas {
		p, ok := products[d.ProductID]
		if !ok {
			return &UnknownProductError{ProductID: d.ProductID}
		}
		if d.Qty > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: d.Qty, Available: p.Stock, Unit: p.Unit}
		}
		if p.HasLimit() && d.Qty > p.LimitPerOrder {
			return &LimitExceededError{ProductID: p.ID, Name: p.Name, Requested: d.Qty, Limit: p.LimitPerOrder, Unit: p.Unit}
		}
	}
	return nil
}

func buildOrder(req SubmitRequest, rep Representative, products map[int64]Product) Order {
	items := make([]LineItem, 0, len(req.Items))
	for _, l := range req.Items {
		p := products[l.ProductID]
		items = append(items, LineItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Qty,
			Unit:        p.Unit,
			UnitPrice:   p.Price,
			LineTotal:   LineTotal(p.Price, l.Qty),
		})
	}
	totalItems, totalPrice, payment := Totals(items, req.PaymentPercent)
	return Order{
		ExternalID:     req.ExternalID,
		Handle:         req.Handle,
		RepCode:        rep.Code,
		RepName:        rep.FullName,
		Institution:    req.Institution,
		Items:          items,
		TotalItems:     totalItems,
		TotalPrice:     totalPrice,
		PaymentPercent: req.PaymentPercent,
		PaymentAmount:  payment,
		Status:         StatusNew,
	}
}
