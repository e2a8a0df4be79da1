package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type pgTx struct{ tx pgx.Tx }

// LockProducts takes row locks in id order so concurrent carts touching the
// same products queue up instead of deadlocking.
func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]orders.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productCols+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]orders.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *pgTx) Deduct(ctx context.Context, deltas []orders.StockDelta) error {
	for _, d := range deltas {
		ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, d.ProductID, d.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			return fmt.Errorf("%w: product %d", orders.ErrDeductionConflict, d.ProductID)
		}
	}
	return nil
}

func (t *pgTx) CreateOrder(ctx context.Context, o *orders.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(telegram_id, telegram_username, rep_code, full_name, institution,
		                   total_items, total_price, payment_percent, payment_amount, status)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7::numeric, $8, $9::numeric, $10)
		RETURNING id, created_at`,
		o.ExternalID, o.Handle, o.RepCode, o.RepName, o.Institution,
		o.TotalItems, o.TotalPrice.StringFixed(2), o.PaymentPercent, o.PaymentAmount.StringFixed(2), string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, line_no, product_id, product_name, quantity, unit, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric)`,
			o.ID, i+1, it.ProductID, it.ProductName, it.Quantity, it.Unit,
			it.UnitPrice.StringFixed(2), it.LineTotal.StringFixed(2),
		); err != nil {
			return err
		}
	}
	return nil
}

const orderCols = `id, telegram_id, COALESCE(telegram_username, ''), rep_code, full_name, institution,
	total_items, total_price::text, payment_percent, payment_amount::text, status, created_at, ledger_row`

func scanOrder(row scanner) (orders.Order, error) {
	var (
		o              orders.Order
		total, payment string
		status         string
	)
	if err := row.Scan(&o.ID, &o.ExternalID, &o.Handle, &o.RepCode, &o.RepName, &o.Institution,
		&o.TotalItems, &total, &o.PaymentPercent, &payment, &status, &o.CreatedAt, &o.LedgerRow); err != nil {
		return orders.Order{}, err
	}
	var err error
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return orders.Order{}, err
	}
	if o.PaymentAmount, err = decimal.NewFromString(payment); err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return orders.Order{}, notFound(err)
	}
	list := []orders.Order{o}
	if err := s.loadItems(ctx, list); err != nil {
		return orders.Order{}, err
	}
	return list[0], nil
}

// ListOrders returns the newest orders first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]orders.Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	byID := make(map[int64]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		byID[o.ID] = i
	}

	rows, err := s.DB.Query(ctx, `
		SELECT order_id, product_id, product_name, quantity, unit, unit_price::text, line_total::text
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID      int64
			it           orders.LineItem
			price, total string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Unit, &price, &total); err != nil {
			return err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return err
		}
		if it.LineTotal, err = decimal.NewFromString(total); err != nil {
			return err
		}
		i := byID[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status orders.Status) error {
	if _, err := orders.ParseStatus(string(status)); err != nil {
		return err
	}
	ct, err := s.DB.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (s *Store) SetLedgerRow(ctx context.Context, id int64, row int) error {
	ct, err := s.DB.Exec(ctx, `UPDATE orders SET ledger_row = $2 WHERE id = $1`, id, row)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}
