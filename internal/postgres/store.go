package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Store implements every storage interface of the orders package on Postgres.
type Store struct{ DB DB }

type scanner interface {
	Scan(dest ...any) error
}

const productCols = `id, name, COALESCE(description, ''), unit, stock, price::text, COALESCE(limit_per_order, 0), is_active`

func scanProduct(row scanner) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Unit, &p.Stock, &price, &p.LimitPerOrder, &p.IsActive); err != nil {
		return orders.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Product{}, err
	}
	p.Price = d
	return p, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ErrNotFound
	}
	return err
}

func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// WithinTx runs fn in one transaction, committing on nil and rolling back on
// any error or panic.
func (s *Store) WithinTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error { return fn(&pgTx{tx: tx}) })
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	finished = true
	return tx.Commit(ctx)
}
