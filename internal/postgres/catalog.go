package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
	return p, notFound(err)
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]orders.Product, error) {
	return s.listProducts(ctx, `SELECT `+productCols+` FROM products WHERE is_active ORDER BY id`)
}

// ListProducts returns the whole catalog, inactive products included.
func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	return s.listProducts(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
}

func (s *Store) listProducts(ctx context.Context, query string) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	p.Price = orders.RoundMoney(p.Price)
	if err := p.Validate(); err != nil {
		return orders.Product{}, err
	}
	return scanProduct(s.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, unit, stock, price, limit_per_order, is_active)
		VALUES ($1, $2, $3, $4, $5::numeric, NULLIF($6, 0), $7)
		RETURNING `+productCols,
		p.Name, p.Description, p.Unit, p.Stock, p.Price.StringFixed(2), p.LimitPerOrder, p.IsActive))
}

// UpdateProduct locks the row, applies the patch and writes every editable
// column back. Stock is left to SetStock and AddStock.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch orders.ProductPatch) (orders.Product, error) {
	var out orders.Product
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err)
		}
		next := patch.Apply(cur)
		if err := next.Validate(); err != nil {
			return err
		}
		out, err = scanProduct(tx.QueryRow(ctx, `
			UPDATE products
			SET name = $2, description = $3, unit = $4, price = $5::numeric,
			    limit_per_order = NULLIF($6, 0), is_active = $7
			WHERE id = $1
			RETURNING `+productCols,
			id, next.Name, next.Description, next.Unit, next.Price.StringFixed(2), next.LimitPerOrder, next.IsActive))
		return err
	})
	return out, err
}

func (s *Store) SetStock(ctx context.Context, productID int64, stock int) (orders.Product, error) {
	if stock < 0 {
		return orders.Product{}, orders.ErrNegativeStock
	}
	p, err := scanProduct(s.DB.QueryRow(ctx,
		`UPDATE products SET stock = $2 WHERE id = $1 RETURNING `+productCols, productID, stock))
	return p, notFound(err)
}

func (s *Store) AddStock(ctx context.Context, productID int64, amount int) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1 AND stock + $2 >= 0 RETURNING `+productCols,
		productID, amount))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := s.GetProduct(ctx, productID); gerr != nil {
			return orders.Product{}, gerr
		}
		return orders.Product{}, orders.ErrNegativeStock
	}
	return p, err
}
