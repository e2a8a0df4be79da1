package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/jackc/pgx/v5"
)

const repCols = `id, code, telegram_id, full_name, is_active`

func scanRep(row scanner) (orders.Representative, error) {
	var r orders.Representative
	err := row.Scan(&r.ID, &r.Code, &r.ExternalID, &r.FullName, &r.IsActive)
	return r, err
}

func (s *Store) GetRepByExternalID(ctx context.Context, externalID int64) (orders.Representative, error) {
	r, err := scanRep(s.DB.QueryRow(ctx, `SELECT `+repCols+` FROM representatives WHERE telegram_id = $1`, externalID))
	return r, notFound(err)
}

func (s *Store) GetRepByCode(ctx context.Context, code string) (orders.Representative, error) {
	r, err := scanRep(s.DB.QueryRow(ctx, `SELECT `+repCols+` FROM representatives WHERE code = $1`, code))
	return r, notFound(err)
}

// CreateRep checks both unique keys before inserting; the table constraints
// catch whatever slips through between the check and the insert.
func (s *Store) CreateRep(ctx context.Context, rep orders.Representative) (orders.Representative, error) {
	if _, err := s.GetRepByCode(ctx, rep.Code); err == nil {
		return orders.Representative{}, orders.ErrCodeTaken
	} else if !errors.Is(err, orders.ErrNotFound) {
		return orders.Representative{}, err
	}
	if _, err := s.GetRepByExternalID(ctx, rep.ExternalID); err == nil {
		return orders.Representative{}, orders.ErrIdentityTaken
	} else if !errors.Is(err, orders.ErrNotFound) {
		return orders.Representative{}, err
	}

	out, err := scanRep(s.DB.QueryRow(ctx, `
		INSERT INTO representatives(code, telegram_id, full_name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+repCols, rep.Code, rep.ExternalID, rep.FullName, rep.IsActive))
	if c, ok := uniqueViolation(err); ok {
		if strings.Contains(c, "code") {
			return orders.Representative{}, orders.ErrCodeTaken
		}
		return orders.Representative{}, orders.ErrIdentityTaken
	}
	return out, err
}

func (s *Store) ListReps(ctx context.Context) ([]orders.Representative, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+repCols+` FROM representatives ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Representative
	for rows.Next() {
		r, err := scanRep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRep applies patch under a row lock. A changed code is checked against
// the other representatives first; the unique constraint backs the check.
func (s *Store) UpdateRep(ctx context.Context, id int64, patch orders.RepPatch) (orders.Representative, error) {
	var out orders.Representative
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanRep(tx.QueryRow(ctx, `SELECT `+repCols+` FROM representatives WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err)
		}
		next := patch.Apply(cur)
		if err := next.Validate(); err != nil {
			return err
		}
		if next.Code != cur.Code {
			var other int64
			err := tx.QueryRow(ctx, `SELECT id FROM representatives WHERE code = $1 AND id <> $2`, next.Code, id).Scan(&other)
			if err == nil {
				return orders.ErrCodeTaken
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}
		out, err = scanRep(tx.QueryRow(ctx, `
			UPDATE representatives SET code = $2, full_name = $3, is_active = $4
			WHERE id = $1
			RETURNING `+repCols, id, next.Code, next.FullName, next.IsActive))
		if _, ok := uniqueViolation(err); ok {
			return orders.ErrCodeTaken
		}
		return err
	})
	return out, err
}
