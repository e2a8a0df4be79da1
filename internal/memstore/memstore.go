// Package memstore keeps catalog, registry and orders in process memory.
// A transaction holds the store lock for its whole duration and restores the
// previous state when it fails.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[int64]orders.Product
	reps     map[int64]orders.Representative
	orders   map[int64]orders.Order
	nextID   struct{ product, rep, order int64 }

	// CreateOrderErr, when set, makes every order insert fail.
	CreateOrderErr error
}

func New() *Store {
	return &Store{
		products: map[int64]orders.Product{},
		reps:     map[int64]orders.Representative{},
		orders:   map[int64]orders.Order{},
	}
}

// AddProduct seeds a product, assigning an id when p.ID is zero.
func (s *Store) AddProduct(p orders.Product) orders.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextID.product++
		p.ID = s.nextID.product
	} else if p.ID > s.nextID.product {
		s.nextID.product = p.ID
	}
	s.products[p.ID] = p
	return p
}

func (s *Store) GetProduct(_ context.Context, id int64) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListActiveProducts(_ context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, p orders.Product) (orders.Product, error) {
	p.Price = orders.RoundMoney(p.Price)
	if err := p.Validate(); err != nil {
		return orders.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID.product++
	p.ID = s.nextID.product
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, id int64, patch orders.ProductPatch) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	p = patch.Apply(p)
	if err := p.Validate(); err != nil {
		return orders.Product{}, err
	}
	s.products[id] = p
	return p, nil
}

func (s *Store) SetStock(_ context.Context, productID int64, stock int) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	if stock < 0 {
		return orders.Product{}, orders.ErrNegativeStock
	}
	p.Stock = stock
	s.products[productID] = p
	return p, nil
}

func (s *Store) AddStock(_ context.Context, productID int64, amount int) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	if p.Stock+amount < 0 {
		return orders.Product{}, orders.ErrNegativeStock
	}
	p.Stock += amount
	s.products[productID] = p
	return p, nil
}

func (s *Store) GetRepByExternalID(_ context.Context, externalID int64) (orders.Representative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reps {
		if r.ExternalID == externalID {
			return r, nil
		}
	}
	return orders.Representative{}, orders.ErrNotFound
}

func (s *Store) GetRepByCode(_ context.Context, code string) (orders.Representative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reps {
		if r.Code == code {
			return r, nil
		}
	}
	return orders.Representative{}, orders.ErrNotFound
}

func (s *Store) CreateRep(_ context.Context, rep orders.Representative) (orders.Representative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reps {
		if r.Code == rep.Code {
			return orders.Representative{}, orders.ErrCodeTaken
		}
		if r.ExternalID == rep.ExternalID {
			return orders.Representative{}, orders.ErrIdentityTaken
		}
	}
	s.nextID.rep++
	rep.ID = s.nextID.rep
	s.reps[rep.ID] = rep
	return rep, nil
}

func (s *Store) ListReps(_ context.Context) ([]orders.Representative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Representative, 0, len(s.reps))
	for _, r := range s.reps {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateRep(_ context.Context, id int64, patch orders.RepPatch) (orders.Representative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reps[id]
	if !ok {
		return orders.Representative{}, orders.ErrNotFound
	}
	r = patch.Apply(r)
	if err := r.Validate(); err != nil {
		return orders.Representative{}, err
	}
	for _, other := range s.reps {
		if other.ID != id && other.Code == r.Code {
			return orders.Representative{}, orders.ErrCodeTaken
		}
	}
	s.reps[id] = r
	return r, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, limit int) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id int64, status orders.Status) error {
	if _, err := orders.ParseStatus(string(status)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	return nil
}

func (s *Store) SetLedgerRow(_ context.Context, id int64, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.LedgerRow = &row
	s.orders[id] = o
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	products := make(map[int64]orders.Product, len(s.products))
	for k, v := range s.products {
		products[k] = v
	}
	ordersSnap := make(map[int64]orders.Order, len(s.orders))
	for k, v := range s.orders {
		ordersSnap[k] = v
	}
	nextOrder := s.nextID.order

	if err := fn(&tx{s: s}); err != nil {
		s.products = products
		s.orders = ordersSnap
		s.nextID.order = nextOrder
		return err
	}
	return nil
}

// tx operates on the store while WithinTx holds its lock.
type tx struct{ s *Store }

func (t *tx) LockProducts(_ context.Context, ids []int64) (map[int64]orders.Product, error) {
	out := make(map[int64]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) Deduct(_ context.Context, deltas []orders.StockDelta) error {
	for _, d := range deltas {
		p, ok := t.s.products[d.ProductID]
		if !ok || p.Stock < d.Qty {
			return orders.ErrDeductionConflict
		}
		p.Stock -= d.Qty
		t.s.products[d.ProductID] = p
	}
	return nil
}

func (t *tx) CreateOrder(_ context.Context, o *orders.Order) error {
	if t.s.CreateOrderErr != nil {
		return t.s.CreateOrderErr
	}
	t.s.nextID.order++
	o.ID = t.s.nextID.order
	o.CreatedAt = time.Now().UTC()
	t.s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = slices.Clone(o.Items)
	if o.LedgerRow != nil {
		row := *o.LedgerRow
		o.LedgerRow = &row
	}
	return o
}
