package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-pharma-orders/internal/memstore"
	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repTelegramID = 1001

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingNotifier struct {
	mu     sync.Mutex
	placed []orders.Order
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o orders.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, o)
}

func newFixture(t *testing.T) (*memstore.Store, *orders.Engine, *recordingNotifier) {
	t.Helper()
	st := memstore.New()
	_, err := st.CreateRep(context.Background(), orders.Representative{
		Code: "MR-01", ExternalID: repTelegramID, FullName: "Ivan Petrov", IsActive: true,
	})
	require.NoError(t, err)
	n := &recordingNotifier{}
	return st, orders.NewEngine(st, n, nil), n
}

func stockOf(t *testing.T, st *memstore.Store, id int64) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func submit(eng *orders.Engine, percent int, lines ...orders.CartLine) (orders.Order, error) {
	return eng.SubmitOrder(context.Background(), orders.SubmitRequest{
		ExternalID:     repTelegramID,
		Handle:         "ivanp",
		Institution:    "City Pharmacy #3",
		PaymentPercent: percent,
		Items:          lines,
	})
}

func TestSubmitOrder_DeductsExactQuantities(t *testing.T) {
	st, eng, n := newFixture(t)
	a := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 20, Price: dec("12.50"), IsActive: true})
	b := st.AddProduct(orders.Product{Name: "Saline", Unit: "vial", Stock: 7, Price: dec("3.10"), IsActive: true})

	o, err := submit(eng, 100, orders.CartLine{ProductID: a.ID, Qty: 4}, orders.CartLine{ProductID: b.ID, Qty: 7})
	require.NoError(t, err)

	assert.Equal(t, 16, stockOf(t, st, a.ID))
	assert.Equal(t, 0, stockOf(t, st, b.ID))

	assert.NotZero(t, o.ID)
	assert.Equal(t, "MR-01", o.RepCode)
	assert.Equal(t, "Ivan Petrov", o.RepName)
	assert.Equal(t, orders.StatusNew, o.Status)
	assert.Equal(t, 11, o.TotalItems)
	assert.True(t, dec("71.70").Equal(o.TotalPrice), o.TotalPrice.String())
	assert.True(t, dec("71.70").Equal(o.PaymentAmount))
	require.Len(t, o.Items, 2)
	assert.Equal(t, "pack", o.Items[0].Unit)
	assert.True(t, dec("50.00").Equal(o.Items[0].LineTotal))

	stored, err := st.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, stored.Items)

	require.Len(t, n.placed, 1)
	assert.Equal(t, o.ID, n.placed[0].ID)
}

func TestSubmitOrder_InsufficientStockIsAllOrNothing(t *testing.T) {
	st, eng, n := newFixture(t)
	a := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 20, Price: dec("1"), IsActive: true})
	b := st.AddProduct(orders.Product{Name: "Saline", Unit: "vial", Stock: 2, Price: dec("1"), IsActive: true})

	_, err := submit(eng, 100, orders.CartLine{ProductID: a.ID, Qty: 5}, orders.CartLine{ProductID: b.ID, Qty: 3})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, b.ID, ise.ProductID)
	assert.Equal(t, 2, ise.Available)
	assert.Equal(t, "vial", ise.Unit)

	assert.Equal(t, 20, stockOf(t, st, a.ID))
	assert.Equal(t, 2, stockOf(t, st, b.ID))
	assert.Empty(t, n.placed)
}

func TestSubmitOrder_LimitExceeded(t *testing.T) {
	st, eng, _ := newFixture(t)
	a := st.AddProduct(orders.Product{Name: "Insulin", Unit: "pen", Stock: 50, Price: dec("9.99"), LimitPerOrder: 3, IsActive: true})

	_, err := submit(eng, 100, orders.CartLine{ProductID: a.ID, Qty: 4})
	require.ErrorIs(t, err, orders.ErrLimitExceeded)
	var le *orders.LimitExceededError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 3, le.Limit)
	assert.Equal(t, "pen", le.Unit)
	assert.Equal(t, 50, stockOf(t, st, a.ID))
}

func TestSubmitOrder_LimitCountsRepeatedLines(t *testing.T) {
	st, eng, _ := newFixture(t)
	a := st.AddProduct(orders.Product{Name: "Insulin", Unit: "pen", Stock: 50, Price: dec("1"), LimitPerOrder: 3, IsActive: true})

	_, err := submit(eng, 100, orders.CartLine{ProductID: a.ID, Qty: 2}, orders.CartLine{ProductID: a.ID, Qty: 2})
	require.ErrorIs(t, err, orders.ErrLimitExceeded)
	assert.Equal(t, 50, stockOf(t, st, a.ID))
}

func TestSubmitOrder_PreconditionOrder(t *testing.T) {
	st, eng, _ := newFixture(t)
	a := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 1, Price: dec("1"), LimitPerOrder: 1, IsActive: true})
	capped := st.AddProduct(orders.Product{Name: "Codeine", Unit: "pack", Stock: 10, Price: dec("1"), LimitPerOrder: 5, IsActive: true})

	cases := []struct {
		name    string
		req     orders.SubmitRequest
		wantErr error
	}{
		{"empty cart beats bad percent", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 30}, orders.ErrEmptyCart},
		{"bad percent beats zero quantity", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 30,
			Items: []orders.CartLine{{ProductID: a.ID, Qty: 0}}}, orders.ErrInvalidPaymentFraction},
		{"bad percent beats unknown submitter", orders.SubmitRequest{ExternalID: 42, PaymentPercent: 75,
			Items: []orders.CartLine{{ProductID: a.ID, Qty: 1}}}, orders.ErrInvalidPaymentFraction},
		{"unknown submitter beats zero quantity", orders.SubmitRequest{ExternalID: 42, PaymentPercent: 50,
			Items: []orders.CartLine{{ProductID: a.ID, Qty: 0}}}, orders.ErrUnauthorizedSubmitter},
		{"unknown submitter beats unknown product", orders.SubmitRequest{ExternalID: 42, PaymentPercent: 50,
			Items: []orders.CartLine{{ProductID: 999, Qty: 1}}}, orders.ErrUnauthorizedSubmitter},
		{"zero quantity", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 100,
			Items: []orders.CartLine{{ProductID: a.ID, Qty: 0}}}, orders.ErrInvalidQuantity},
		{"first line unknown beats second line short", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 50,
			Items: []orders.CartLine{{ProductID: 999, Qty: 1}, {ProductID: a.ID, Qty: 5}}}, orders.ErrUnknownProduct},
		{"stock beats limit on the same line", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 50,
			Items: []orders.CartLine{{ProductID: a.ID, Qty: 2}}}, orders.ErrInsufficientStock},
		{"first line over limit beats second line short", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 50,
			Items: []orders.CartLine{{ProductID: capped.ID, Qty: 6}, {ProductID: a.ID, Qty: 2}}}, orders.ErrLimitExceeded},
		{"first line short beats second line over limit", orders.SubmitRequest{ExternalID: repTelegramID, PaymentPercent: 50,
			Items: []orders.CartLine{{ProductID: a.ID, Qty: 2}, {ProductID: capped.ID, Qty: 6}}}, orders.ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.SubmitOrder(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, orders.KindRejection, orders.KindOf(err))
			assert.Equal(t, 1, stockOf(t, st, a.ID))
			assert.Equal(t, 10, stockOf(t, st, capped.ID))
		})
	}
}

func TestSubmitOrder_LimitErrorNamesFirstFailingLine(t *testing.T) {
	st, eng, _ := newFixture(t)
	capped := st.AddProduct(orders.Product{Name: "A", Unit: "pack", Stock: 10, Price: dec("1"), LimitPerOrder: 5, IsActive: true})
	short := st.AddProduct(orders.Product{Name: "B", Unit: "pack", Stock: 1, Price: dec("1"), IsActive: true})

	_, err := submit(eng, 100, orders.CartLine{ProductID: capped.ID, Qty: 6}, orders.CartLine{ProductID: short.ID, Qty: 2})
	var le *orders.LimitExceededError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, capped.ID, le.ProductID)
	assert.Equal(t, 5, le.Limit)
}

func TestSubmitOrder_UnknownProductNamesID(t *testing.T) {
	_, eng, _ := newFixture(t)
	_, err := submit(eng, 100, orders.CartLine{ProductID: 77, Qty: 1})
	var upe *orders.UnknownProductError
	require.ErrorAs(t, err, &upe)
	assert.EqualValues(t, 77, upe.ProductID)
}

func TestSubmitOrder_DeactivatedRepresentative(t *testing.T) {
	st, eng, _ := newFixture(t)
	rep, err := st.GetRepByExternalID(context.Background(), repTelegramID)
	require.NoError(t, err)
	inactive := false
	_, err = st.UpdateRep(context.Background(), rep.ID, orders.RepPatch{IsActive: &inactive})
	require.NoError(t, err)

	_, err = submit(eng, 100, orders.CartLine{ProductID: 1, Qty: 1})
	var ue *orders.UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, orders.ReasonDeactivated, ue.Reason)
	assert.ErrorIs(t, err, orders.ErrUnauthorizedSubmitter)
}

// countingStore records whether a transaction was ever opened.
type countingStore struct {
	*memstore.Store
	txs int
}

func (c *countingStore) WithinTx(ctx context.Context, fn func(orders.Tx) error) error {
	c.txs++
	return c.Store.WithinTx(ctx, fn)
}

func TestSubmitOrder_UnregisteredSubmitterNeverTouchesStock(t *testing.T) {
	st := &countingStore{Store: memstore.New()}
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 3, Price: dec("1"), IsActive: true})
	eng := orders.NewEngine(st, nil, nil)

	_, err := eng.SubmitOrder(context.Background(), orders.SubmitRequest{
		ExternalID: 555, PaymentPercent: 100, Items: []orders.CartLine{{ProductID: p.ID, Qty: 1}},
	})
	var ue *orders.UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, orders.ReasonNotRegistered, ue.Reason)
	assert.Zero(t, st.txs)
	assert.Equal(t, 3, stockOf(t, st.Store, p.ID))
}

func TestSubmitOrder_StockScenario(t *testing.T) {
	st, eng, _ := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 10, Price: dec("2"), LimitPerOrder: 5, IsActive: true})
	line := orders.CartLine{ProductID: p.ID, Qty: 5}

	_, err := submit(eng, 100, line)
	require.NoError(t, err)
	assert.Equal(t, 5, stockOf(t, st, p.ID))

	_, err = submit(eng, 100, line)
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, st, p.ID))

	_, err = submit(eng, 100, line)
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 0, ise.Available)
}

func TestSubmitOrder_RejectionIsRepeatable(t *testing.T) {
	st, eng, _ := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 2, Price: dec("1"), IsActive: true})

	for i := 0; i < 3; i++ {
		_, err := submit(eng, 100, orders.CartLine{ProductID: p.ID, Qty: 3})
		require.ErrorIs(t, err, orders.ErrInsufficientStock)
		assert.Equal(t, 2, stockOf(t, st, p.ID))
	}
}

func TestSubmitOrder_ConcurrentOversell(t *testing.T) {
	st, eng, _ := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 10, Price: dec("1"), IsActive: true})

	const qty = 6
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = submit(eng, 100, orders.CartLine{ProductID: p.ID, Qty: qty})
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, orders.ErrInsufficientStock), errors.Is(err, orders.ErrDeductionConflict):
			failed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 10-qty, stockOf(t, st, p.ID))
}

func TestSubmitOrder_PersistenceFailureRollsBackDeduction(t *testing.T) {
	st, eng, n := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 10, Price: dec("1"), IsActive: true})
	st.CreateOrderErr = errors.New("disk full")

	_, err := submit(eng, 100, orders.CartLine{ProductID: p.ID, Qty: 4})
	require.ErrorIs(t, err, orders.ErrPersistence)
	assert.Equal(t, orders.KindPersistence, orders.KindOf(err))
	assert.Equal(t, 10, stockOf(t, st, p.ID))

	list, err := st.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, n.placed)
}

// conflictStore simulates a deduction that loses a race after validation.
type conflictStore struct{ *memstore.Store }

func (c conflictStore) WithinTx(ctx context.Context, fn func(orders.Tx) error) error {
	return c.Store.WithinTx(ctx, func(tx orders.Tx) error { return fn(conflictTx{tx}) })
}

type conflictTx struct{ orders.Tx }

func (conflictTx) Deduct(context.Context, []orders.StockDelta) error {
	return orders.ErrDeductionConflict
}

func TestSubmitOrder_DeductionConflict(t *testing.T) {
	st, _, _ := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 10, Price: dec("1"), IsActive: true})
	eng := orders.NewEngine(conflictStore{st}, nil, nil)

	_, err := submit(eng, 100, orders.CartLine{ProductID: p.ID, Qty: 1})
	require.ErrorIs(t, err, orders.ErrDeductionConflict)
	assert.Equal(t, orders.KindConflict, orders.KindOf(err))
	assert.Equal(t, 10, stockOf(t, st, p.ID))
}

func TestSubmitOrder_HalfPaymentRounding(t *testing.T) {
	st, eng, _ := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Kit", Unit: "pcs", Stock: 10, Price: dec("199.99"), IsActive: true})

	o, err := submit(eng, 50, orders.CartLine{ProductID: p.ID, Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, "199.99", o.TotalPrice.StringFixed(2))
	assert.Equal(t, "100.00", o.PaymentAmount.StringFixed(2))
	assert.Equal(t, 50, o.PaymentPercent)
}

func TestSubmitOrder_SnapshotSurvivesCatalogEdits(t *testing.T) {
	st, eng, _ := newFixture(t)
	p := st.AddProduct(orders.Product{Name: "Aspirin", Unit: "pack", Stock: 10, Price: dec("5.00"), IsActive: true})

	o, err := submit(eng, 100, orders.CartLine{ProductID: p.ID, Qty: 2})
	require.NoError(t, err)

	p.Price = dec("99.00")
	p.Name = "Aspirin Forte"
	st.AddProduct(p)

	stored, err := st.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", stored.Items[0].ProductName)
	assert.Equal(t, "5.00", stored.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "10.00", stored.TotalPrice.StringFixed(2))
}
