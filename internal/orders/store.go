package orders

import "context"

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListActiveProducts(ctx context.Context) ([]Product, error)
}

// StockAdmin holds the admin-only stock mutations; the engine never calls these.
type StockAdmin interface {
	SetStock(ctx context.Context, productID int64, stock int) (Product, error)
	AddStock(ctx context.Context, productID int64, amount int) (Product, error)
}

// CatalogAdmin is the back-office view of the catalog, inactive products
// included.
type CatalogAdmin interface {
	Catalog
	StockAdmin
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error)
}

type Registry interface {
	GetRepByExternalID(ctx context.Context, externalID int64) (Representative, error)
	GetRepByCode(ctx context.Context, code string) (Representative, error)
}

type RegistryAdmin interface {
	Registry
	CreateRep(ctx context.Context, rep Representative) (Representative, error)
	ListReps(ctx context.Context) ([]Representative, error)
	// UpdateRep re-checks code uniqueness against the other representatives.
	UpdateRep(ctx context.Context, id int64, patch RepPatch) (Representative, error)
}

type OrderRepo interface {
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetLedgerRow(ctx context.Context, id int64, row int) error
}

// Tx is the storage handle for one submission. It lives for the duration of a
// single WithinTx call and is released on every exit path.
type Tx interface {
	// LockProducts reads the requested products and holds them against
	// concurrent deductions until the transaction ends. Missing ids are absent
	// from the result.
	LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	// Deduct subtracts every delta or none. A delta that no longer fits the
	// current stock yields ErrDeductionConflict.
	Deduct(ctx context.Context, deltas []StockDelta) error
	// CreateOrder inserts the order with its items and fills ID and CreatedAt.
	CreateOrder(ctx context.Context, o *Order) error
}

type Store interface {
	Registry
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Notifier receives an order after it is committed. Implementations must not
// block the caller beyond a hand-off and report nothing back.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order)
}
