package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"github.com/ariefcatur/go-pharma-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Submitter interface {
	SubmitOrder(ctx context.Context, req orders.SubmitRequest) (orders.Order, error)
}

// IdempotencyStore keys are scoped to the submitter and bound to a request
// fingerprint.
type IdempotencyStore interface {
	Claim(ctx context.Context, owner int64, key, fingerprint string) (stored []byte, claimed bool, err error)
	Complete(ctx context.Context, owner int64, key, fingerprint string, confirmation []byte) error
	Release(ctx context.Context, owner int64, key string) error
}

type OrdersHandler struct {
	Engine   Submitter
	Catalog  orders.Catalog
	Registry orders.Registry
	Idem     IdempotencyStore // optional
	Log      *zap.Logger
	Timeout  time.Duration
}

type CreateOrderReq struct {
	TelegramID       int64             `json:"telegram_id"`
	TelegramUsername string            `json:"telegram_username"`
	Institution      string            `json:"institution"`
	PaymentPercent   int               `json:"payment_percent"`
	Items            []orders.CartLine `json:"items"`
}

type CreateOrderResp struct {
	OK             bool        `json:"ok"`
	OrderID        int64       `json:"order_id"`
	RepCode        string      `json:"rep_code"`
	TotalPrice     json.Number `json:"total_price"`
	PaymentAmount  json.Number `json:"payment_amount"`
	PaymentPercent int         `json:"payment_percent"`
}

type productView struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Unit          string      `json:"unit"`
	Stock         int         `json:"stock"`
	Price         json.Number `json:"price"`
	LimitPerOrder *int        `json:"limit_per_order"`
	Available     bool        `json:"available"`
	IsActive      bool        `json:"is_active"`
}

func toProductView(p orders.Product) productView {
	v := productView{
		ID: p.ID, Name: p.Name, Description: p.Description, Unit: p.Unit,
		Stock: p.Stock, Price: money(p.Price), Available: p.Stock > 0, IsActive: p.IsActive,
	}
	if p.HasLimit() {
		limit := p.LimitPerOrder
		v.LimitPerOrder = &limit
	}
	return v
}

func money(d decimal.Decimal) json.Number { return json.Number(d.StringFixed(2)) }

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/products", h.listProducts)
	r.Get("/api/reps/check/{telegramID}", h.checkRep)
}

func (h *OrdersHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 5 * time.Second
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	var fingerprint string
	if idemKey != "" && h.Idem != nil {
		canonical, _ := json.Marshal(req)
		fingerprint = redisx.Fingerprint(canonical)
		stored, claimed, err := h.Idem.Claim(ctx, req.TelegramID, idemKey, fingerprint)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeErr(w, http.StatusConflict, "request_in_flight", err.Error())
			return
		case errors.Is(err, redisx.ErrKeyReused):
			writeErr(w, http.StatusUnprocessableEntity, "idempotency_key_reused", err.Error())
			return
		case err != nil:
			// redis trouble must not block order intake
			h.Log.Warn("idempotency_unavailable", zap.Error(err))
			idemKey = ""
		case !claimed:
			w.Header().Set("Idempotent-Replay", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(stored)
			return
		}
	} else {
		idemKey = ""
	}

	o, err := h.Engine.SubmitOrder(ctx, orders.SubmitRequest{
		ExternalID:     req.TelegramID,
		Handle:         strings.TrimPrefix(strings.TrimSpace(req.TelegramUsername), "@"),
		Institution:    strings.TrimSpace(req.Institution),
		PaymentPercent: req.PaymentPercent,
		Items:          req.Items,
	})
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), req.TelegramID, idemKey); rerr != nil {
				h.Log.Warn("idempotency_release_failed", zap.Error(rerr))
			}
		}
		writeSubmitError(w, err)
		return
	}

	resp := CreateOrderResp{
		OK:             true,
		OrderID:        o.ID,
		RepCode:        o.RepCode,
		TotalPrice:     money(o.TotalPrice),
		PaymentAmount:  money(o.PaymentAmount),
		PaymentPercent: o.PaymentPercent,
	}
	if idemKey != "" {
		b, _ := json.Marshal(resp)
		if err := h.Idem.Complete(context.WithoutCancel(ctx), req.TelegramID, idemKey, fingerprint, b); err != nil {
			h.Log.Warn("idempotency_store_failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func writeSubmitError(w http.ResponseWriter, err error) {
	body := map[string]any{"ok": false, "message": err.Error()}
	status := http.StatusBadRequest

	var (
		ue  *orders.UnauthorizedError
		upe *orders.UnknownProductError
		ise *orders.InsufficientStockError
		le  *orders.LimitExceededError
	)
	switch {
	case errors.As(err, &ue):
		status = http.StatusForbidden
		body["error"] = "unauthorized_submitter"
		body["reason"] = ue.Reason
	case errors.As(err, &upe):
		status = http.StatusNotFound
		body["error"] = "unknown_product"
		body["product_id"] = upe.ProductID
	case errors.As(err, &ise):
		body["error"] = "insufficient_stock"
		body["product_id"] = ise.ProductID
		body["available"] = ise.Available
		body["unit"] = ise.Unit
	case errors.As(err, &le):
		body["error"] = "limit_exceeded"
		body["product_id"] = le.ProductID
		body["limit"] = le.Limit
		body["unit"] = le.Unit
	case errors.Is(err, orders.ErrEmptyCart):
		body["error"] = "empty_cart"
	case errors.Is(err, orders.ErrInvalidQuantity):
		body["error"] = "invalid_quantity"
	case errors.Is(err, orders.ErrInvalidPaymentFraction):
		body["error"] = "invalid_payment_fraction"
	case errors.Is(err, orders.ErrDeductionConflict):
		status = http.StatusConflict
		body["error"] = "deduction_conflict"
		body["retryable"] = true
	default:
		status = http.StatusInternalServerError
		body["error"] = "persistence_failure"
		body["message"] = "order was not created, please try again"
	}
	writeJSON(w, status, body)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListActiveProducts(ctx)
	if err != nil {
		h.Log.Error("list_products_failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot list products")
		return
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) checkRep(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "telegramID"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_id", "telegram id must be an integer")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rep, err := h.Registry.GetRepByExternalID(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"registered": false, "active": false})
		return
	}
	if err != nil {
		h.Log.Error("rep_lookup_failed", zap.Int64("telegram_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot check registration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registered": true,
		"active":     rep.IsActive,
		"code":       rep.Code,
		"full_name":  rep.FullName,
	})
}
