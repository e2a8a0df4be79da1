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
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminHandler serves the back-office routes under /api/admin.
type AdminHandler struct {
	Orders   orders.OrderRepo
	Products orders.CatalogAdmin
	Reps     orders.RegistryAdmin
	Token    string
	Log      *zap.Logger
}

type statusReq struct {
	Status string `json:"status"`
}

type stockReq struct {
	Set *int `json:"set"`
	Add *int `json:"add"`
}

type productReq struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit"`
	Stock         int             `json:"stock"`
	Price         decimal.Decimal `json:"price"`
	LimitPerOrder *int            `json:"limit_per_order"`
	IsActive      *bool           `json:"is_active"`
}

type repReq struct {
	Code       string `json:"code"`
	TelegramID int64  `json:"telegram_id"`
	FullName   string `json:"full_name"`
	IsActive   *bool  `json:"is_active"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(AdminToken(h.Token))
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}/status", h.updateStatus)
		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Patch("/products/{id}", h.updateProduct)
		r.Post("/products/{id}/toggle", h.toggleProduct)
		r.Post("/products/{id}/stock", h.adjustStock)
		r.Get("/reps", h.listReps)
		r.Post("/reps", h.createRep)
		r.Patch("/reps/{id}", h.updateRep)
	})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, limit)
	if err != nil {
		h.Log.Error("list_orders_failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot list orders")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		h.Log.Error("get_order_failed", zap.Int64("order_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot load order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	st, err := orders.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	switch err := h.Orders.UpdateStatus(ctx, id, st); {
	case errors.Is(err, orders.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "order not found")
	case err != nil:
		h.Log.Error("update_status_failed", zap.Int64("order_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot update status")
	default:
		h.Log.Info("order_status_updated", zap.Int64("order_id", id), zap.String("status", string(st)))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "status": st})
	}
}

func (h *AdminHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_id", "invalid product id")
		return
	}
	var req stockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if (req.Set == nil) == (req.Add == nil) {
		writeErr(w, http.StatusBadRequest, "invalid_request", "exactly one of set or add is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		p   orders.Product
		err error
	)
	if req.Set != nil {
		if *req.Set < 0 {
			writeErr(w, http.StatusBadRequest, "negative_stock", orders.ErrNegativeStock.Error())
			return
		}
		p, err = h.Products.SetStock(ctx, id, *req.Set)
	} else {
		p, err = h.Products.AddStock(ctx, id, *req.Add)
	}
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, orders.ErrNegativeStock):
		writeErr(w, http.StatusBadRequest, "negative_stock", err.Error())
	case err != nil:
		h.Log.Error("adjust_stock_failed", zap.Int64("product_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot update stock")
	default:
		h.Log.Info("stock_adjusted", zap.Int64("product_id", id), zap.Int("stock", p.Stock))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": p.ID, "stock": p.Stock})
	}
}

func (h *AdminHandler) listReps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	reps, err := h.Reps.ListReps(ctx)
	if err != nil {
		h.Log.Error("list_reps_failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot list representatives")
		return
	}
	writeJSON(w, http.StatusOK, reps)
}

func (h *AdminHandler) createRep(w http.ResponseWriter, r *http.Request) {
	var req repReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rep := orders.Representative{
		Code:       strings.TrimSpace(req.Code),
		ExternalID: req.TelegramID,
		FullName:   strings.TrimSpace(req.FullName),
		IsActive:   active,
	}
	if err := rep.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rep, err := h.Reps.CreateRep(ctx, rep)
	switch {
	case errors.Is(err, orders.ErrCodeTaken), errors.Is(err, orders.ErrIdentityTaken):
		writeErr(w, http.StatusConflict, "duplicate", err.Error())
	case err != nil:
		h.Log.Error("create_rep_failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot create representative")
	default:
		h.Log.Info("rep_created", zap.String("code", rep.Code), zap.Int64("telegram_id", rep.ExternalID))
		writeJSON(w, http.StatusCreated, rep)
	}
}

// writeAdminErr maps store errors of the admin mutations.
func (h *AdminHandler) writeAdminErr(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, orders.ErrInvalidProduct), errors.Is(err, orders.ErrInvalidRep):
		writeErr(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, orders.ErrNegativeStock):
		writeErr(w, http.StatusBadRequest, "negative_stock", err.Error())
	case errors.Is(err, orders.ErrCodeTaken), errors.Is(err, orders.ErrIdentityTaken):
		writeErr(w, http.StatusConflict, "duplicate", err.Error())
	default:
		h.Log.Error(op+"_failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal", "cannot "+strings.ReplaceAll(op, "_", " "))
	}
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx)
	if err != nil {
		h.writeAdminErr(w, err, "list_products")
		return
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	p := orders.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Unit:        strings.TrimSpace(req.Unit),
		Stock:       req.Stock,
		Price:       req.Price,
		IsActive:    true,
	}
	if p.Unit == "" {
		p.Unit = "шт"
	}
	if req.LimitPerOrder != nil {
		p.LimitPerOrder = *req.LimitPerOrder
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.CreateProduct(ctx, p)
	if err != nil {
		h.writeAdminErr(w, err, "create_product")
		return
	}
	h.Log.Info("product_created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	writeJSON(w, http.StatusCreated, toProductView(p))
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_id", "invalid product id")
		return
	}
	var patch orders.ProductPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.UpdateProduct(ctx, id, patch)
	if err != nil {
		h.writeAdminErr(w, err, "update_product")
		return
	}
	h.Log.Info("product_updated", zap.Int64("product_id", id))
	writeJSON(w, http.StatusOK, toProductView(p))
}

func (h *AdminHandler) toggleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_id", "invalid product id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cur, err := h.Products.GetProduct(ctx, id)
	if err != nil {
		h.writeAdminErr(w, err, "toggle_product")
		return
	}
	active := !cur.IsActive
	p, err := h.Products.UpdateProduct(ctx, id, orders.ProductPatch{IsActive: &active})
	if err != nil {
		h.writeAdminErr(w, err, "toggle_product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": p.ID, "is_active": p.IsActive})
}

func (h *AdminHandler) updateRep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid_id", "invalid representative id")
		return
	}
	var patch orders.RepPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rep, err := h.Reps.UpdateRep(ctx, id, patch)
	if err != nil {
		h.writeAdminErr(w, err, "update_representative")
		return
	}
	h.Log.Info("rep_updated", zap.Int64("rep_id", id), zap.String("code", rep.Code), zap.Bool("active", rep.IsActive))
	writeJSON(w, http.StatusOK, rep)
}
