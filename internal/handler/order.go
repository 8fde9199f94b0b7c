package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/store"
)

type OrderHandler struct {
	engine     *points.Engine
	orderStore *store.OrderStore
	logger     *slog.Logger
}

func NewOrderHandler(e *points.Engine, os *store.OrderStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{engine: e, orderStore: os, logger: logger}
}

type purchaseRequest struct {
	ItemID string `json:"item_id"`
}

// Purchase redeems one unit of an item from the driver's sponsor catalog.
func (h *OrderHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	c, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.Purchase(r.Context(), c, strings.TrimSpace(req.ItemID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	c, _, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.CancelOrder(r.Context(), c, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListMine returns the driver's orders, newest first.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	driverID := auth.UserID(r.Context())
	orders, err := h.orderStore.ListByDriver(r.Context(), driverID)
	if err != nil {
		h.logger.Error("list driver orders", "error", err, "driver_id", driverID)
		writeMessage(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// ListSponsor is the sponsor's purchase history, optionally filtered by status.
func (h *OrderHandler) ListSponsor(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.OrderPending, model.OrderCancelled, model.OrderFulfilled:
	default:
		writeMessage(w, http.StatusBadRequest, "invalid status")
		return
	}

	sponsorID := auth.SponsorID(r.Context())
	orders, err := h.orderStore.ListBySponsor(r.Context(), sponsorID, status)
	if err != nil {
		h.logger.Error("list sponsor orders", "error", err, "sponsor_id", sponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	c, _, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.engine.FulfillOrder(r.Context(), c, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
