package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/store"
)

type PointsHandler struct {
	engine      *points.Engine
	memberships *store.SponsorDriverStore
	logger      *slog.Logger
}

func NewPointsHandler(e *points.Engine, ms *store.SponsorDriverStore, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{engine: e, memberships: ms, logger: logger}
}

// membership resolves the ledger pair the request may read: a driver's own
// membership, or one of the acting sponsor's drivers.
func (h *PointsHandler) membership(w http.ResponseWriter, r *http.Request) (*model.SponsorDriver, bool) {
	_, ac, ok := caller(w, r)
	if !ok {
		return nil, false
	}

	driverID := ac.UserID
	if ac.Role != model.RoleDriver {
		id, err := parseIDParam(r, "driver_id")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		driverID = id
	}

	m, err := h.memberships.GetByDriver(r.Context(), driverID)
	if err != nil {
		h.logger.Error("get membership", "error", err, "driver_id", driverID)
		writeMessage(w, http.StatusInternalServerError, "failed to load driver")
		return nil, false
	}
	if m == nil || (ac.Role == model.RoleSponsor && m.SponsorID != ac.SponsorID) {
		writeMessage(w, http.StatusNotFound, "driver is not enrolled with a sponsor")
		return nil, false
	}
	return m, true
}

// History returns the balance with every ledger entry, newest first.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	m, ok := h.membership(w, r)
	if !ok {
		return
	}
	st, err := h.engine.Ledger().History(r.Context(), m.SponsorID, m.DriverID, r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Month returns the entries of one calendar month given as YYYY-MM.
func (h *PointsHandler) Month(w http.ResponseWriter, r *http.Request) {
	m, ok := h.membership(w, r)
	if !ok {
		return
	}
	month := r.PathValue("month")
	st, err := h.engine.Ledger().History(r.Context(), m.SponsorID, m.DriverID, month)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":          month,
		"current_points": st.CurrentPoints,
		"transactions":   st.History,
	})
}

func (h *PointsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	m, ok := h.membership(w, r)
	if !ok {
		return
	}
	summary, err := h.engine.Ledger().MonthlySummary(r.Context(), m.SponsorID, m.DriverID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_points":  m.TotalPoints,
		"monthly_summary": summary,
	})
}

// Drivers lists the acting sponsor's drivers with their balances.
func (h *PointsHandler) Drivers(w http.ResponseWriter, r *http.Request) {
	sponsorID := auth.SponsorID(r.Context())
	drivers, err := h.memberships.ListBySponsor(r.Context(), sponsorID)
	if err != nil {
		h.logger.Error("list drivers", "error", err, "sponsor_id", sponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to list drivers")
		return
	}
	if drivers == nil {
		drivers = []model.SponsorDriver{}
	}
	writeJSON(w, http.StatusOK, drivers)
}

type adjustRequest struct {
	DriverID int64  `json:"driver_id"`
	Points   int64  `json:"points"`
	Reason   string `json:"reason"`
}

func (h *PointsHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.engine.AddPoints)
}

func (h *PointsHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.engine.DeductPoints)
}

type adjustFunc func(ctx context.Context, c points.Caller, driverID, amount int64, reason string) (*points.BalanceResult, error)

func (h *PointsHandler) adjust(w http.ResponseWriter, r *http.Request, apply adjustFunc) {
	c, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DriverID <= 0 {
		writeMessage(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	res, err := apply(r.Context(), c, req.DriverID, req.Points, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
