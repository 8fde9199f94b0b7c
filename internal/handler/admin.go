package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/store"
)

const (
	minExpirationMonths = 1
	maxExpirationMonths = 120
)

type AdminHandler struct {
	engine       *points.Engine
	policyStore  *store.PolicyStore
	sponsorStore *store.SponsorStore
	logger       *slog.Logger
}

func NewAdminHandler(e *points.Engine, ps *store.PolicyStore, ss *store.SponsorStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{engine: e, policyStore: ps, sponsorStore: ss, logger: logger}
}

type expirationRequest struct {
	SponsorID         int64 `json:"sponsor_id"`
	ExpirationMonths  int   `json:"expiration_months"`
	AutoExpireEnabled bool  `json:"auto_expire_enabled"`
}

func (h *AdminHandler) SetExpiration(w http.ResponseWriter, r *http.Request) {
	_, ac, ok := caller(w, r)
	if !ok {
		return
	}
	var req expirationRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExpirationMonths < minExpirationMonths || req.ExpirationMonths > maxExpirationMonths {
		writeMessage(w, http.StatusBadRequest, "expiration_months must be between 1 and 120")
		return
	}

	sp, err := h.sponsorStore.GetByID(r.Context(), req.SponsorID)
	if err != nil {
		h.logger.Error("get sponsor", "error", err, "sponsor_id", req.SponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to load sponsor")
		return
	}
	if sp == nil {
		writeMessage(w, http.StatusNotFound, "sponsor not found")
		return
	}

	p, err := h.policyStore.SetExpiration(r.Context(), sp.ID, req.ExpirationMonths, req.AutoExpireEnabled, ac.UserID)
	if err != nil {
		h.logger.Error("set expiration", "error", err, "sponsor_id", sp.ID)
		writeMessage(w, http.StatusInternalServerError, "failed to update expiration policy")
		return
	}
	h.logger.Info("expiration policy updated", "sponsor_id", sp.ID,
		"months", req.ExpirationMonths, "enabled", req.AutoExpireEnabled, "user_id", ac.UserID)
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) ListExpiration(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policyStore.List(r.Context())
	if err != nil {
		h.logger.Error("list policies", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list policies")
		return
	}
	if policies == nil {
		policies = []model.SponsorPolicy{}
	}
	writeJSON(w, http.StatusOK, policies)
}

// RunExpiration expires points now, for one sponsor when sponsor_id is given.
func (h *AdminHandler) RunExpiration(w http.ResponseWriter, r *http.Request) {
	c, _, ok := caller(w, r)
	if !ok {
		return
	}
	var sponsorID int64
	if v := r.URL.Query().Get("sponsor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeMessage(w, http.StatusBadRequest, "invalid sponsor_id")
			return
		}
		sponsorID = id
	}

	report, err := h.engine.RunExpiration(r.Context(), c, sponsorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drivers_affected": report.ExpiredCount(),
		"report":           report,
	})
}

func (h *AdminHandler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunDailyAccrual(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// VerifyLedger lists every pair whose cached balance disagrees with its ledger.
func (h *AdminHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	drift, err := h.engine.Ledger().Verify(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if drift == nil {
		drift = []model.BalanceDrift{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consistent": len(drift) == 0,
		"drift":      drift,
	})
}
