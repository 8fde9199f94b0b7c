package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/store"
)

const maxDailyPoints = 100000

type SettingsHandler struct {
	policyStore *store.PolicyStore
	logger      *slog.Logger
}

func NewSettingsHandler(ps *store.PolicyStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{policyStore: ps, logger: logger}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sponsorID := auth.SponsorID(r.Context())
	p, err := h.policyStore.Get(r.Context(), sponsorID)
	if err != nil {
		h.logger.Error("get sponsor settings", "error", err, "sponsor_id", sponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type settingsRequest struct {
	AllowNegativePoints *bool            `json:"allow_negative_points"`
	DailyPointsAwarded  *int64           `json:"daily_points_awarded"`
	PointValue          *decimal.Decimal `json:"point_value"`
}

// Update changes only the fields present in the request.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DailyPointsAwarded != nil && (*req.DailyPointsAwarded < 0 || *req.DailyPointsAwarded > maxDailyPoints) {
		writeMessage(w, http.StatusBadRequest, "daily_points_awarded must be between 0 and 100000")
		return
	}
	if req.PointValue != nil && !req.PointValue.IsPositive() {
		writeMessage(w, http.StatusBadRequest, "point_value must be positive")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	p, err := h.policyStore.SetSponsorSettings(r.Context(), ac.SponsorID, store.SponsorSettings{
		AllowNegativePoints: req.AllowNegativePoints,
		DailyPointsAwarded:  req.DailyPointsAwarded,
		PointValue:          req.PointValue,
	}, ac.UserID)
	if err != nil {
		h.logger.Error("update sponsor settings", "error", err, "sponsor_id", ac.SponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	h.logger.Info("sponsor settings updated", "sponsor_id", ac.SponsorID, "user_id", ac.UserID)
	writeJSON(w, http.StatusOK, p)
}
