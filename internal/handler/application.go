package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

const (
	minRejectionReason = 10
	maxRejectionReason = 500
)

type ApplicationHandler struct {
	appStore     *store.ApplicationStore
	sponsorStore *store.SponsorStore
	logger       *slog.Logger
}

func NewApplicationHandler(as *store.ApplicationStore, ss *store.SponsorStore, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{appStore: as, sponsorStore: ss, logger: logger}
}

func (h *ApplicationHandler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrAlreadyEnrolled):
		writeMessage(w, http.StatusConflict, "driver already belongs to a sponsor")
	case errors.Is(err, store.ErrPendingApplication):
		writeMessage(w, http.StatusConflict, "an application to this sponsor is already pending")
	case errors.Is(err, store.ErrApplicationClosed):
		writeMessage(w, http.StatusConflict, "application has already been decided")
	default:
		h.logger.Error(op, "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to "+op)
	}
}

type applyRequest struct {
	SponsorID     int64  `json:"sponsor_id"`
	LicenseNumber string `json:"license_number"`
	Vehicle       string `json:"vehicle"`
}

// Apply submits the driver's application to a sponsor.
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
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

	driverID := auth.UserID(r.Context())
	app, err := h.appStore.Create(r.Context(), driverID, sp.ID,
		strings.TrimSpace(req.LicenseNumber), strings.TrimSpace(req.Vehicle))
	if err != nil {
		h.storeError(w, "create application", err)
		return
	}
	h.logger.Info("application submitted", "application_id", app.ID, "driver_id", driverID, "sponsor_id", sp.ID)
	writeJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	apps, err := h.appStore.ListByDriver(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.storeError(w, "list applications", err)
		return
	}
	if apps == nil {
		apps = []model.DriverApplication{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// ListSponsor returns applications to the acting sponsor, filtered by ?status.
func (h *ApplicationHandler) ListSponsor(w http.ResponseWriter, r *http.Request) {
	status := model.ApplicationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected:
	default:
		writeMessage(w, http.StatusBadRequest, "invalid status")
		return
	}
	apps, err := h.appStore.ListBySponsor(r.Context(), auth.SponsorID(r.Context()), status)
	if err != nil {
		h.storeError(w, "list applications", err)
		return
	}
	if apps == nil {
		apps = []model.DriverApplication{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// owned loads an application addressed to the acting sponsor. Other
// sponsors' applications are reported as missing.
func (h *ApplicationHandler) owned(w http.ResponseWriter, r *http.Request) (*model.DriverApplication, bool) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	app, err := h.appStore.GetByID(r.Context(), id)
	if err != nil {
		h.storeError(w, "get application", err)
		return nil, false
	}
	if app == nil || app.SponsorID != auth.SponsorID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "application not found")
		return nil, false
	}
	return app, true
}

// Approve enrolls the driver with a zero balance.
func (h *ApplicationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	app, ok := h.owned(w, r)
	if !ok {
		return
	}
	approved, err := h.appStore.Approve(r.Context(), app.ID)
	if err != nil {
		h.storeError(w, "approve application", err)
		return
	}
	if approved == nil {
		writeMessage(w, http.StatusNotFound, "application not found")
		return
	}
	h.logger.Info("application approved", "application_id", app.ID,
		"driver_id", app.DriverID, "sponsor_id", app.SponsorID, "user_id", auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, approved)
}

type rejectRequest struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

func (h *ApplicationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if !slices.Contains(model.RejectionCategories, req.Category) {
		writeMessage(w, http.StatusBadRequest, "category must be one of: "+strings.Join(model.RejectionCategories, ", "))
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if n := utf8.RuneCountInString(req.Reason); n < minRejectionReason || n > maxRejectionReason {
		writeMessage(w, http.StatusBadRequest, "reason must be between 10 and 500 characters")
		return
	}

	app, ok := h.owned(w, r)
	if !ok {
		return
	}
	rejected, err := h.appStore.Reject(r.Context(), app.ID, req.Category, req.Reason)
	if err != nil {
		h.storeError(w, "reject application", err)
		return
	}
	if rejected == nil {
		writeMessage(w, http.StatusNotFound, "application not found")
		return
	}
	writeJSON(w, http.StatusOK, rejected)
}
