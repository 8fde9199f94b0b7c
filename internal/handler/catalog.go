package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/catalog"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/store"
)

const defaultSearchLimit = 20

type CatalogHandler struct {
	engine       *points.Engine
	source       *catalog.Audited
	catalogStore *store.CatalogStore
	memberships  *store.SponsorDriverStore
	errorLogs    *store.ErrorLogStore
	logger       *slog.Logger
}

func NewCatalogHandler(
	e *points.Engine,
	source *catalog.Audited,
	cs *store.CatalogStore,
	ms *store.SponsorDriverStore,
	el *store.ErrorLogStore,
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		engine:       e,
		source:       source,
		catalogStore: cs,
		memberships:  ms,
		errorLogs:    el,
		logger:       logger,
	}
}

func (h *CatalogHandler) sourceError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotConfigured) {
		writeMessage(w, http.StatusServiceUnavailable, "product search is not configured")
		return
	}
	writeMessage(w, http.StatusBadGateway, "product search failed")
}

// Search proxies a keyword search to the marketplace.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeMessage(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.source.Search(r.Context(), auth.SponsorID(r.Context()), q, limit)
	if err != nil {
		h.sourceError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

type addItemRequest struct {
	ItemID        string              `json:"item_id"`
	PointsCost    int64               `json:"points_cost"`
	StockQuantity int64               `json:"stock_quantity"`
	Title         string              `json:"title"`
	PriceValue    decimal.NullDecimal `json:"price_value"`
	PriceCurrency string              `json:"price_currency"`
	ImageURL      string              `json:"image_url"`
	Rating        string              `json:"rating"`
}

func (req addItemRequest) product() catalog.Product {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.ItemID
	}
	return catalog.Product{
		ItemID:        req.ItemID,
		Title:         title,
		PriceValue:    req.PriceValue,
		PriceCurrency: req.PriceCurrency,
		ImageURL:      req.ImageURL,
		Rating:        req.Rating,
	}
}

// Add lists a marketplace item in the sponsor's catalog. Details given in
// the request are used as is; otherwise they are fetched from the
// marketplace, falling back to the request when the marketplace fails.
// The cost is derived from the price when not given, so an item without
// a known price needs an explicit points_cost.
func (h *CatalogHandler) Add(w http.ResponseWriter, r *http.Request) {
	c, ac, ok := caller(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		writeMessage(w, http.StatusBadRequest, "item_id is required")
		return
	}

	p := req.product()
	if strings.TrimSpace(req.Title) == "" {
		found, err := h.source.Item(r.Context(), ac.SponsorID, req.ItemID)
		switch {
		case err != nil:
			h.logger.Warn("marketplace lookup failed, using request details",
				"sponsor_id", ac.SponsorID, "item_id", req.ItemID, "error", err)
		case found == nil:
			writeMessage(w, http.StatusNotFound, "item not found on the marketplace")
			return
		default:
			p = *found
		}
	}

	item, err := h.engine.UpsertCatalogItem(r.Context(), c, points.CatalogItemInput{
		ItemID:        p.ItemID,
		Title:         p.Title,
		PriceValue:    p.PriceValue,
		PriceCurrency: p.PriceCurrency,
		ImageURL:      p.ImageURL,
		Rating:        p.Rating,
		StockQuantity: req.StockQuantity,
		PointsCost:    req.PointsCost,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// List returns the acting sponsor's catalog.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, auth.SponsorID(r.Context()))
}

// ListForDriver returns the catalog of the driver's sponsor.
func (h *CatalogHandler) ListForDriver(w http.ResponseWriter, r *http.Request) {
	driverID := auth.UserID(r.Context())
	m, err := h.memberships.GetByDriver(r.Context(), driverID)
	if err != nil {
		h.logger.Error("get membership", "error", err, "driver_id", driverID)
		writeMessage(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}
	if m == nil {
		writeMessage(w, http.StatusNotFound, "driver is not enrolled with a sponsor")
		return
	}
	h.list(w, r, m.SponsorID)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request, sponsorID int64) {
	items, err := h.catalogStore.ListBySponsor(r.Context(), sponsorID)
	if err != nil {
		h.logger.Error("list catalog", "error", err, "sponsor_id", sponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to list catalog")
		return
	}
	if items == nil {
		items = []model.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sponsorID := auth.SponsorID(r.Context())
	itemID := r.PathValue("item_id")

	deleted, err := h.catalogStore.Delete(r.Context(), sponsorID, itemID)
	if err != nil {
		h.logger.Error("delete catalog item", "error", err, "sponsor_id", sponsorID, "item_id", itemID)
		writeMessage(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ErrorLogs lists recent marketplace failures recorded for the sponsor.
func (h *CatalogHandler) ErrorLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	sponsorID := auth.SponsorID(r.Context())
	logs, err := h.errorLogs.ListBySponsor(r.Context(), sponsorID, limit)
	if err != nil {
		h.logger.Error("list error logs", "error", err, "sponsor_id", sponsorID)
		writeMessage(w, http.StatusInternalServerError, "failed to list error logs")
		return
	}
	if logs == nil {
		logs = []model.APIErrorLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
