package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/store"
)

const (
	defaultAdminPageSize = 20
	maxAdminPageSize     = 100
)

type AdminStore interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	CreateCategory(ctx context.Context, in store.CategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, in store.CategoryInput) (*models.Category, error)

	ListAllProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	CreateProduct(ctx context.Context, in store.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, in store.ProductInput) (*models.Product, error)
	SetProductsAvailability(ctx context.Context, ids []int64, available bool) (int64, error)
	SetProductsFeatured(ctx context.Context, ids []int64, featured bool) (int64, error)

	SaveSiteSettings(ctx context.Context, in models.SiteSettings) (*models.SiteSettings, error)

	CreateDiscountCode(ctx context.Context, in store.DiscountInput) (*models.DiscountCode, error)
	SetDiscountCodeActive(ctx context.Context, id int64, active bool) error
	ListDiscountCodes(ctx context.Context) ([]models.DiscountCode, error)

	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersCursor(ctx context.Context, filter store.OrderFilter, cursor string, limit int) (*store.CursorPage, error)
	UpdateOrderStatus(ctx context.Context, id int64, next models.OrderStatus) (*models.Order, models.OrderStatus, error)
}

type StatusPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
}

// AdminHandler is the back-office JSON API. Every route requires the
// configured bearer token.
type AdminHandler struct {
	store     AdminStore
	settings  SettingsSource
	publisher StatusPublisher
	token     string
	logger    *slog.Logger
}

func NewAdminHandler(admin AdminStore, settings SettingsSource, publisher StatusPublisher, token string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:     admin,
		settings:  settings,
		publisher: publisher,
		token:     token,
		logger:    logger,
	}
}

// RequireToken rejects requests without a matching Authorization bearer.
func (h *AdminHandler) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || h.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			h.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (h *AdminHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(h.logger, w, status, data)
}

func (h *AdminHandler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(h.logger, w, status, map[string]string{"error": message})
}

func (h *AdminHandler) internalError(w http.ResponseWriter, err error, message string, attrs ...any) {
	h.logger.Error(message, append([]any{"error", err}, attrs...)...)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (h *AdminHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context(), false)
	if err != nil {
		h.internalError(w, err, "failed to list categories")
		return
	}
	h.writeJSON(w, http.StatusOK, categories)
}

func (h *AdminHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in store.CategoryInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.store.CreateCategory(r.Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCategory) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.internalError(w, err, "failed to create category")
		return
	}

	h.logger.Info("category created", "category_id", category.ID)
	h.writeJSON(w, http.StatusCreated, category)
}

func (h *AdminHandler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var in store.CategoryInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.store.UpdateCategory(r.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrCategoryNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrDuplicateCategory):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.internalError(w, err, "failed to update category", "category_id", id)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, category)
}

func (h *AdminHandler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > maxAdminPageSize {
		pageSize = defaultAdminPageSize
	}

	result, err := h.store.ListAllProducts(r.Context(), page, pageSize)
	if err != nil {
		h.internalError(w, err, "failed to list products")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in store.ProductInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.store.CreateProduct(r.Context(), in)
	if err != nil {
		if errors.Is(err, database.ErrCategoryNotFound) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.internalError(w, err, "failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *AdminHandler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var in store.ProductInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, database.ErrCategoryNotFound):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.internalError(w, err, "failed to update product", "product_id", id)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type bulkRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkResult struct {
	Updated int64 `json:"updated"`
}

func (h *AdminHandler) bulkProducts(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, ids []int64) (int64, error), action string) {
	var req bulkRequest
	if err := decodeBody(r, &req); err != nil || len(req.IDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	n, err := apply(r.Context(), req.IDs)
	if err != nil {
		h.internalError(w, err, "failed to update products", "action", action)
		return
	}

	h.logger.Info("products updated", "action", action, "count", n)
	h.writeJSON(w, http.StatusOK, bulkResult{Updated: n})
}

func (h *AdminHandler) HandleMarkUnavailable(w http.ResponseWriter, r *http.Request) {
	h.bulkProducts(w, r, func(ctx context.Context, ids []int64) (int64, error) {
		return h.store.SetProductsAvailability(ctx, ids, false)
	}, "unavailable")
}

func (h *AdminHandler) HandleMarkFeatured(w http.ResponseWriter, r *http.Request) {
	h.bulkProducts(w, r, func(ctx context.Context, ids []int64) (int64, error) {
		return h.store.SetProductsFeatured(ctx, ids, true)
	}, "featured")
}

func (h *AdminHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	site, err := h.settings.Site(r.Context())
	if err != nil {
		h.internalError(w, err, "failed to load site settings")
		return
	}
	h.writeJSON(w, http.StatusOK, site)
}

func (h *AdminHandler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in models.SiteSettings
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case strings.TrimSpace(in.SiteName) == "":
		h.writeError(w, http.StatusBadRequest, "site_name is required")
		return
	case in.DeliveryFee < 0 || in.FreeDeliveryThreshold < 0:
		h.writeError(w, http.StatusBadRequest, "fees cannot be negative")
		return
	}

	saved, err := h.store.SaveSiteSettings(r.Context(), in)
	if err != nil {
		h.internalError(w, err, "failed to save site settings")
		return
	}

	h.logger.Info("site settings saved", "delivery_fee", saved.DeliveryFee, "free_delivery_threshold", saved.FreeDeliveryThreshold)
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *AdminHandler) HandleListDiscounts(w http.ResponseWriter, r *http.Request) {
	codes, err := h.store.ListDiscountCodes(r.Context())
	if err != nil {
		h.internalError(w, err, "failed to list discount codes")
		return
	}
	h.writeJSON(w, http.StatusOK, codes)
}

func (h *AdminHandler) HandleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var in store.DiscountInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	code, err := h.store.CreateDiscountCode(r.Context(), in)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateDiscountCode) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.internalError(w, err, "failed to create discount code")
		return
	}

	h.logger.Info("discount code created", "code", code.Code, "percent", code.DiscountPercent)
	h.writeJSON(w, http.StatusCreated, code)
}

func (h *AdminHandler) setDiscountActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid discount code id")
		return
	}

	if err := h.store.SetDiscountCodeActive(r.Context(), id, active); err != nil {
		if errors.Is(err, database.ErrDiscountNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.internalError(w, err, "failed to update discount code", "discount_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) HandleActivateDiscount(w http.ResponseWriter, r *http.Request) {
	h.setDiscountActive(w, r, true)
}

func (h *AdminHandler) HandleDeactivateDiscount(w http.ResponseWriter, r *http.Request) {
	h.setDiscountActive(w, r, false)
}

func (h *AdminHandler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := models.OrderStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	cursor := q.Get("cursor")
	if _, err := store.DecodeCursor(cursor); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > maxAdminPageSize {
		limit = defaultAdminPageSize
	}

	page, err := h.store.ListOrdersCursor(r.Context(), store.OrderFilter{Status: status}, cursor, limit)
	if err != nil {
		h.internalError(w, err, "failed to list orders")
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.internalError(w, err, "failed to get order", "order_id", id)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (h *AdminHandler) HandleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil || !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, previous, err := h.store.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, database.ErrInvalidStatusTransition):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.internalError(w, err, "failed to update order status", "order_id", id)
		}
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "order_number", order.OrderNumber,
		"from", previous, "to", order.Status)

	if h.publisher != nil {
		if err := h.publisher.PublishOrderStatusChanged(r.Context(), order, previous); err != nil {
			h.logger.Error("failed to publish order status change", "error", err, "order_id", order.ID)
		}
	}

	h.writeJSON(w, http.StatusOK, order)
}
