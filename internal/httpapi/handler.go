// Package httpapi serves the storefront, account and back-office routes as
// JSON. Storefront mutations answer with a 303 redirect and leave a flash
// message in the session for the next view.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tarla/storefront/internal/checkout"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/pricing"
	"github.com/tarla/storefront/internal/session"
	"github.com/tarla/storefront/internal/store"
	"github.com/tarla/storefront/internal/telemetry"
)

const (
	featuredLimit = 8
	relatedLimit  = 4
	profilePage   = 10
)

type Catalog interface {
	AvailableProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error)
	FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error)
	ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetAvailableProduct(ctx context.Context, id int64) (*models.Product, error)
	RelatedProducts(ctx context.Context, product models.Product, limit int) ([]models.Product, error)
}

type Orders interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersCursor(ctx context.Context, filter store.OrderFilter, cursor string, limit int) (*store.CursorPage, error)
}

type Accounts interface {
	CreateUser(ctx context.Context, username, password, email string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (*models.Order, error)
}

type DiscountApplier interface {
	Apply(ctx context.Context, raw string, now time.Time) (*discount.Applied, error)
}

type SettingsSource interface {
	Site(ctx context.Context) (models.SiteSettings, error)
	Pricing(ctx context.Context) (pricing.Settings, error)
}

// Deps bundles the collaborators of the storefront handler.
type Deps struct {
	Catalog   Catalog
	Orders    Orders
	Accounts  Accounts
	Checkout  OrderPlacer
	Discounts DiscountApplier
	Settings  SettingsSource
	Sessions  *session.Manager
	Metrics   *telemetry.ShopMetrics
	Logger    *slog.Logger
}

type Handler struct {
	catalog   Catalog
	orders    Orders
	accounts  Accounts
	checkout  OrderPlacer
	discounts DiscountApplier
	settings  SettingsSource
	sessions  *session.Manager
	metrics   *telemetry.ShopMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		catalog:   deps.Catalog,
		orders:    deps.Orders,
		accounts:  deps.Accounts,
		checkout:  deps.Checkout,
		discounts: deps.Discounts,
		settings:  deps.Settings,
		sessions:  deps.Sessions,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// page is the envelope of every storefront GET view.
type page struct {
	Messages []session.Flash `json:"messages"`
	Data     any             `json:"data"`
}

// render drains pending flashes into the response. The session is saved
// only when something in it changed.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, sess *session.Session, dirty bool, data any) {
	messages := sess.PopFlashes()
	if messages == nil {
		messages = []session.Flash{}
	}
	if dirty || len(messages) > 0 {
		if err := h.sessions.Save(r.Context(), sess); err != nil {
			h.logger.Error("failed to save session", "error", err, "session_id", sess.ID)
			h.writeError(w, http.StatusInternalServerError, msgTryAgain)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, page{Messages: messages, Data: data})
}

// redirect persists the session and answers with 303 See Other.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, sess *session.Session, target string) {
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Error("failed to save session", "error", err, "session_id", sess.ID)
		h.writeError(w, http.StatusInternalServerError, msgTryAgain)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) flashRedirect(w http.ResponseWriter, r *http.Request, sess *session.Session, level session.FlashLevel, message, target string) {
	sess.AddFlash(level, message)
	h.redirect(w, r, sess, target)
}

// fail logs an unexpected error and sends the visitor back to target with
// the generic retry message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, err error, target, message string, attrs ...any) {
	h.logger.Error(message, append([]any{"error", err, "session_id", sess.ID}, attrs...)...)
	h.flashRedirect(w, r, sess, session.FlashError, msgTryAgain, target)
}

func (h *Handler) failView(w http.ResponseWriter, err error, message string, attrs ...any) {
	h.logger.Error(message, append([]any{"error", err}, attrs...)...)
	h.writeError(w, http.StatusInternalServerError, msgTryAgain)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(h.logger, w, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(h.logger, w, status, map[string]string{"error": message})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func isAjax(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// isDigits mirrors the all-digit check applied to price filters and
// quantities; signs, spaces and decimals are rejected.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func currentSession(r *http.Request) *session.Session {
	return session.FromContext(r.Context())
}
