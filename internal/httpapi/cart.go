package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tarla/storefront/internal/cart"
	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/pricing"
	"github.com/tarla/storefront/internal/session"
)

type cartLine struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Total    int64          `json:"total"`
}

type cartView struct {
	Items    []cartLine        `json:"cart_items"`
	Discount *discount.Applied `json:"discount_code,omitempty"`
	pricing.Breakdown
	DeliveryFee           int64 `json:"delivery_fee"`
	FreeDeliveryThreshold int64 `json:"free_delivery_threshold"`
	FreeDeliveryEnabled   bool  `json:"free_delivery_enabled"`
}

// resolveCart reconciles the session cart with the catalog and turns
// stock clamps into warnings for the visitor.
func (h *Handler) resolveCart(r *http.Request, sess *session.Session) (cart.Snapshot, error) {
	snap, err := sess.Cart.Resolve(r.Context(), h.catalog)
	if err != nil {
		return snap, err
	}
	for _, warn := range snap.Warnings {
		sess.AddFlash(session.FlashWarning, fmt.Sprintf(msgStockReduced, warn.ProductName))
	}
	return snap, nil
}

func discountPercent(sess *session.Session) int {
	if sess.Discount == nil {
		return 0
	}
	return sess.Discount.Percent
}

func (h *Handler) HandleCart(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	snap, err := h.resolveCart(r, sess)
	if err != nil {
		h.failView(w, err, "failed to resolve cart", "session_id", sess.ID)
		return
	}

	settings, err := h.settings.Pricing(r.Context())
	if err != nil {
		h.failView(w, err, "failed to load pricing settings")
		return
	}

	view := cartView{
		Items:                 make([]cartLine, 0, len(snap.Lines)),
		Discount:              sess.Discount,
		Breakdown:             pricing.Compute(snap.Lines, settings, discountPercent(sess)),
		DeliveryFee:           settings.DeliveryFee,
		FreeDeliveryThreshold: settings.FreeDeliveryThreshold,
		FreeDeliveryEnabled:   settings.FreeDeliveryEnabled,
	}
	for _, line := range snap.Lines {
		view.Items = append(view.Items, cartLine{Product: line.Product, Quantity: line.Quantity, Total: line.Total()})
	}

	h.render(w, r, sess, snap.Changed, view)
}

type cartSummary struct {
	ItemCount             int   `json:"cart_items_count"`
	TotalPrice            int64 `json:"cart_total_price"`
	DeliveryFee           int64 `json:"delivery_fee"`
	FreeDeliveryThreshold int64 `json:"free_delivery_threshold"`
	FreeDeliveryEnabled   bool  `json:"free_delivery_enabled"`
	ShippingCost          int64 `json:"shipping_cost"`
}

// HandleCartSummary returns the header badge figures. It reads the cart
// without rewriting it.
func (h *Handler) HandleCartSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	products, err := h.catalog.AvailableProducts(ctx, sess.Cart.ProductIDs())
	if err != nil {
		h.failView(w, err, "failed to resolve cart summary", "session_id", sess.ID)
		return
	}

	settings, err := h.settings.Pricing(ctx)
	if err != nil {
		h.failView(w, err, "failed to load pricing settings")
		return
	}

	summary := cartSummary{
		ItemCount:             sess.Cart.Count(),
		DeliveryFee:           settings.DeliveryFee,
		FreeDeliveryThreshold: settings.FreeDeliveryThreshold,
		FreeDeliveryEnabled:   settings.FreeDeliveryEnabled,
	}
	for id, qty := range sess.Cart.Items {
		if p, ok := products[id]; ok {
			summary.TotalPrice += p.Price * int64(qty)
		}
	}
	summary.ShippingCost = pricing.ShippingCost(summary.TotalPrice, summary.ItemCount, settings)

	h.writeJSON(w, http.StatusOK, summary)
}

type ajaxResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)
	ajax := isAjax(r)

	reject := func(status int, level session.FlashLevel, message string) {
		if ajax {
			h.writeJSON(w, status, ajaxResult{Success: false, Message: message})
			return
		}
		h.flashRedirect(w, r, sess, level, message, "/products")
	}

	id, ok := pathID(r, "id")
	if !ok {
		reject(http.StatusNotFound, session.FlashError, msgProductNotFound)
		return
	}

	product, err := h.catalog.GetAvailableProduct(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			reject(http.StatusNotFound, session.FlashError, msgProductNotFound)
			return
		}
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		reject(http.StatusInternalServerError, session.FlashError, msgAddToCartFailed)
		return
	}

	if err := sess.Cart.Add(*product, 1); err != nil {
		switch {
		case errors.Is(err, cart.ErrStockInsufficient):
			h.metrics.CartRejected(ctx, "stock")
			h.logger.Info("add to cart rejected", "reason", "stock", "product_id", id, "session_id", sess.ID)
			reject(http.StatusConflict, session.FlashError, fmt.Sprintf(msgStockInsufficient, product.Name))
		case errors.Is(err, cart.ErrInvalidQuantity):
			h.metrics.CartRejected(ctx, "quantity")
			reject(http.StatusConflict, session.FlashError, msgQuantityRange)
		default:
			h.logger.Error("failed to add to cart", "error", err, "product_id", id)
			reject(http.StatusInternalServerError, session.FlashError, msgAddToCartFailed)
		}
		return
	}

	message := fmt.Sprintf(msgAddedToCart, product.Name)
	sess.AddFlash(session.FlashSuccess, message)

	if !ajax {
		h.redirect(w, r, sess, "/products")
		return
	}

	if err := h.sessions.Save(ctx, sess); err != nil {
		h.logger.Error("failed to save session", "error", err, "session_id", sess.ID)
		h.writeJSON(w, http.StatusInternalServerError, ajaxResult{Success: false, Message: msgAddToCartFailed})
		return
	}
	h.writeJSON(w, http.StatusOK, ajaxResult{Success: true, Message: message})
}

// HandleUpdateCart applies action=increase|decrease or quantity=N to a line
// already in the cart.
func (h *Handler) HandleUpdateCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	id, ok := pathID(r, "id")
	if !ok {
		h.flashRedirect(w, r, sess, session.FlashError, msgProductNotFound, "/cart")
		return
	}

	product, err := h.catalog.GetAvailableProduct(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			h.flashRedirect(w, r, sess, session.FlashError, msgProductNotFound, "/cart")
			return
		}
		h.fail(w, r, sess, err, "/cart", "failed to get product", "product_id", id)
		return
	}

	if !sess.Cart.Contains(id) {
		h.redirect(w, r, sess, "/cart")
		return
	}

	switch action, quantity := r.FormValue("action"), r.FormValue("quantity"); {
	case action == "increase":
		switch err := sess.Cart.Add(*product, 1); {
		case err == nil:
			sess.AddFlash(session.FlashSuccess, fmt.Sprintf(msgIncreased, product.Name))
		case errors.Is(err, cart.ErrStockInsufficient):
			h.metrics.CartRejected(ctx, "stock")
			sess.AddFlash(session.FlashError, fmt.Sprintf(msgStockInsufficient, product.Name))
		default:
			sess.AddFlash(session.FlashError, msgQuantityRange)
		}

	case action == "decrease":
		if err := sess.Cart.Decrease(id); err != nil {
			sess.AddFlash(session.FlashWarning, msgMinimumQuantity)
		} else {
			sess.AddFlash(session.FlashSuccess, fmt.Sprintf(msgDecreased, product.Name))
		}

	case quantity != "":
		qty, err := strconv.Atoi(quantity)
		if !isDigits(quantity) || err != nil {
			sess.AddFlash(session.FlashError, msgQuantityRange)
			break
		}
		applied, clamped, err := sess.Cart.SetQuantity(*product, qty)
		switch {
		case errors.Is(err, cart.ErrStockInsufficient):
			h.metrics.CartRejected(ctx, "stock")
			sess.AddFlash(session.FlashError, fmt.Sprintf(msgStockInsufficient, product.Name))
		case err != nil:
			sess.AddFlash(session.FlashError, msgQuantityRange)
		case clamped:
			h.metrics.CartRejected(ctx, "stock")
			sess.AddFlash(session.FlashError, fmt.Sprintf(msgStockInsufficient, product.Name))
		default:
			sess.AddFlash(session.FlashSuccess, fmt.Sprintf(msgQuantityChanged, product.Name, applied))
		}
	}

	h.redirect(w, r, sess, "/cart")
}

func (h *Handler) HandleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	id, ok := pathID(r, "id")
	if !ok || !sess.Cart.Remove(id) {
		h.redirect(w, r, sess, "/cart")
		return
	}

	message := msgLineRemoved
	if product, err := h.catalog.GetProduct(r.Context(), id); err == nil {
		message = fmt.Sprintf(msgRemovedFromCart, product.Name)
	} else if !errors.Is(err, database.ErrProductNotFound) {
		h.logger.Warn("failed to look up removed product", "error", err, "product_id", id)
	}

	h.flashRedirect(w, r, sess, session.FlashSuccess, message, "/cart")
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	sess.ClearCart()
	h.flashRedirect(w, r, sess, session.FlashSuccess, msgCartCleared, "/cart")
}

func (h *Handler) HandleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	applied, err := h.discounts.Apply(ctx, r.FormValue("discount_code"), h.now())
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrEmptyCode):
			h.flashRedirect(w, r, sess, session.FlashError, msgDiscountEmpty, "/cart")
		case errors.Is(err, discount.ErrExhausted):
			h.flashRedirect(w, r, sess, session.FlashError, msgDiscountExhausted, "/cart")
		case errors.Is(err, discount.ErrInvalid):
			h.logger.Info("discount code rejected", "code", discount.Normalize(r.FormValue("discount_code")), "session_id", sess.ID)
			h.flashRedirect(w, r, sess, session.FlashError, msgDiscountInvalid, "/cart")
		default:
			h.fail(w, r, sess, err, "/cart", "failed to apply discount code")
		}
		return
	}

	sess.ApplyDiscount(applied)
	h.metrics.DiscountApplied(ctx, applied.Code)
	h.flashRedirect(w, r, sess, session.FlashSuccess, fmt.Sprintf(msgDiscountApplied, applied.Percent), "/cart")
}

func (h *Handler) HandleRemoveDiscount(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.RemoveDiscount() {
		sess.AddFlash(session.FlashSuccess, msgDiscountRemoved)
	}
	h.redirect(w, r, sess, "/cart")
}
