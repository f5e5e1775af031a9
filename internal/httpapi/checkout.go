package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tarla/storefront/internal/checkout"
	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/session"
)

// HandleCheckout places an order from the current cart. On success the
// cart and discount are cleared and the visitor is sent to the
// confirmation page; on any failure the cart is left as it was. Retrying
// an unchanged cart returns the order already placed for it.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	if sess.Cart.IsEmpty() {
		h.flashRedirect(w, r, sess, session.FlashWarning, msgCartEmpty, "/products")
		return
	}

	snap, err := h.resolveCart(r, sess)
	if err != nil {
		h.fail(w, r, sess, err, "/cart", "failed to resolve cart", "stage", "checkout")
		return
	}
	if snap.IsEmpty() {
		h.flashRedirect(w, r, sess, session.FlashError, msgCartEmpty, "/cart")
		return
	}

	settings, err := h.settings.Pricing(ctx)
	if err != nil {
		h.fail(w, r, sess, err, "/cart", "failed to load pricing settings")
		return
	}

	// Persisted before placing so a retried checkout resolves to the same order.
	token, fresh := sess.CheckoutToken()
	if fresh {
		if err := h.sessions.Save(ctx, sess); err != nil {
			h.failView(w, err, "failed to save session", "session_id", sess.ID, "stage", "checkout")
			return
		}
	}

	order, err := h.checkout.PlaceOrder(ctx, checkout.Request{
		Snapshot: snap,
		Settings: settings,
		Discount: sess.Discount,
		UserID:   sess.UserID,
		Token:    token,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			h.flashRedirect(w, r, sess, session.FlashError, msgCartEmpty, "/cart")
		case errors.Is(err, discount.ErrExhausted):
			sess.RemoveDiscount()
			h.flashRedirect(w, r, sess, session.FlashError, msgDiscountExhausted, "/cart")
		case errors.Is(err, discount.ErrInvalid):
			sess.RemoveDiscount()
			h.flashRedirect(w, r, sess, session.FlashError, msgDiscountInvalid, "/cart")
		default:
			h.logger.Error("failed to place order", "error", err, "session_id", sess.ID,
				"retryable", database.IsRetryable(err))
			h.flashRedirect(w, r, sess, session.FlashError, msgCheckoutFailed, "/cart")
		}
		return
	}

	sess.ClearCart()
	sess.RecordOrder(order.ID)
	h.redirect(w, r, sess, "/order/confirmation/"+strconv.FormatInt(order.ID, 10))
}

type confirmationView struct {
	Order       *models.Order `json:"order"`
	StatusLabel string        `json:"status_label"`
}

func (h *Handler) HandleOrderConfirmation(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	id, ok := pathID(r, "id")
	if !ok {
		h.flashRedirect(w, r, sess, session.FlashError, msgOrderNotFound, "/")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			h.flashRedirect(w, r, sess, session.FlashError, msgOrderNotFound, "/")
			return
		}
		h.failView(w, err, "failed to get order", "order_id", id)
		return
	}

	if !sess.CanView(order) {
		h.logger.Info("order confirmation denied", "order_id", id, "session_id", sess.ID)
		h.flashRedirect(w, r, sess, session.FlashError, msgOrderNotFound, "/")
		return
	}

	h.render(w, r, sess, false, confirmationView{Order: order, StatusLabel: order.Status.Label()})
}
