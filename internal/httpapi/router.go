package httpapi

import (
	"net/http"

	"github.com/tarla/storefront/internal/session"
	"github.com/tarla/storefront/internal/telemetry"
)

// NewRouter mounts the storefront behind the session middleware and, when
// admin is non-nil, the token-protected back office. metrics may be nil.
func NewRouter(shop *Handler, admin *AdminHandler, sessions *session.Manager, metrics http.Handler) http.Handler {
	storefront := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		storefront.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /{$}", shop.HandleHome)
	route("GET /products", shop.HandleProducts)
	route("GET /product/{id}", shop.HandleProductDetail)
	route("GET /contact", shop.HandleContactPage)
	route("POST /contact", shop.HandleContact)

	route("GET /cart", shop.HandleCart)
	route("GET /cart/summary", shop.HandleCartSummary)
	route("POST /cart/add/{id}", shop.HandleAddToCart)
	route("POST /cart/update/{id}", shop.HandleUpdateCart)
	route("GET /cart/remove/{id}", shop.HandleRemoveFromCart)
	route("POST /cart/remove/{id}", shop.HandleRemoveFromCart)
	route("POST /cart/clear", shop.HandleClearCart)
	route("POST /cart/apply-discount", shop.HandleApplyDiscount)
	route("POST /cart/remove-discount", shop.HandleRemoveDiscount)

	route("GET /checkout", shop.HandleCheckout)
	route("GET /order/confirmation/{id}", shop.HandleOrderConfirmation)

	route("GET /register", shop.HandleAuthPage)
	route("POST /register", shop.HandleRegister)
	route("GET /login", shop.HandleAuthPage)
	route("POST /login", shop.HandleLogin)
	route("POST /logout", shop.HandleLogout)
	route("GET /profile", shop.HandleProfile)

	mux := http.NewServeMux()
	mux.Handle("/", sessions.Middleware(storefront))

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	if admin != nil {
		protected := func(pattern string, h http.HandlerFunc) {
			mux.HandleFunc(pattern, telemetry.WithHTTPRoute(admin.RequireToken(h)))
		}

		protected("GET /admin/categories", admin.HandleListCategories)
		protected("POST /admin/categories", admin.HandleCreateCategory)
		protected("PUT /admin/categories/{id}", admin.HandleUpdateCategory)

		protected("GET /admin/products", admin.HandleListProducts)
		protected("POST /admin/products", admin.HandleCreateProduct)
		protected("PUT /admin/products/{id}", admin.HandleUpdateProduct)
		protected("POST /admin/products/unavailable", admin.HandleMarkUnavailable)
		protected("POST /admin/products/featured", admin.HandleMarkFeatured)

		protected("GET /admin/settings", admin.HandleGetSettings)
		protected("PUT /admin/settings", admin.HandlePutSettings)

		protected("GET /admin/discounts", admin.HandleListDiscounts)
		protected("POST /admin/discounts", admin.HandleCreateDiscount)
		protected("POST /admin/discounts/{id}/activate", admin.HandleActivateDiscount)
		protected("POST /admin/discounts/{id}/deactivate", admin.HandleDeactivateDiscount)

		protected("GET /admin/orders", admin.HandleListOrders)
		protected("GET /admin/orders/{id}", admin.HandleGetOrder)
		protected("PATCH /admin/orders/{id}/status", admin.HandleUpdateOrderStatus)
	}

	return mux
}
