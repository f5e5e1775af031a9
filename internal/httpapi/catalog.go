package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/session"
	"github.com/tarla/storefront/internal/store"
)

type homeView struct {
	Featured   []models.Product    `json:"featured_products"`
	Categories []models.Category   `json:"categories"`
	Site       models.SiteSettings `json:"site_settings"`
}

func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	featured, err := h.catalog.FeaturedProducts(ctx, featuredLimit)
	if err != nil {
		h.failView(w, err, "failed to list featured products")
		return
	}

	categories, err := h.catalog.ListCategories(ctx, true)
	if err != nil {
		h.failView(w, err, "failed to list categories")
		return
	}

	site, err := h.settings.Site(ctx)
	if err != nil {
		h.failView(w, err, "failed to load site settings")
		return
	}

	h.render(w, r, sess, false, homeView{Featured: featured, Categories: categories, Site: site})
}

type productsView struct {
	Products         []models.Product  `json:"products"`
	Categories       []models.Category `json:"categories"`
	SearchQuery      string            `json:"search_query"`
	SelectedCategory string            `json:"selected_category"`
	PriceMin         string            `json:"price_min"`
	PriceMax         string            `json:"price_max"`
}

// parseProductFilter reads the listing query. Price bounds that are not
// plain digit strings are ignored rather than rejected.
func parseProductFilter(r *http.Request) (store.ProductFilter, productsView) {
	q := r.URL.Query()
	view := productsView{
		SearchQuery:      strings.TrimSpace(q.Get("search")),
		SelectedCategory: q.Get("category"),
		PriceMin:         q.Get("price_min"),
		PriceMax:         q.Get("price_max"),
	}

	filter := store.ProductFilter{Search: view.SearchQuery, Category: view.SelectedCategory}
	if isDigits(view.PriceMin) {
		if v, err := strconv.ParseInt(view.PriceMin, 10, 64); err == nil {
			filter.PriceMin = &v
		}
	}
	if isDigits(view.PriceMax) {
		if v, err := strconv.ParseInt(view.PriceMax, 10, 64); err == nil {
			filter.PriceMax = &v
		}
	}
	return filter, view
}

func (h *Handler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)
	filter, view := parseProductFilter(r)

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		h.failView(w, err, "failed to list products")
		return
	}

	categories, err := h.catalog.ListCategories(ctx, true)
	if err != nil {
		h.failView(w, err, "failed to list categories")
		return
	}

	view.Products = products
	view.Categories = categories
	h.render(w, r, sess, false, view)
}

type productDetailView struct {
	Product *models.Product  `json:"product"`
	Related []models.Product `json:"related_products"`
	InCart  int              `json:"in_cart"`
}

func (h *Handler) HandleProductDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	id, ok := pathID(r, "id")
	if !ok {
		h.flashRedirect(w, r, sess, session.FlashError, msgProductNotFound, "/products")
		return
	}

	product, err := h.catalog.GetAvailableProduct(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			h.flashRedirect(w, r, sess, session.FlashError, msgProductNotFound, "/products")
			return
		}
		h.failView(w, err, "failed to get product", "product_id", id)
		return
	}

	related, err := h.catalog.RelatedProducts(ctx, *product, relatedLimit)
	if err != nil {
		h.failView(w, err, "failed to list related products", "product_id", id)
		return
	}

	h.render(w, r, sess, false, productDetailView{
		Product: product,
		Related: related,
		InCart:  sess.Cart.Quantity(product.ID),
	})
}

type contactView struct {
	Phone   string `json:"contact_phone"`
	Phone2  string `json:"contact_phone2,omitempty"`
	Email   string `json:"contact_email"`
	Address string `json:"address"`
}

func (h *Handler) HandleContactPage(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	site, err := h.settings.Site(r.Context())
	if err != nil {
		h.failView(w, err, "failed to load site settings")
		return
	}

	h.render(w, r, sess, false, contactView{
		Phone:   site.ContactPhone,
		Phone2:  site.ContactPhone2,
		Email:   site.ContactEmail,
		Address: site.Address,
	})
}

const minContactMessage = 10

// HandleContact validates the contact form. Messages are logged for the
// shop owner and not stored.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	subject := strings.TrimSpace(r.FormValue("subject"))
	message := strings.TrimSpace(r.FormValue("message"))

	if name == "" || email == "" || subject == "" || message == "" {
		h.flashRedirect(w, r, sess, session.FlashError, msgContactRequired, "/contact")
		return
	}
	if utf8.RuneCountInString(message) < minContactMessage {
		h.flashRedirect(w, r, sess, session.FlashError, msgContactTooShort, "/contact")
		return
	}

	h.logger.Info("contact message received", "name", name, "email", email, "subject", subject, "message", message)
	h.flashRedirect(w, r, sess, session.FlashSuccess, msgContactSent, "/contact")
}
