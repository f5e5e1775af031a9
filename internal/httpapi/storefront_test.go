package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/tarla/storefront/internal/session"
)

type cartPage struct {
	Items []struct {
		Quantity int   `json:"quantity"`
		Total    int64 `json:"total"`
	} `json:"cart_items"`
	TotalPrice     int64 `json:"total_price"`
	DiscountAmount int64 `json:"discount_amount"`
	ShippingCost   int64 `json:"shipping_cost"`
	FinalPrice     int64 `json:"final_price"`
	ItemCount      int   `json:"cart_items_count"`
}

func TestCartCheckoutFlow(t *testing.T) {
	shop := newFakeShop()
	router := newTestRouter(shop, nil)
	b := newBrowser(t, router)

	expectRedirect(t, b.post("/cart/add/1", nil), "/products")

	var c cartPage
	messages := decodePage(t, b.get("/cart"), &c)
	if !hasMessage(messages, session.FlashSuccess, fmt.Sprintf(msgAddedToCart, "زعفران")) {
		t.Errorf("Expected added-to-cart message, got %+v", messages)
	}
	if c.TotalPrice != 100000 || c.ShippingCost != 25000 || c.FinalPrice != 125000 {
		t.Errorf("Unexpected totals: %+v", c)
	}

	expectRedirect(t, b.post("/cart/update/1", url.Values{"quantity": {"10"}}), "/cart")
	messages = decodePage(t, b.get("/cart"), &c)
	if !hasMessage(messages, session.FlashError, fmt.Sprintf(msgStockInsufficient, "زعفران")) {
		t.Errorf("Expected stock message after clamp, got %+v", messages)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 5 {
		t.Fatalf("Expected quantity clamped to 5, got %+v", c.Items)
	}
	if c.TotalPrice != 500000 || c.ShippingCost != 0 {
		t.Errorf("Expected free shipping at threshold, got %+v", c)
	}

	expectRedirect(t, b.post("/cart/apply-discount", url.Values{"discount_code": {" nowruz "}}), "/cart")
	messages = decodePage(t, b.get("/cart"), &c)
	if !hasMessage(messages, session.FlashSuccess, fmt.Sprintf(msgDiscountApplied, 20)) {
		t.Errorf("Expected discount message, got %+v", messages)
	}
	if c.DiscountAmount != 100000 || c.FinalPrice != 400000 {
		t.Errorf("Expected discount 100000 final 400000, got %+v", c)
	}

	rec := b.get("/checkout")
	expectRedirect(t, rec, "/order/confirmation/101")

	var confirmation struct {
		Order struct {
			FinalPrice int64  `json:"final_price"`
			Status     string `json:"status"`
		} `json:"order"`
		StatusLabel string `json:"status_label"`
	}
	decodePage(t, b.get("/order/confirmation/101"), &confirmation)
	if confirmation.Order.FinalPrice != 400000 || confirmation.Order.Status != "pending" {
		t.Errorf("Unexpected confirmation: %+v", confirmation)
	}
	if shop.codes["NOWRUZ"].UsedCount != 1 {
		t.Errorf("Discount should be redeemed once, used %d", shop.codes["NOWRUZ"].UsedCount)
	}

	decodePage(t, b.get("/cart"), &c)
	if len(c.Items) != 0 || c.FinalPrice != 0 {
		t.Errorf("Cart should be empty after checkout, got %+v", c)
	}

	stranger := newBrowser(t, router)
	expectRedirect(t, stranger.get("/order/confirmation/101"), "/")
}

func TestCheckoutRetryAfterSessionSaveFailure(t *testing.T) {
	shop := newFakeShop()
	b := newBrowser(t, newTestRouterWith(shop, nil, &failingSaveStore{MemoryStore: session.NewMemoryStore()}))

	expectRedirect(t, b.post("/cart/add/1", nil), "/products")
	expectRedirect(t, b.post("/cart/apply-discount", url.Values{"discount_code": {"NOWRUZ"}}), "/cart")

	rec := b.get("/checkout")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500 when the session cannot be saved, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(shop.orders) != 1 {
		t.Fatalf("Expected one order after the first attempt, got %d", len(shop.orders))
	}

	expectRedirect(t, b.get("/checkout"), "/order/confirmation/101")
	if len(shop.orders) != 1 {
		t.Errorf("Retry should not place a second order, got %d orders", len(shop.orders))
	}
	if used := shop.codes["NOWRUZ"].UsedCount; used != 1 {
		t.Errorf("Discount should be redeemed once, used %d", used)
	}

	var c cartPage
	decodePage(t, b.get("/cart"), &c)
	if len(c.Items) != 0 {
		t.Errorf("Cart should be empty after the retried checkout, got %+v", c)
	}
	decodePage(t, b.get("/order/confirmation/101"), nil)

	expectRedirect(t, b.post("/cart/add/2", nil), "/products")
	expectRedirect(t, b.get("/checkout"), "/order/confirmation/102")
	if len(shop.orders) != 2 {
		t.Errorf("A new cart should place a new order, got %d orders", len(shop.orders))
	}
}

func TestCheckoutWithOnlyUnavailableProducts(t *testing.T) {
	shop := newFakeShop()
	b := newBrowser(t, newTestRouter(shop, nil))

	expectRedirect(t, b.post("/cart/add/1", nil), "/products")

	shop.mu.Lock()
	p := shop.products[1]
	p.IsAvailable = false
	shop.products[1] = p
	shop.mu.Unlock()

	expectRedirect(t, b.get("/checkout"), "/cart")
	messages := decodePage(t, b.get("/cart"), nil)
	if !hasMessage(messages, session.FlashError, msgCartEmpty) {
		t.Errorf("Expected empty cart error, got %+v", messages)
	}
	if len(shop.orders) != 0 {
		t.Errorf("No order should be placed, got %d", len(shop.orders))
	}
}

func TestAddToCartAjax(t *testing.T) {
	b := newBrowser(t, newTestRouter(newFakeShop(), nil))

	ajax := func(path string) (int, ajaxResult) {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		rec := b.do(req)
		var res ajaxResult
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("failed to decode ajax result: %v", err)
		}
		return rec.Code, res
	}

	for i := range 5 {
		if code, res := ajax("/cart/add/1"); code != http.StatusOK || !res.Success {
			t.Fatalf("add %d: expected success, got %d %+v", i+1, code, res)
		}
	}

	code, res := ajax("/cart/add/1")
	if code != http.StatusConflict || res.Success || res.Message != fmt.Sprintf(msgStockInsufficient, "زعفران") {
		t.Errorf("Expected stock rejection, got %d %+v", code, res)
	}

	if code, res := ajax("/cart/add/3"); code != http.StatusNotFound || res.Message != msgProductNotFound {
		t.Errorf("Unavailable product should be rejected, got %d %+v", code, res)
	}

	var summary cartSummary
	rec := b.get("/cart/summary")
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.ItemCount != 5 || summary.TotalPrice != 500000 || summary.ShippingCost != 0 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestCartMutations(t *testing.T) {
	b := newBrowser(t, newTestRouter(newFakeShop(), nil))
	expectRedirect(t, b.post("/cart/add/2", nil), "/products")

	expectRedirect(t, b.post("/cart/update/2", url.Values{"action": {"decrease"}}), "/cart")
	messages := decodePage(t, b.get("/cart"), nil)
	if !hasMessage(messages, session.FlashWarning, msgMinimumQuantity) {
		t.Errorf("Expected minimum quantity warning, got %+v", messages)
	}

	expectRedirect(t, b.post("/cart/update/2", url.Values{"quantity": {"-1"}}), "/cart")
	messages = decodePage(t, b.get("/cart"), nil)
	if !hasMessage(messages, session.FlashError, msgQuantityRange) {
		t.Errorf("Expected quantity range error, got %+v", messages)
	}

	expectRedirect(t, b.post("/cart/apply-discount", url.Values{"discount_code": {"USED"}}), "/cart")
	messages = decodePage(t, b.get("/cart"), nil)
	if !hasMessage(messages, session.FlashError, msgDiscountExhausted) {
		t.Errorf("Expected exhausted message, got %+v", messages)
	}

	expectRedirect(t, b.post("/cart/apply-discount", url.Values{"discount_code": {"NOPE"}}), "/cart")
	messages = decodePage(t, b.get("/cart"), nil)
	if !hasMessage(messages, session.FlashError, msgDiscountInvalid) {
		t.Errorf("Expected invalid code message, got %+v", messages)
	}

	expectRedirect(t, b.get("/cart/remove/2"), "/cart")
	messages = decodePage(t, b.get("/cart"), nil)
	if !hasMessage(messages, session.FlashSuccess, fmt.Sprintf(msgRemovedFromCart, "عسل")) {
		t.Errorf("Expected removal message, got %+v", messages)
	}

	expectRedirect(t, b.get("/checkout"), "/products")
	messages = decodePage(t, b.get("/products"), nil)
	if !hasMessage(messages, session.FlashWarning, msgCartEmpty) {
		t.Errorf("Expected empty cart warning, got %+v", messages)
	}
}

func TestProductViews(t *testing.T) {
	b := newBrowser(t, newTestRouter(newFakeShop(), nil))

	var home homeView
	decodePage(t, b.get("/"), &home)
	if len(home.Featured) != 1 || home.Site.DeliveryFee != 25000 {
		t.Errorf("Unexpected home view: %+v", home)
	}

	var list productsView
	decodePage(t, b.get("/products?price_min=200000&price_max=abc"), &list)
	if len(list.Products) != 1 || list.Products[0].ID != 2 || list.PriceMax != "abc" {
		t.Errorf("Unexpected product listing: %+v", list)
	}

	var detail productDetailView
	decodePage(t, b.get("/product/1"), &detail)
	if detail.Product.ID != 1 || len(detail.Related) != 1 || detail.Related[0].ID != 2 {
		t.Errorf("Unexpected detail view: %+v", detail)
	}

	expectRedirect(t, b.get("/product/3"), "/products")
}

func TestContact(t *testing.T) {
	b := newBrowser(t, newTestRouter(newFakeShop(), nil))

	expectRedirect(t, b.post("/contact", url.Values{"name": {"علی"}, "email": {"a@b.ir"}, "subject": {"سلام"}, "message": {"کوتاه"}}), "/contact")
	messages := decodePage(t, b.get("/contact"), nil)
	if !hasMessage(messages, session.FlashError, msgContactTooShort) {
		t.Errorf("Expected short message error, got %+v", messages)
	}

	expectRedirect(t, b.post("/contact", url.Values{"name": {"علی"}}), "/contact")
	messages = decodePage(t, b.get("/contact"), nil)
	if !hasMessage(messages, session.FlashError, msgContactRequired) {
		t.Errorf("Expected required fields error, got %+v", messages)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	router := newTestRouter(newFakeShop(), nil)
	b := newBrowser(t, router)

	expectRedirect(t, b.post("/register", url.Values{"username": {"sara"}, "password": {"longpassword"}, "password2": {"different1"}}), "/register")
	messages := decodePage(t, b.get("/register"), nil)
	if !hasMessage(messages, session.FlashError, msgPasswordMismatch) {
		t.Errorf("Expected mismatch error, got %+v", messages)
	}

	expectRedirect(t, b.post("/register", url.Values{"username": {"sara"}, "password": {"short"}, "password2": {"short"}}), "/register")
	messages = decodePage(t, b.get("/register"), nil)
	if !hasMessage(messages, session.FlashError, msgPasswordTooShort) {
		t.Errorf("Expected short password error, got %+v", messages)
	}

	anonymous := b.cookie.Value
	expectRedirect(t, b.post("/register", url.Values{"username": {"sara"}, "password": {"longpassword"}, "password2": {"longpassword"}}), "/")
	if b.cookie.Value == anonymous {
		t.Error("Session id should be renewed on sign-in")
	}

	var profile profileView
	decodePage(t, b.get("/profile"), &profile)
	if profile.User == nil || profile.User.Username != "sara" {
		t.Errorf("Unexpected profile: %+v", profile)
	}

	expectRedirect(t, b.post("/logout", nil), "/")
	expectRedirect(t, b.get("/profile"), "/login?next=%2Fprofile")

	expectRedirect(t, b.post("/login", url.Values{"username": {"sara"}, "password": {"wrongpassword"}}), "/login")
	messages = decodePage(t, b.get("/login"), nil)
	if !hasMessage(messages, session.FlashError, msgInvalidCredentials) {
		t.Errorf("Expected invalid credentials, got %+v", messages)
	}

	expectRedirect(t, b.post("/login?next=/profile", url.Values{"username": {"sara"}, "password": {"longpassword"}}), "/profile")

	other := newBrowser(t, router)
	expectRedirect(t, other.post("/register", url.Values{"username": {"sara"}, "password": {"longpassword"}, "password2": {"longpassword"}}), "/register")
	messages = decodePage(t, other.get("/register"), nil)
	if !hasMessage(messages, session.FlashError, msgUsernameTaken) {
		t.Errorf("Expected duplicate username error, got %+v", messages)
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                   "/",
		"/profile":           "/profile",
		"https://evil.com":   "/",
		"//evil.com":         "/",
		"/\\evil.com":        "/",
		"/products?search=x": "/products?search=x",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseProductFilter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products?search=+honey+&category=2&price_min=100&price_max=-5", nil)
	filter, view := parseProductFilter(r)

	if filter.Search != "honey" || filter.Category != "2" {
		t.Errorf("Unexpected filter: %+v", filter)
	}
	if filter.PriceMin == nil || *filter.PriceMin != 100 {
		t.Errorf("Expected price_min 100, got %v", filter.PriceMin)
	}
	if filter.PriceMax != nil {
		t.Errorf("Signed price_max should be ignored, got %d", *filter.PriceMax)
	}
	if view.PriceMax != "-5" {
		t.Errorf("View should echo the raw input, got %q", view.PriceMax)
	}

	for _, s := range []string{"", "1.5", " 1", "+1", "۱۲"} {
		if isDigits(s) {
			t.Errorf("isDigits(%q) should be false", s)
		}
	}
}
