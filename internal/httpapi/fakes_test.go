package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tarla/storefront/internal/checkout"
	"github.com/tarla/storefront/internal/config"
	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/session"
	"github.com/tarla/storefront/internal/settings"
	"github.com/tarla/storefront/internal/store"
)

// fakeShop is an in-memory stand-in for the Postgres store.
type fakeShop struct {
	mu        sync.Mutex
	products  map[int64]models.Product
	orders    map[int64]*models.Order
	users     map[string]*models.User
	passwords map[int64]string
	codes     map[string]*models.DiscountCode
	tokens    map[string]int64
	nextID    int64
}

func newFakeShop() *fakeShop {
	now := time.Now()
	return &fakeShop{
		products: map[int64]models.Product{
			1: {ID: 1, Name: "زعفران", Price: 100000, CategoryID: 1, CategoryName: "ادویه", IsAvailable: true, IsFeatured: true, StockQuantity: 5},
			2: {ID: 2, Name: "عسل", Price: 250000, CategoryID: 1, CategoryName: "ادویه", IsAvailable: true, StockQuantity: 10},
			3: {ID: 3, Name: "گردو", Price: 90000, CategoryID: 2, CategoryName: "خشکبار", IsAvailable: false, StockQuantity: 10},
		},
		orders:    map[int64]*models.Order{},
		users:     map[string]*models.User{},
		passwords: map[int64]string{},
		codes: map[string]*models.DiscountCode{
			"NOWRUZ": {ID: 7, Code: "NOWRUZ", DiscountPercent: 20, MaxUsage: 5, IsActive: true, ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour)},
			"USED":   {ID: 8, Code: "USED", DiscountPercent: 10, MaxUsage: 1, UsedCount: 1, IsActive: true, ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour)},
		},
		tokens: map[string]int64{},
		nextID: 100,
	}
}

func (f *fakeShop) AvailableProducts(_ context.Context, ids []int64) (map[int64]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]models.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.IsAvailable {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeShop) FeaturedProducts(_ context.Context, limit int) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.sortedProducts() {
		if p.IsFeatured && p.IsAvailable && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeShop) ListProducts(_ context.Context, filter store.ProductFilter) ([]models.Product, error) {
	out := []models.Product{}
	for _, p := range f.sortedProducts() {
		if !p.IsAvailable {
			continue
		}
		if filter.Search != "" && !strings.Contains(p.Name, filter.Search) {
			continue
		}
		if filter.PriceMin != nil && p.Price < *filter.PriceMin {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeShop) ListCategories(context.Context, bool) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "ادویه", IsActive: true}, {ID: 2, Name: "خشکبار", IsActive: true}}, nil
}

func (f *fakeShop) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeShop) GetAvailableProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := f.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable {
		return nil, database.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeShop) RelatedProducts(_ context.Context, product models.Product, limit int) ([]models.Product, error) {
	out := []models.Product{}
	for _, p := range f.sortedProducts() {
		if p.CategoryID == product.CategoryID && p.ID != product.ID && p.IsAvailable && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeShop) sortedProducts() []models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Product) int { return int(a.ID - b.ID) })
	return out
}

func (f *fakeShop) CreateOrder(_ context.Context, order *models.Order, discountID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.tokens[order.CheckoutToken]; order.CheckoutToken != "" && ok {
		*order = *f.orders[id]
		return database.ErrOrderAlreadyPlaced
	}
	if discountID != nil {
		for _, c := range f.codes {
			if c.ID == *discountID {
				if c.Exhausted() {
					return database.ErrDiscountExhausted
				}
				c.UsedCount++
			}
		}
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	stored := *order
	f.orders[order.ID] = &stored
	if order.CheckoutToken != "" {
		f.tokens[order.CheckoutToken] = order.ID
	}
	return nil
}

func (f *fakeShop) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeShop) ListOrdersCursor(_ context.Context, filter store.OrderFilter, _ string, _ int) (*store.CursorPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := []models.Order{}
	for _, o := range f.orders {
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		orders = append(orders, *o)
	}
	return &store.CursorPage{Items: orders}, nil
}

func (f *fakeShop) CreateUser(_ context.Context, username, password, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return nil, database.ErrDuplicateUsername
	}
	f.nextID++
	u := &models.User{ID: f.nextID, Username: username, Email: email}
	f.users[username] = u
	f.passwords[u.ID] = password
	return u, nil
}

func (f *fakeShop) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok || f.passwords[u.ID] != password {
		return nil, database.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeShop) GetUser(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, database.ErrUserNotFound
}

func (f *fakeShop) DiscountByCode(_ context.Context, code string) (*models.DiscountCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[code]
	if !ok {
		return nil, database.ErrDiscountNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeShop) GetSiteSettings(context.Context) (*models.SiteSettings, error) {
	return nil, database.ErrSettingsNotFound
}

// failingSaveStore drops the first save of a session that has recorded an
// order, as a database outage right after checkout would.
type failingSaveStore struct {
	*session.MemoryStore
	mu     sync.Mutex
	failed bool
}

func (s *failingSaveStore) Save(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	fail := !s.failed && len(sess.Orders) > 0
	if fail {
		s.failed = true
	}
	s.mu.Unlock()
	if fail {
		return errors.New("session store unavailable")
	}
	return s.MemoryStore.Save(ctx, sess)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(shop *fakeShop, admin *AdminHandler) http.Handler {
	return newTestRouterWith(shop, admin, session.NewMemoryStore())
}

func newTestRouterWith(shop *fakeShop, admin *AdminHandler, sessionStore session.Store) http.Handler {
	logger := discardLogger()
	sessions := session.NewManager(sessionStore, config.SessionConfig{CookieName: "tarla_session", TTL: time.Hour}, logger)
	provider := settings.NewProvider(shop, config.ShopConfig{
		SiteName:              "ترلا",
		DeliveryFee:           25000,
		FreeDeliveryThreshold: 500000,
		FreeDeliveryEnabled:   true,
	})

	h := NewHandler(Deps{
		Catalog:   shop,
		Orders:    shop,
		Accounts:  shop,
		Checkout:  checkout.NewService(shop, checkout.NewNumberGenerator(), nil, nil, logger),
		Discounts: discount.NewRegistry(shop),
		Settings:  provider,
		Sessions:  sessions,
		Logger:    logger,
	})
	return NewRouter(h, admin, sessions, nil)
}

// browser replays the session cookie across requests like a user agent.
type browser struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func newBrowser(t *testing.T, router http.Handler) *browser {
	return &browser{t: t, router: router}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tarla_session" {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

type pageBody struct {
	Messages []session.Flash `json:"messages"`
	Data     json.RawMessage `json:"data"`
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder, data any) []session.Flash {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body pageBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if data != nil {
		if err := json.Unmarshal(body.Data, data); err != nil {
			t.Fatalf("failed to decode page data: %v", err)
		}
	}
	return body.Messages
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func hasMessage(messages []session.Flash, level session.FlashLevel, text string) bool {
	for _, m := range messages {
		if m.Level == level && m.Message == text {
			return true
		}
	}
	return false
}
