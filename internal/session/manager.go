package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tarla/storefront/internal/config"
)

type contextKey struct{}

func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

type Manager struct {
	store  Store
	cfg    config.SessionConfig
	logger *slog.Logger
}

func NewManager(store Store, cfg config.SessionConfig, logger *slog.Logger) *Manager {
	return &Manager{store: store, cfg: cfg, logger: logger}
}

// Middleware loads the visitor's session, or starts a new one, and places
// it in the request context. Handlers persist changes with Save.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.load(r)
		if err != nil {
			m.logger.Error("failed to load session", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if s == nil {
			s = New(m.cfg.TTL)
		}
		// The cookie lifetime slides with the stored expiry.
		m.setCookie(w, s)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

func (m *Manager) load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, nil
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return nil, nil
	}

	s, err := m.store.Load(r.Context(), cookie.Value)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// Save persists s and slides its expiry forward.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	s.ExpiresAt = time.Now().Add(m.cfg.TTL)
	return m.store.Save(ctx, s)
}

// Renew moves s to a fresh identifier, used on login and logout so a
// pre-authentication cookie cannot be reused.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, s *Session) error {
	old := s.ID
	s.ID = uuid.NewString()
	if err := m.Save(ctx, s); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, old); err != nil {
		m.logger.Warn("failed to delete previous session", "error", err)
	}
	m.setCookie(w, s)
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
