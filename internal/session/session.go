// Package session owns per-visitor state: the cart, the applied discount,
// the logged-in user and pending flash messages.
package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tarla/storefront/internal/cart"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/models"
)

var ErrNotFound = errors.New("session not found")

type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashError   FlashLevel = "error"
	FlashWarning FlashLevel = "warning"
)

type Flash struct {
	Level   FlashLevel `json:"level"`
	Message string     `json:"message"`
}

type Session struct {
	ID        string            `json:"-"`
	UserID    *int64            `json:"user_id,omitempty"`
	Cart      *cart.Cart        `json:"cart"`
	Discount  *discount.Applied `json:"discount_code,omitempty"`
	Flashes   []Flash           `json:"flashes,omitempty"`
	Orders    []int64           `json:"orders,omitempty"`
	ExpiresAt time.Time         `json:"-"`
}

const maxRecordedOrders = 20

func New(ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Cart:      cart.New(),
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Normalize repairs a decoded session so Cart is never nil.
func (s *Session) Normalize() {
	if s.Cart == nil {
		s.Cart = cart.New()
	}
}

func (s *Session) Authenticated() bool {
	return s.UserID != nil
}

func (s *Session) Login(userID int64) {
	s.UserID = &userID
}

func (s *Session) Logout() {
	s.UserID = nil
}

func (s *Session) AddFlash(level FlashLevel, message string) {
	s.Flashes = append(s.Flashes, Flash{Level: level, Message: message})
}

func (s *Session) PopFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// ApplyDiscount replaces any previously applied code; percentages never
// stack.
func (s *Session) ApplyDiscount(applied *discount.Applied) {
	s.Discount = applied
	s.Cart.Token = ""
}

func (s *Session) RemoveDiscount() bool {
	if s.Discount == nil {
		return false
	}
	s.Discount = nil
	s.Cart.Token = ""
	return true
}

// ClearCart empties the cart and drops the applied discount with it.
func (s *Session) ClearCart() {
	s.Cart.Clear()
	s.Discount = nil
}

// CheckoutToken returns the token under which the current cart is checked
// out, minting one when the cart has none. A fresh token must be saved with
// the session before an order is placed under it.
func (s *Session) CheckoutToken() (token string, fresh bool) {
	if s.Cart.Token != "" {
		return s.Cart.Token, false
	}
	s.Cart.Token = uuid.NewString()
	return s.Cart.Token, true
}

// RecordOrder remembers an order placed from this session so its
// confirmation page stays viewable for guests.
func (s *Session) RecordOrder(id int64) {
	if slices.Contains(s.Orders, id) {
		return
	}
	s.Orders = append(s.Orders, id)
	if len(s.Orders) > maxRecordedOrders {
		s.Orders = s.Orders[len(s.Orders)-maxRecordedOrders:]
	}
}

// CanView reports whether the visitor may see order: their own account's
// orders and anything placed from this session.
func (s *Session) CanView(order *models.Order) bool {
	if order.UserID != nil && s.UserID != nil && *order.UserID == *s.UserID {
		return true
	}
	return slices.Contains(s.Orders, order.ID)
}

type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
