package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
)

var (
	ErrEmptyCode = errors.New("discount code is empty")
	ErrInvalid   = database.ErrDiscountInvalid
	ErrExhausted = database.ErrDiscountExhausted
)

// Applied is the session snapshot of a validated code.
type Applied struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
	ID      int64  `json:"id"`
}

type Lookup interface {
	DiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

type Registry struct {
	codes Lookup
}

func NewRegistry(codes Lookup) *Registry {
	return &Registry{codes: codes}
}

func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Apply validates raw at now. It never touches used_count; redemption is
// recorded when an order is placed.
func (r *Registry) Apply(ctx context.Context, raw string, now time.Time) (*Applied, error) {
	code := Normalize(raw)
	if code == "" {
		return nil, ErrEmptyCode
	}

	dc, err := r.codes.DiscountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrDiscountNotFound) {
			return nil, ErrInvalid
		}
		return nil, fmt.Errorf("lookup discount code: %w", err)
	}

	if !dc.IsActive || !dc.InWindow(now) {
		return nil, ErrInvalid
	}
	if dc.Exhausted() {
		return nil, ErrExhausted
	}

	return &Applied{Code: dc.Code, Percent: dc.DiscountPercent, ID: dc.ID}, nil
}
