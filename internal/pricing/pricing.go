// Package pricing turns resolved cart lines, shop delivery settings and an
// optional percentage discount into a priced breakdown. All amounts are
// integer Toman and every division floors.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/tarla/storefront/internal/models"
)

const (
	DefaultDeliveryFee           int64 = 25000
	DefaultFreeDeliveryThreshold int64 = 500000
)

type Settings struct {
	DeliveryFee           int64 `json:"delivery_fee"`
	FreeDeliveryThreshold int64 `json:"free_delivery_threshold"`
	FreeDeliveryEnabled   bool  `json:"free_delivery_enabled"`
}

func DefaultSettings() Settings {
	return Settings{
		DeliveryFee:           DefaultDeliveryFee,
		FreeDeliveryThreshold: DefaultFreeDeliveryThreshold,
		FreeDeliveryEnabled:   true,
	}
}

func SettingsFrom(s models.SiteSettings) Settings {
	return Settings{
		DeliveryFee:           s.DeliveryFee,
		FreeDeliveryThreshold: s.FreeDeliveryThreshold,
		FreeDeliveryEnabled:   s.FreeDeliveryEnabled,
	}
}

// Line is one cart entry resolved against the live product.
type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

func (l Line) Total() int64 {
	return l.Product.Price * int64(l.Quantity)
}

type Breakdown struct {
	TotalPrice               int64 `json:"total_price"`
	DiscountPercent          int   `json:"discount_percent"`
	DiscountAmount           int64 `json:"discount_amount"`
	Subtotal                 int64 `json:"subtotal"`
	ShippingCost             int64 `json:"shipping_cost"`
	FinalPrice               int64 `json:"final_price"`
	RemainingForFreeShipping int64 `json:"remaining_amount"`
	ItemCount                int   `json:"cart_items_count"`
}

func (b Breakdown) FreeShipping() bool {
	return b.ItemCount > 0 && b.ShippingCost == 0
}

// Compute prices lines. discountPercent of zero means no discount applied.
func Compute(lines []Line, settings Settings, discountPercent int) Breakdown {
	var b Breakdown
	for _, line := range lines {
		b.TotalPrice += line.Total()
		b.ItemCount += line.Quantity
	}

	if discountPercent > 0 && b.TotalPrice > 0 {
		b.DiscountPercent = discountPercent
		b.DiscountAmount = DiscountAmount(b.TotalPrice, discountPercent)
	}

	b.Subtotal = b.TotalPrice - b.DiscountAmount
	b.ShippingCost = ShippingCost(b.TotalPrice, b.ItemCount, settings)
	b.FinalPrice = max(0, b.Subtotal+b.ShippingCost)
	b.RemainingForFreeShipping = RemainingForFreeShipping(b.TotalPrice, settings)

	return b
}

// DiscountAmount is floor(total * percent / 100).
func DiscountAmount(total int64, percent int) int64 {
	if total <= 0 || percent <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}

// ShippingCost tests the free-delivery threshold against the pre-discount
// total.
func ShippingCost(total int64, itemCount int, settings Settings) int64 {
	if itemCount <= 0 {
		return 0
	}
	if settings.FreeDeliveryEnabled && total >= settings.FreeDeliveryThreshold {
		return 0
	}
	return settings.DeliveryFee
}

func RemainingForFreeShipping(total int64, settings Settings) int64 {
	if !settings.FreeDeliveryEnabled {
		return 0
	}
	return max(0, settings.FreeDeliveryThreshold-total)
}
