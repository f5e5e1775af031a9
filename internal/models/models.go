package models

import (
	"time"
)

// Amounts are integer Toman, the smallest unit the shop prices in.

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"`
	ImageURL      string    `json:"image_url,omitempty"`
	CategoryID    int64     `json:"category_id"`
	CategoryName  string    `json:"category_name,omitempty"`
	IsFeatured    bool      `json:"is_featured"`
	IsAvailable   bool      `json:"is_available"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// SiteSettings is the singleton shop configuration row.
type SiteSettings struct {
	SiteName              string    `json:"site_name"`
	DeliveryFee           int64     `json:"delivery_fee"`
	FreeDeliveryThreshold int64     `json:"free_delivery_threshold"`
	FreeDeliveryEnabled   bool      `json:"free_delivery_enabled"`
	ContactPhone          string    `json:"contact_phone"`
	ContactPhone2         string    `json:"contact_phone2,omitempty"`
	ContactEmail          string    `json:"contact_email"`
	Address               string    `json:"address"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type DiscountCode struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	MaxUsage        int       `json:"max_usage"`
	UsedCount       int       `json:"used_count"`
	IsActive        bool      `json:"is_active"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	CreatedAt       time.Time `json:"created_at"`
}

// InWindow reports whether now falls inside [ValidFrom, ValidTo], both ends
// inclusive.
func (d DiscountCode) InWindow(now time.Time) bool {
	return !now.Before(d.ValidFrom) && !now.After(d.ValidTo)
}

func (d DiscountCode) Exhausted() bool {
	return d.UsedCount >= d.MaxUsage
}

func (d DiscountCode) IsValid(now time.Time) bool {
	return d.IsActive && !d.Exhausted() && d.InWindow(now)
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Order struct {
	ID            int64       `json:"id"`
	UserID        *int64      `json:"user_id,omitempty"`
	OrderNumber   string      `json:"order_number"`
	TotalPrice    int64       `json:"total_price"`
	ShippingCost  int64       `json:"shipping_cost"`
	FinalPrice    int64       `json:"final_price"`
	Status        OrderStatus `json:"status"`
	CheckoutToken string      `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

func (i OrderItem) Total() int64 {
	return int64(i.Quantity) * i.Price
}
