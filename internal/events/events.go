package events

import (
	"strconv"
	"time"

	"github.com/tarla/storefront/internal/models"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

type OrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}

type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        int64              `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	UserID         *int64             `json:"user_id,omitempty"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	FinalPrice     int64              `json:"final_price"`
	Items          []OrderLine        `json:"items,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

func (e OrderEvent) key() string {
	return strconv.FormatInt(e.OrderID, 10)
}

func NewOrderPlaced(order *models.Order) OrderEvent {
	lines := make([]OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, OrderLine{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return OrderEvent{
		Type:        TypeOrderPlaced,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		FinalPrice:  order.FinalPrice,
		Items:       lines,
		Timestamp:   order.CreatedAt,
	}
}

func NewOrderStatusChanged(order *models.Order, previous models.OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           TypeOrderStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		FinalPrice:     order.FinalPrice,
		Timestamp:      order.UpdatedAt,
	}
}
