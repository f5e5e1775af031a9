package models

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:    "در انتظار پرداخت",
	OrderStatusPaid:       "پرداخت شده",
	OrderStatusProcessing: "در حال آماده‌سازی",
	OrderStatusShipped:    "ارسال شده",
	OrderStatusDelivered:  "تحویل داده شده",
	OrderStatusCancelled:  "لغو شده",
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

func (s OrderStatus) Label() string {
	return orderStatusLabels[s]
}

// CanTransitionTo reports whether an administrator may move an order from s
// to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}
