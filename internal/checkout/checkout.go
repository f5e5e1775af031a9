package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tarla/storefront/internal/cart"
	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/pricing"
	"github.com/tarla/storefront/internal/telemetry"
)

var ErrEmptyCart = errors.New("cart is empty")

const maxNumberAttempts = 3

// Writer persists an order, its items and the discount redemption in one
// transaction. It fills in IDs and timestamps on success and returns
// database.ErrOrderNumberConflict when the order number is taken. When the
// order's checkout token was already used it loads that order into order
// and returns database.ErrOrderAlreadyPlaced without writing anything.
type Writer interface {
	CreateOrder(ctx context.Context, order *models.Order, discountID *int64) error
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *models.Order) error
}

type Request struct {
	Snapshot cart.Snapshot
	Settings pricing.Settings
	Discount *discount.Applied
	UserID   *int64

	// Token identifies this checkout of the cart. Repeating a request with
	// the same token returns the order placed the first time.
	Token string
}

type Service struct {
	writer    Writer
	numbers   *NumberGenerator
	publisher Publisher
	metrics   *telemetry.ShopMetrics
	logger    *slog.Logger
}

func NewService(writer Writer, numbers *NumberGenerator, publisher Publisher, metrics *telemetry.ShopMetrics, logger *slog.Logger) *Service {
	return &Service{
		writer:    writer,
		numbers:   numbers,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// PlaceOrder materializes a priced snapshot as a pending order. The caller
// clears the cart and applied discount only when this returns nil. A
// repeated token yields the original order and is not counted or published
// again.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*models.Order, error) {
	if req.Snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}

	percent := 0
	var discountID *int64
	if req.Discount != nil {
		percent = req.Discount.Percent
		id := req.Discount.ID
		discountID = &id
	}

	breakdown := pricing.Compute(req.Snapshot.Lines, req.Settings, percent)

	items := make([]models.OrderItem, 0, len(req.Snapshot.Lines))
	for _, line := range req.Snapshot.Lines {
		items = append(items, models.OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			Price:       line.Product.Price,
		})
	}

	var order *models.Order
	var err error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		order = &models.Order{
			UserID:        req.UserID,
			OrderNumber:   s.numbers.Next(),
			TotalPrice:    breakdown.TotalPrice,
			ShippingCost:  breakdown.ShippingCost,
			FinalPrice:    breakdown.FinalPrice,
			Status:        models.OrderStatusPending,
			CheckoutToken: req.Token,
			Items:         items,
		}

		err = s.writer.CreateOrder(ctx, order, discountID)
		if !errors.Is(err, database.ErrOrderNumberConflict) {
			break
		}
		s.logger.Warn("order number collision", "order_number", order.OrderNumber, "attempt", attempt)
	}
	if errors.Is(err, database.ErrOrderAlreadyPlaced) {
		s.logger.Info("checkout already completed", "order_id", order.ID, "order_number", order.OrderNumber)
		return order, nil
	}
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	s.metrics.OrderPlaced(ctx, order.FinalPrice, discountID != nil)
	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"final_price", order.FinalPrice,
		"items", len(order.Items),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
			s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	return order, nil
}
