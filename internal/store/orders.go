package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
)

const (
	ordersOrderNumberKey   = "orders_order_number_key"
	ordersCheckoutTokenKey = "orders_checkout_token_key"
)

// CreateOrder persists order with its items and, when discountID is set,
// redeems one use of that code. All writes share one transaction. The
// discount row is locked and rechecked so concurrent checkouts cannot push
// used_count past max_usage.
//
// An order carrying a CheckoutToken that was already used is not written
// again: order is replaced by the stored one and ErrOrderAlreadyPlaced is
// returned.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, discountID *int64) error {
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if order.CheckoutToken != "" {
			existing, err := orderByCheckoutToken(ctx, tx, order.CheckoutToken)
			if err == nil {
				*order = *existing
				return database.ErrOrderAlreadyPlaced
			}
			if !errors.Is(err, database.ErrOrderNotFound) {
				return err
			}
		}

		if discountID != nil {
			if err := redeemDiscount(ctx, tx, *discountID, time.Now()); err != nil {
				return err
			}
		}

		var token sql.NullString
		if order.CheckoutToken != "" {
			token = sql.NullString{String: order.CheckoutToken, Valid: true}
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, total_price, shipping_cost, final_price, status, checkout_token)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			order.UserID, order.OrderNumber, order.TotalPrice, order.ShippingCost, order.FinalPrice, order.Status, token,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			switch {
			case database.IsUniqueViolation(err, ordersOrderNumberKey):
				return database.ErrOrderNumberConflict
			case database.IsUniqueViolation(err, ordersCheckoutTokenKey):
				order.ID = 0
				return database.ErrOrderAlreadyPlaced
			}
			return fmt.Errorf("create order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id`,
				order.ID, item.ProductID, item.Quantity, item.Price,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		return nil
	})

	// A concurrent checkout with the same token committed first.
	if errors.Is(err, database.ErrOrderAlreadyPlaced) && order.ID == 0 {
		existing, lookupErr := orderByCheckoutToken(ctx, s.db, order.CheckoutToken)
		if lookupErr != nil {
			return fmt.Errorf("load placed order: %w", lookupErr)
		}
		*order = *existing
	}
	return err
}

func orderByCheckoutToken(ctx context.Context, q database.Querier, token string) (*models.Order, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM orders WHERE checkout_token = $1`, token).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order by checkout token: %w", err)
	}

	order, err := getOrder(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.CheckoutToken = token
	return order, nil
}

func redeemDiscount(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	code, err := scanDiscount(tx.QueryRowContext(ctx,
		`SELECT `+discountColumns+`
		 FROM discount_codes
		 WHERE id = $1
		 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrDiscountInvalid
		}
		return fmt.Errorf("lock discount code: %w", err)
	}

	if code.Exhausted() {
		return database.ErrDiscountExhausted
	}
	if !code.IsActive || !code.InWindow(now) {
		return database.ErrDiscountInvalid
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE discount_codes
		 SET used_count = used_count + 1
		 WHERE id = $1
		   AND used_count < max_usage`,
		id)
	if err != nil {
		return fmt.Errorf("redeem discount code: %w", err)
	}

	return expectOneRow(result, database.ErrDiscountExhausted)
}

const orderColumns = `id, user_id, order_number, total_price, shipping_cost, final_price, status, created_at, updated_at`

func scanOrder(row scanner) (models.Order, error) {
	var order models.Order
	var userID sql.NullInt64
	err := row.Scan(
		&order.ID,
		&userID,
		&order.OrderNumber,
		&order.TotalPrice,
		&order.ShippingCost,
		&order.FinalPrice,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if userID.Valid {
		order.UserID = &userID.Int64
	}
	return order, err
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, s.db, id)
}

func getOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.price
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.id`

	rows, err := q.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return &order, nil
}

// OrderFilter restricts an order listing to one customer and/or status.
type OrderFilter struct {
	UserID *int64
	Status models.OrderStatus
}

// ListOrdersCursor pages through orders newest first using a keyset cursor.
// Items are returned without their lines.
func (s *Store) ListOrdersCursor(ctx context.Context, filter OrderFilter, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	var userID sql.NullInt64
	if filter.UserID != nil {
		userID = sql.NullInt64{Int64: *filter.UserID, Valid: true}
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::BIGINT IS NULL OR user_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND (created_at, id) < ($3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5`

	rows, err := s.db.QueryContext(ctx, query, userID, string(filter.Status), cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// CheckStatusTransition returns database.ErrInvalidStatusTransition when an
// order may not move from previous to next.
func CheckStatusTransition(previous, next models.OrderStatus) error {
	if previous.Terminal() {
		return fmt.Errorf("%w: order is already %s", database.ErrInvalidStatusTransition, previous)
	}
	if !previous.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", database.ErrInvalidStatusTransition, previous, next)
	}
	return nil
}

// UpdateOrderStatus moves an order to next if the lifecycle allows it and
// returns the updated order together with the status it left.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, next models.OrderStatus) (*models.Order, models.OrderStatus, error) {
	var order *models.Order
	var previous models.OrderStatus

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if err := CheckStatusTransition(previous, next); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
			next, id)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	return order, previous, nil
}
