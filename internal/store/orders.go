package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/models"
)

type PlaceOrderRequest struct {
	BuyerID         int64
	Items           []OrderItemRequest
	FullName        string
	Email           string
	ContactNumber   string
	ShippingAddress string
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// PlaceOrder converts a cart into a persisted order inside a single
// serializable transaction: every product row is locked and validated,
// the total is computed from the locked reads, then the order header,
// its items and the stock decrements are written together. Any failure
// rolls the whole attempt back; no partial order is ever visible.
func PlaceOrder(ctx context.Context, db *sql.DB, req PlaceOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, database.ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, database.ErrInvalidQuantity
		}
	}
	if strings.TrimSpace(req.FullName) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.ContactNumber) == "" ||
		strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, database.ErrMissingContactDetails
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.BuyerID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check buyer exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		// Validate each line against the locked product row and snapshot
		// the price observed in this same transaction.
		totalAmount := decimal.Zero
		snapshots := make(map[int64]decimal.Decimal, len(req.Items))
		names := make(map[int64]string, len(req.Items))
		stocks := make(map[int64]int, len(req.Items))

		for _, item := range req.Items {
			var (
				name          string
				price         decimal.Decimal
				stockQuantity int
			)

			err := tx.QueryRowContext(ctx,
				`SELECT name, price, stock_quantity
				 FROM products
				 WHERE id = $1
				 FOR UPDATE`,
				item.ProductID).Scan(&name, &price, &stockQuantity)
			if err != nil {
				if err == sql.ErrNoRows {
					return &database.ProductNotFoundError{ProductID: item.ProductID}
				}
				return fmt.Errorf("lock product %d: %w", item.ProductID, err)
			}

			if stockQuantity < item.Quantity {
				return &database.InsufficientStockError{
					ProductID: item.ProductID,
					Name:      name,
					Available: stockQuantity,
					Requested: item.Quantity,
				}
			}

			snapshots[item.ProductID] = price
			names[item.ProductID] = name
			stocks[item.ProductID] = stockQuantity
			totalAmount = totalAmount.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order = &models.Order{
			BuyerID:         req.BuyerID,
			TotalAmount:     totalAmount,
			Status:          models.OrderStatusProcessed,
			FullName:        req.FullName,
			Email:           req.Email,
			ContactNumber:   req.ContactNumber,
			ShippingAddress: req.ShippingAddress,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (buyer_id, total_amount, status, full_name, email, contact_number, shipping_address, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 RETURNING id, created_at`,
			req.BuyerID, totalAmount, models.OrderStatusProcessed,
			req.FullName, req.Email, req.ContactNumber, req.ShippingAddress,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		order.Items = make([]models.OrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			orderItem := models.OrderItem{
				OrderID:         order.ID,
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				PriceAtPurchase: snapshots[item.ProductID],
			}

			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id`,
				orderItem.OrderID, orderItem.ProductID, orderItem.Quantity, orderItem.PriceAtPurchase,
			).Scan(&orderItem.ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			order.Items = append(order.Items, orderItem)
		}

		// The conditional decrement guards against a lost update even if
		// the row lock above were ever weakened.
		for _, item := range req.Items {
			result, err := tx.ExecContext(ctx,
				`UPDATE products
				 SET stock_quantity = stock_quantity - $1
				 WHERE id = $2
				   AND stock_quantity >= $1`,
				item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}
			if rowsAffected == 0 {
				// Reached by carts that list the same product twice:
				// each line passes the per-line check, but the
				// decrements are cumulative. Report the stock left
				// after the earlier lines.
				return &database.InsufficientStockError{
					ProductID: item.ProductID,
					Name:      names[item.ProductID],
					Available: stocks[item.ProductID],
					Requested: item.Quantity,
				}
			}
			stocks[item.ProductID] -= item.Quantity
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder returns an order with its items, scoped to the buyer who
// placed it.
func GetOrder(ctx context.Context, db *sql.DB, buyerID, orderID int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, buyer_id, total_amount, status, full_name, email, contact_number, shipping_address, created_at
		FROM orders
		WHERE id = $1 AND buyer_id = $2`

	err := db.QueryRowContext(ctx, query, orderID, buyerID).Scan(
		&order.ID,
		&order.BuyerID,
		&order.TotalAmount,
		&order.Status,
		&order.FullName,
		&order.Email,
		&order.ContactNumber,
		&order.ShippingAddress,
		&order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := getOrderItems(ctx, db, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func getOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, query, orderID)
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
			&item.Quantity,
			&item.PriceAtPurchase,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ListOrders returns a buyer's orders, newest first, without items.
func ListOrders(ctx context.Context, db *sql.DB, buyerID int64) ([]models.Order, error) {
	query := `
		SELECT id, buyer_id, total_amount, status, full_name, email, contact_number, shipping_address, created_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.BuyerID,
			&order.TotalAmount,
			&order.Status,
			&order.FullName,
			&order.Email,
			&order.ContactNumber,
			&order.ShippingAddress,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
