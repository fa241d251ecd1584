package integration

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/models"
	"github.com/urbanharvest/hub/internal/store"
)

func contactFields() (string, string, string, string) {
	return "Test Buyer", "buyer@example.com", "5551234567", "1 Test Street"
}

func placeOrder(ctx context.Context, db *sql.DB, buyerID int64, items []store.OrderItemRequest) (*models.Order, error) {
	fullName, email, contact, address := contactFields()
	return store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		BuyerID:         buyerID,
		Items:           items,
		FullName:        fullName,
		Email:           email,
		ContactNumber:   contact,
		ShippingAddress: address,
	})
}

func TestPlaceOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer1", "buyer1@example.com")
	product := createTestProduct(t, db, "Order Test Spinach", decimal.RequireFromString("45.00"), 20)

	order, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
		{ProductID: product.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if order.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if order.Status != models.OrderStatusProcessed {
		t.Errorf("Expected status %q, got %q", models.OrderStatusProcessed, order.Status)
	}

	expectedTotal := decimal.RequireFromString("90.00")
	if !order.TotalAmount.Equal(expectedTotal) {
		t.Errorf("Expected total %s, got %s", expectedTotal, order.TotalAmount)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 18 {
		t.Errorf("Expected stock 18, got %d", productAfter.StockQuantity)
	}
}

func TestPlaceOrderTotalMatchesItems(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer2", "buyer2@example.com")
	product1 := createTestProduct(t, db, "Total Test A", decimal.RequireFromString("99.95"), 50)
	product2 := createTestProduct(t, db, "Total Test B", decimal.RequireFromString("250.10"), 30)

	order, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
		{ProductID: product1.ID, Quantity: 5},
		{ProductID: product2.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	fetched, err := store.GetOrder(ctx, db, user.ID, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}

	if len(fetched.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(fetched.Items))
	}

	sum := decimal.Zero
	for _, item := range fetched.Items {
		sum = sum.Add(item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !fetched.TotalAmount.Equal(sum) {
		t.Errorf("Total %s does not equal item sum %s", fetched.TotalAmount, sum)
	}
}

func TestPlaceOrderProductNotFoundRollsBack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer3", "buyer3@example.com")
	product := createTestProduct(t, db, "Rollback Test", decimal.RequireFromString("45.00"), 20)

	_, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
		{ProductID: product.ID, Quantity: 2},
		{ProductID: 99, Quantity: 1},
	})

	var notFound *database.ProductNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected ProductNotFoundError, got: %v", err)
	}
	if notFound.ProductID != 99 {
		t.Errorf("Expected product ID 99 in error, got %d", notFound.ProductID)
	}
	if notFound.Error() != "Product with ID 99 not found" {
		t.Errorf("Unexpected error message: %q", notFound.Error())
	}

	// The valid first line must not survive the failed attempt.
	var orderCount, itemCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_items").Scan(&itemCount); err != nil {
		t.Fatalf("Count order items: %v", err)
	}
	if orderCount != 0 || itemCount != 0 {
		t.Errorf("Expected no persisted rows, got %d orders and %d items", orderCount, itemCount)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 20 {
		t.Errorf("Stock should remain 20, got %d", productAfter.StockQuantity)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer4", "buyer4@example.com")
	product := createTestProduct(t, db, "Scarce Item", decimal.RequireFromString("45.00"), 20)

	_, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
		{ProductID: product.ID, Quantity: 1000},
	})

	var insufficient *database.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got: %v", err)
	}
	if insufficient.Error() != "Insufficient stock for Scarce Item" {
		t.Errorf("Unexpected error message: %q", insufficient.Error())
	}
	if insufficient.Available != 20 || insufficient.Requested != 1000 {
		t.Errorf("Expected available=20 requested=1000, got available=%d requested=%d",
			insufficient.Available, insufficient.Requested)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 20 {
		t.Errorf("Stock should remain 20, got %d", productAfter.StockQuantity)
	}
}

func TestPlaceOrderDuplicateLinesExceedStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer10", "buyer10@example.com")
	product := createTestProduct(t, db, "Repeated Item", decimal.RequireFromString("10.00"), 20)

	// Each line passes the per-line stock check on its own; the second
	// decrement is what fails.
	_, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
		{ProductID: product.ID, Quantity: 15},
		{ProductID: product.ID, Quantity: 15},
	})

	var insufficient *database.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got: %v", err)
	}
	if insufficient.Error() != "Insufficient stock for Repeated Item" {
		t.Errorf("Unexpected error message: %q", insufficient.Error())
	}
	if insufficient.Available != 5 || insufficient.Requested != 15 {
		t.Errorf("Expected available=5 requested=15, got available=%d requested=%d",
			insufficient.Available, insufficient.Requested)
	}

	var orderCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE buyer_id = $1", user.ID).Scan(&orderCount); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("Expected no orders after rollback, got %d", orderCount)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 20 {
		t.Errorf("Stock should remain 20, got %d", productAfter.StockQuantity)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "buyer5", "buyer5@example.com")

	_, err := placeOrder(context.Background(), db, user.ID, nil)
	if !errors.Is(err, database.ErrEmptyCart) {
		t.Errorf("Expected empty cart error, got: %v", err)
	}
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer6", "buyer6@example.com")
	product := createTestProduct(t, db, "Contended Item", decimal.RequireFromString("100.00"), 10)

	// 8 buyers want 2 each; only 5 can be satisfied.
	concurrency := 8
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
				{ProductID: product.ID, Quantity: 2},
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		var insufficient *database.InsufficientStockError
		switch {
		case err == nil:
			successCount++
		case errors.As(err, &insufficient):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 5 {
		t.Errorf("Expected 5 successful orders, got %d", successCount)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 0 {
		t.Errorf("Expected final stock 0, got %d", productAfter.StockQuantity)
	}
	if productAfter.StockQuantity < 0 {
		t.Errorf("Stock must never go negative, got %d", productAfter.StockQuantity)
	}
}

func TestPriceSnapshotSurvivesPriceChange(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createTestUser(t, db, "buyer7", "buyer7@example.com")
	product := createTestProduct(t, db, "Snapshot Item", decimal.RequireFromString("45.00"), 20)

	order, err := placeOrder(ctx, db, user.ID, []store.OrderItemRequest{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	err = store.UpdateProduct(ctx, db, product.ID, store.ProductInput{
		Name:     product.Name,
		Price:    decimal.RequireFromString("99.00"),
		Stock:    19,
		Category: product.Category,
	})
	if err != nil {
		t.Fatalf("Update product: %v", err)
	}

	fetched, err := store.GetOrder(ctx, db, user.ID, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}

	if len(fetched.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(fetched.Items))
	}
	snapshot := decimal.RequireFromString("45.00")
	if !fetched.Items[0].PriceAtPurchase.Equal(snapshot) {
		t.Errorf("Expected price_at_purchase %s, got %s", snapshot, fetched.Items[0].PriceAtPurchase)
	}
	if !fetched.TotalAmount.Equal(snapshot) {
		t.Errorf("Expected total %s, got %s", snapshot, fetched.TotalAmount)
	}
}

func TestListOrdersScopedToBuyer(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	buyer := createTestUser(t, db, "buyer8", "buyer8@example.com")
	other := createTestUser(t, db, "buyer9", "buyer9@example.com")
	product := createTestProduct(t, db, "List Test", decimal.RequireFromString("10.00"), 100)

	for i := 0; i < 3; i++ {
		if _, err := placeOrder(ctx, db, buyer.ID, []store.OrderItemRequest{
			{ProductID: product.ID, Quantity: 1},
		}); err != nil {
			t.Fatalf("Place order %d: %v", i, err)
		}
	}
	otherOrder, err := placeOrder(ctx, db, other.ID, []store.OrderItemRequest{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Place other order: %v", err)
	}

	orders, err := store.ListOrders(ctx, db, buyer.ID)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("Expected 3 orders, got %d", len(orders))
	}

	if _, err := store.GetOrder(ctx, db, buyer.ID, otherOrder.ID); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found for foreign order, got: %v", err)
	}
}
