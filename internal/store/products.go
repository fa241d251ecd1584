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

// ProductFilter narrows and orders a product listing. Zero values mean
// "no filter"; Sort accepts price_asc or price_desc, anything else
// falls back to newest first.
type ProductFilter struct {
	Search   string
	Category string
	Sort     string
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	ImageURL    string
}

const productColumns = "id, name, description, price, stock_quantity, category, image_url, created_at"

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.Category,
		&product.ImageURL,
		&product.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter) ([]models.Product, error) {
	var (
		conditions []string
		args       []any
	)

	query := "SELECT " + productColumns + " FROM products"

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", placeholder, placeholder))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	switch filter.Sort {
	case "price_asc":
		query += " ORDER BY price ASC"
	case "price_desc":
		query += " ORDER BY price DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1"

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &database.ProductNotFoundError{ProductID: id}
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func CreateProduct(ctx context.Context, db *sql.DB, input ProductInput) (*models.Product, error) {
	query := `
		INSERT INTO products (name, description, price, stock_quantity, category, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query,
		input.Name, input.Description, input.Price, input.Stock, input.Category, input.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func UpdateProduct(ctx context.Context, db *sql.DB, id int64, input ProductInput) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET name = $1, description = $2, price = $3, stock_quantity = $4, category = $5, image_url = $6
		 WHERE id = $7`,
		input.Name, input.Description, input.Price, input.Stock, input.Category, input.ImageURL, id)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &database.ProductNotFoundError{ProductID: id}
	}

	return nil
}

func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &database.ProductNotFoundError{ProductID: id}
	}

	return nil
}
