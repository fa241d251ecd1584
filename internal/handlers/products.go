package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/store"
)

type ProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
}

// validate covers the price rule the binding tags cannot express:
// decimal.Decimal is opaque to the validator, so negativity is
// checked after unmarshalling.
func (r ProductRequest) validate() error {
	if r.Price.IsNegative() {
		return errors.New("price must be non-negative")
	}
	return nil
}

func (r ProductRequest) toInput() store.ProductInput {
	return store.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
	}
}

func ListProducts(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := store.ListProducts(c.Request.Context(), db, store.ProductFilter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
			Sort:     c.Query("sort"),
		})
		if err != nil {
			log.Printf("[PRODUCTS] list failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusOK, products)
	}
}

func GetProduct(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
			return
		}

		product, err := store.GetProduct(c.Request.Context(), db, id)
		if err != nil {
			respondProductError(c, err)
			return
		}

		c.JSON(http.StatusOK, product)
	}
}

func CreateProduct(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := req.validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		product, err := store.CreateProduct(c.Request.Context(), db, req.toInput())
		if err != nil {
			log.Printf("[PRODUCTS] create failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusCreated, product)
	}
}

func UpdateProduct(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
			return
		}

		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := req.validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := store.UpdateProduct(c.Request.Context(), db, id, req.toInput()); err != nil {
			respondProductError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Product updated"})
	}
}

func DeleteProduct(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
			return
		}

		if err := store.DeleteProduct(c.Request.Context(), db, id); err != nil {
			respondProductError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
	}
}

func respondProductError(c *gin.Context, err error) {
	var notFound *database.ProductNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	log.Printf("[PRODUCTS] storage error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
}
