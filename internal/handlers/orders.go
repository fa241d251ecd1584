package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/urbanharvest/hub/internal/auth"
	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/store"
)

type CreateOrderRequest struct {
	Items         []OrderItemPayload `json:"items" binding:"omitempty,dive"`
	FullName      string             `json:"fullName" binding:"required"`
	Email         string             `json:"email" binding:"required,email"`
	ContactNumber string             `json:"contactNumber" binding:"required,digits"`
	Address       string             `json:"address" binding:"required"`
}

type OrderItemPayload struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func CreateOrder(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		items := make([]store.OrderItemRequest, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, store.OrderItemRequest{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		order, err := store.PlaceOrder(c.Request.Context(), db, store.PlaceOrderRequest{
			BuyerID:         claims.UserID,
			Items:           items,
			FullName:        req.FullName,
			Email:           req.Email,
			ContactNumber:   req.ContactNumber,
			ShippingAddress: req.Address,
		})
		if err != nil {
			respondOrderError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "Order placed successfully",
			"orderId": order.ID,
		})
	}
}

// respondOrderError maps placement failures onto the API contract:
// 404 for a missing product, 400 for anything the caller can fix,
// 500 for storage failures.
func respondOrderError(c *gin.Context, err error) {
	var notFound *database.ProductNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return
	}

	var insufficient *database.InsufficientStockError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": insufficient.Error()})
		return
	}

	switch {
	case errors.Is(err, database.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No items in order"})
	case errors.Is(err, database.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be a positive integer"})
	case errors.Is(err, database.ErrMissingContactDetails):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing contact details"})
	default:
		log.Printf("[ORDERS] place order failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

func ListOrders(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		orders, err := store.ListOrders(c.Request.Context(), db, claims.UserID)
		if err != nil {
			log.Printf("[ORDERS] list orders failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

func GetOrder(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
			return
		}

		order, err := store.GetOrder(c.Request.Context(), db, claims.UserID, id)
		if err != nil {
			if errors.Is(err, database.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
				return
			}
			log.Printf("[ORDERS] get order failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusOK, order)
	}
}
