package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urbanharvest/hub/internal/auth"
	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/store"
)

type EventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
}

type EventRegistrationRequest struct {
	FullName      string `json:"fullName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	ContactNumber string `json:"contactNumber" binding:"required,digits"`
}

func (r EventRequest) toInput() store.EventInput {
	return store.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Location:    r.Location,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
	}
}

func ListEvents(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := store.ListEvents(c.Request.Context(), db, store.EventFilter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
			Sort:     c.Query("sort"),
		})
		if err != nil {
			log.Printf("[EVENTS] list failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusOK, events)
	}
}

func GetEvent(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
			return
		}

		event, err := store.GetEvent(c.Request.Context(), db, id)
		if err != nil {
			respondEventError(c, err)
			return
		}

		c.JSON(http.StatusOK, event)
	}
}

func CreateEvent(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		event, err := store.CreateEvent(c.Request.Context(), db, req.toInput())
		if err != nil {
			log.Printf("[EVENTS] create failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusCreated, event)
	}
}

func UpdateEvent(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
			return
		}

		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := store.UpdateEvent(c.Request.Context(), db, id, req.toInput()); err != nil {
			respondEventError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Event updated"})
	}
}

func DeleteEvent(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
			return
		}

		if err := store.DeleteEvent(c.Request.Context(), db, id); err != nil {
			respondEventError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
	}
}

func RegisterForEvent(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
			return
		}

		var req EventRegistrationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		_, err = store.RegisterForEvent(c.Request.Context(), db, store.RegistrationInput{
			UserID:        claims.UserID,
			EventID:       eventID,
			FullName:      req.FullName,
			Email:         req.Email,
			ContactNumber: req.ContactNumber,
		})
		if err != nil {
			if errors.Is(err, database.ErrAlreadyRegistered) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Already registered for this event"})
				return
			}
			respondEventError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Registered successfully"})
	}
}

func respondEventError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	log.Printf("[EVENTS] storage error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
}
