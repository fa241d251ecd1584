package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/urbanharvest/hub/internal/auth"
	"github.com/urbanharvest/hub/internal/config"
	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/models"
	"github.com/urbanharvest/hub/internal/store"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,alphanum,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(db *sql.DB, cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		role := req.Role
		if role == "" {
			role = models.RoleUser
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cfg.BcryptCost)
		if err != nil {
			log.Printf("[AUTH] hash password failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		_, err = store.CreateUser(c.Request.Context(), db, req.Username, email, string(hash), role)
		if err != nil {
			if errors.Is(err, database.ErrUserExists) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
				return
			}
			log.Printf("[AUTH] create user failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

func Login(db *sql.DB, cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		user, err := store.GetUserByEmail(c.Request.Context(), db, email)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
				return
			}
			log.Printf("[AUTH] user lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
			return
		}

		token, err := auth.IssueToken(cfg.JWTSecret, user.ID, user.Role, cfg.TokenTTL)
		if err != nil {
			log.Printf("[AUTH] issue token failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"email":    user.Email,
				"role":     user.Role,
			},
		})
	}
}

// Me resolves the authenticated user from the token's id claim.
func Me(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := store.GetUser(c.Request.Context(), db, claims.UserID)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			log.Printf("[AUTH] get user failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		c.JSON(http.StatusOK, user)
	}
}
