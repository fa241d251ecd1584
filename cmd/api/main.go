package main

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/urbanharvest/hub/internal/auth"
	"github.com/urbanharvest/hub/internal/config"
	"github.com/urbanharvest/hub/internal/database"
	"github.com/urbanharvest/hub/internal/handlers"
	"github.com/urbanharvest/hub/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	if err := handlers.RegisterValidations(); err != nil {
		log.Fatalf("Register validations: %v", err)
	}

	router := newRouter(db, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newRouter(db *sql.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	api := router.Group("/api")

	api.POST("/auth/register", handlers.Register(db, cfg.Auth))
	api.POST("/auth/login", handlers.Login(db, cfg.Auth))

	api.GET("/products", handlers.ListProducts(db))
	api.GET("/products/:id", handlers.GetProduct(db))
	api.GET("/events", handlers.ListEvents(db))
	api.GET("/events/:id", handlers.GetEvent(db))

	authed := api.Group("")
	authed.Use(auth.RequireAuth(cfg.Auth.JWTSecret))
	{
		authed.GET("/auth/me", handlers.Me(db))
		authed.POST("/orders", handlers.CreateOrder(db))
		authed.GET("/orders", handlers.ListOrders(db))
		authed.GET("/orders/:id", handlers.GetOrder(db))
		authed.POST("/events/:id/register", handlers.RegisterForEvent(db))
	}

	admin := api.Group("")
	admin.Use(auth.RequireAuth(cfg.Auth.JWTSecret, models.RoleAdmin))
	{
		admin.POST("/products", handlers.CreateProduct(db))
		admin.PUT("/products/:id", handlers.UpdateProduct(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))

		admin.POST("/events", handlers.CreateEvent(db))
		admin.PUT("/events/:id", handlers.UpdateEvent(db))
		admin.DELETE("/events/:id", handlers.DeleteEvent(db))
	}

	return router
}
