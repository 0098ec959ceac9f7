package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/udhaarplus/backend/docs"
	"github.com/udhaarplus/backend/internal/config"
	"github.com/udhaarplus/backend/internal/database"
	"github.com/udhaarplus/backend/internal/handlers"
	mW "github.com/udhaarplus/backend/internal/middleware"
	"github.com/udhaarplus/backend/internal/notify"
	"github.com/udhaarplus/backend/internal/services"
)

// @title Udhaar+ Backend API
// @version 1.0
// @description Order lifecycle and credit ledger API for neighborhood shops
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "Udhaar+ Backend API"
	docs.SwaggerInfo.Description = "Order lifecycle and credit ledger API for neighborhood shops"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer database.CloseDB()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifyCfg := config.LoadNotifyConfig()
	hub := notify.NewHub(redisClient, notifyCfg)

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	go hub.Run(bridgeCtx)

	catalogService := services.NewCatalogService(db, redisClient)
	ledgerService := services.NewLedgerService(db)
	orderService := services.NewOrderService(db, ledgerService, hub)
	eventsHandler := handlers.NewEventsHandler(hub, notifyCfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for shop logos
	r.Handle("/static/shop-logos/*", http.StripPrefix("/static/shop-logos/",
		mW.StaticFileServer("./static/shop-logos")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Get("/shops", catalogService.HandleListShops)
		r.Get("/shops/{shopID}/products", catalogService.HandleListProducts)
		r.Get("/shops/{shopID}/qr", catalogService.HandleShopQR)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/products", catalogService.HandleAddProduct)

			r.Post("/orders", orderService.HandleCheckout)
			r.Get("/orders/{orderID}", orderService.HandleGetOrder)
			r.Put("/orders/{orderID}/status", orderService.HandleAdvance)
			r.Get("/shops/{shopID}/orders", orderService.HandleListShopOrders)
			r.Get("/customers/{customerID}/orders", orderService.HandleListCustomerOrders)

			r.Post("/payments", ledgerService.HandleRecordPayment)
			r.Get("/customers/{customerID}/balance", ledgerService.HandleBalance)
			r.Get("/customers/{customerID}/history", ledgerService.HandleHistory)

			r.Get("/events", eventsHandler.Stream)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
		// no WriteTimeout: /api/v1/events holds its connection open
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopBridge()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
