package main

import (
	"inventory-service/internal/handler"
	"inventory-service/internal/ledger"
	mid "inventory-service/internal/middleware"
	"inventory-service/pkg/catalog"
	"inventory-service/pkg/config"
	"inventory-service/pkg/jwtutil"
	"inventory-service/pkg/logger"
	"inventory-service/pkg/storage"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting inventory-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize the collection store
	var store ledger.Storage
	switch appConfig.Storage.Driver {
	case "memory":
		store = storage.NewMemoryStore()
		log.Info("Using in-memory collection store")
	default:
		client, err := storage.NewRedisClient(appConfig.Redis)
		if err != nil {
			log.Fatal("Failed to initialize collection store", zap.Error(err))
		}
		store = storage.NewRedisStore(client, appConfig.Storage.KeyPrefix)
		log.Info("Collection store connection established",
			zap.String("host", appConfig.Redis.Host),
			zap.String("port", appConfig.Redis.Port))
	}

	// Initialize the product-master catalog client
	catalogClient := catalog.NewClient(appConfig.Catalog)
	log.Info("Catalog client initialized",
		zap.String("base_url", appConfig.Catalog.BaseURL))

	h := handler.New(store, catalogClient)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Routes
	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", h.HealthCheck)

	// Product API routes - Apply auth middleware to validate the JWT
	productAPI := e.Group("/api/products", mid.AuthMiddleware)
	productAPI.GET("", h.ListProducts)
	productAPI.GET("/export", h.ExportProducts)
	productAPI.POST("/import", h.ImportProducts)
	productAPI.GET("/:id", h.GetProduct)
	productAPI.POST("", h.CreateProduct)
	productAPI.PUT("/:id", h.UpdateProduct)
	productAPI.DELETE("/:id", h.DeleteProduct)
	productAPI.POST("/:id/treatments", h.TreatProduct)

	// Dashboard and catalog routes
	api := e.Group("/api", mid.AuthMiddleware)
	api.GET("/dashboard", h.Dashboard)
	api.GET("/catalog/:ean", h.LookupBarcode)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
