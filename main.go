package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartwish-backend/internal/catalog"
	"smartwish-backend/internal/config"
	"smartwish-backend/internal/embedding"
	"smartwish-backend/internal/handlers"
	"smartwish-backend/internal/kafka"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/middleware"
	"smartwish-backend/internal/printing"
	rediswrap "smartwish-backend/internal/redis"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/tillo"
)

// Global logger instance
var log *logger.Logger

// apiHandlers bundles the per-resource handlers for router setup.
type apiHandlers struct {
	auth         *handlers.AuthHandler
	orders       *handlers.OrderHandler
	payments     *handlers.PaymentHandler
	stripe       *handlers.StripeHandler
	catalog      *handlers.CatalogHandler
	stickers     *handlers.StickerHandler
	giftcards    *handlers.GiftCardHandler
	kiosks       *handlers.KioskHandler
	surveillance *handlers.SurveillanceHandler
	printing     *handlers.PrintHandler
}

func main() {
	log = logger.NewLogger()
	defer log.Close()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "SmartWish backend starting up...")

	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	defer store.Close()
	log.LogDatabase("INIT", "mysql", "MySQL storage initialized successfully")

	// Catalog tables live behind bun on the same connection pool.
	bunDB := catalog.NewDB(store.DB())
	if err := catalog.InitSchema(context.Background(), bunDB); err != nil {
		log.Fatal("DATABASE", "Failed to initialize catalog schema: "+err.Error())
	}
	templateRepo := catalog.NewTemplateRepo(bunDB, log)
	stickerRepo := catalog.NewStickerRepo(bunDB, log)
	designRepo := catalog.NewDesignRepo(bunDB, log)
	log.LogDatabase("INIT", "catalog", "Catalog repositories initialized")

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer kafkaProducer.Close()
	log.LogKafka("INIT", "producer", "Kafka producer initialized successfully")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisWrap := rediswrap.NewRedis(redisClient)
	log.LogProcess("REDIS", "Redis client initialized for "+cfg.Redis.Addr)

	// Semantic search runs only when a Gemini key is configured; without one
	// the catalog falls back to keyword search.
	var engine embedding.Engine
	if cfg.Gemini.APIKey != "" {
		gemini, err := embedding.NewGeminiEngine(cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Warn("EMBEDDING", "Failed to initialize Gemini engine: "+err.Error())
		} else {
			engine = gemini
			defer gemini.Close()
			log.LogProcess("EMBEDDING", "Embedding engine initialized: "+gemini.Name())
		}
	} else {
		log.Warn("EMBEDDING", "GEMINI_API_KEY not set, semantic search disabled")
	}

	tilloClient := tillo.NewClient(cfg.Tillo, log)
	log.LogProcess("TILLO", "Gift card client initialized")

	stripeService, err := services.NewStripeService(cfg.Stripe, log)
	if err != nil {
		log.Fatal("STRIPE", "Failed to initialize Stripe service: "+err.Error())
	}
	log.LogProcess("SERVICE", "Stripe service initialized")

	catalogService := services.NewCatalogService(templateRepo, designRepo, engine, log)
	orderService := services.NewOrderService(store, kafkaProducer, catalogService, log, cfg.Orders)
	sessionService := services.NewSessionService(store, redisWrap, stripeService, kafkaProducer, log, cfg.Stripe)
	kioskService := services.NewKioskService(store, log, cfg.Kiosk, cfg.Auth.BcryptCost)
	surveillanceService := services.NewSurveillanceService(store, log, cfg.Surveillance)
	stickerService := services.NewStickerService(stickerRepo, engine, redisWrap, log)
	giftcardService := services.NewGiftCardService(store, tilloClient, log)
	printService := services.NewPrintService(store, printing.NewDispatcher(cfg.Print, log), log, cfg.Assets)
	authService := services.NewAuthService(store, log, cfg.Auth)
	log.LogProcess("SERVICE", "All services initialized")

	authService.EnsureDefaultManager(context.Background(), cfg.Auth.AdminEmail, cfg.Auth.AdminPass)

	// Print status reports from field agents arrive on Kafka.
	if cfg.Kafka.MockMode {
		log.LogKafka("INIT", "consumer", "Print status consumer disabled in mock mode")
	} else {
		printConsumer, err := kafka.NewPrintStatusConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, store)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create print status consumer: "+err.Error())
		}
		defer printConsumer.Close()
		go func() {
			log.LogKafka("START", "consumer", "Starting print status consumer goroutine")
			if err := printConsumer.ConsumePrintStatuses(context.Background(), printService.HandleStatusEvent); err != nil {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	}

	h := &apiHandlers{
		auth:         handlers.NewAuthHandler(authService),
		orders:       handlers.NewOrderHandler(orderService),
		payments:     handlers.NewPaymentHandler(sessionService),
		stripe:       handlers.NewStripeHandler(stripeService, sessionService, orderService, log),
		catalog:      handlers.NewCatalogHandler(catalogService),
		stickers:     handlers.NewStickerHandler(stickerService),
		giftcards:    handlers.NewGiftCardHandler(giftcardService),
		kiosks:       handlers.NewKioskHandler(kioskService),
		surveillance: handlers.NewSurveillanceHandler(surveillanceService),
		printing:     handlers.NewPrintHandler(printService),
	}
	log.LogProcess("HANDLER", "All handlers initialized")

	router := setupRouter(h, authService, kioskService)
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "🚀 SmartWish backend is ready to accept requests!")
		log.Info("STARTUP", "📊 Health check available at: http://localhost:"+cfg.Server.Port+"/health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "✅ SmartWish backend shutdown completed successfully")
}

func setupRouter(h *apiHandlers, authService *services.AuthService, kioskService *services.KioskService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(log))
	router.Use(middleware.RateLimit(log))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "smartwish-backend",
			"version":   "1.0.0",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Public routes: catalog browsing, guest receipt view, webhooks.
	{
		v1.POST("/auth/login", h.auth.Login)

		v1.GET("/templates", h.catalog.ListTemplates)
		v1.GET("/templates/:id", h.catalog.GetTemplate)
		v1.GET("/categories", h.catalog.ListCategories)
		v1.GET("/stickers", h.stickers.ListStickers)
		v1.GET("/stickers/:id", h.stickers.GetSticker)
		v1.GET("/designs", h.catalog.ListDesigns)
		v1.GET("/designs/:id", h.catalog.GetDesign)
		v1.GET("/search/templates", h.catalog.SearchTemplates)
		v1.GET("/search/stickers", h.stickers.SearchStickers)

		v1.GET("/guest/orders/:id", h.orders.GetGuestOrder)

		v1.POST("/stripe/webhook", h.stripe.HandleWebhook)
	}

	// Kiosk routes: authenticated with the per-unit API key.
	kiosk := v1.Group("")
	kiosk.Use(middleware.KioskAuth(kioskService, log))
	{
		kiosk.POST("/kiosks/heartbeat", h.kiosks.Heartbeat)
		kiosk.POST("/kiosks/sessions", h.kiosks.StartSession)
		kiosk.POST("/kiosks/sessions/:id/end", h.kiosks.EndSession)

		kiosk.POST("/orders", h.orders.CreateOrder)
		kiosk.GET("/orders/:id", h.orders.GetOrder)
		kiosk.PATCH("/orders/:id/status", h.orders.UpdateOrderStatus)
		kiosk.GET("/orders/:id/session", h.payments.GetSessionByOrder)
		kiosk.POST("/orders/:id/giftcards", h.giftcards.IssueForOrder)

		kiosk.POST("/payments/sessions", h.payments.CreateSession)
		kiosk.GET("/payments/sessions/:id", h.payments.GetSession)
		kiosk.POST("/stripe/validate-card", h.stripe.ValidateCard)

		kiosk.GET("/giftcards/brands", h.giftcards.ListBrands)
		kiosk.GET("/giftcards/brands/:slug", h.giftcards.CheckBrand)

		kiosk.POST("/print/jobs", h.printing.CreateJob)
		kiosk.POST("/surveillance/events/batch", h.surveillance.IngestBatch)
		kiosk.POST("/designs", h.catalog.SaveDesign)
	}

	// Admin routes: dashboard users with a bearer token.
	admin := v1.Group("/admin")
	admin.Use(middleware.JWTAuth(authService, log))
	{
		admin.GET("/orders", h.orders.ListOrders)
		admin.GET("/orders/:id", h.orders.GetOrder)
		admin.PATCH("/orders/:id/status", h.orders.UpdateOrderStatus)
		admin.GET("/orders/:id/session", h.payments.GetSessionByOrder)
		admin.GET("/orders/:id/transactions", h.payments.ListOrderTransactions)

		admin.POST("/refunds", h.stripe.RefundPayment)
		admin.GET("/payments/:id", h.stripe.GetPaymentDetails)

		admin.POST("/kiosks", h.kiosks.Provision)
		admin.GET("/kiosks", h.kiosks.ListKiosks)
		admin.GET("/kiosks/:id", h.kiosks.GetKiosk)
		admin.PUT("/kiosks/:id/config", h.kiosks.UpdateConfig)
		admin.POST("/kiosks/:id/test-print", h.printing.TestPrint)
		admin.GET("/kiosks/:id/detections", h.surveillance.ListDetections)
		admin.GET("/kiosks/:id/daily-stats", h.surveillance.DailyStats)

		admin.GET("/print/jobs", h.printing.ListJobs)
		admin.GET("/print/jobs/:id", h.printing.GetJob)

		admin.POST("/templates", h.catalog.CreateTemplate)
		admin.PUT("/templates/:id", h.catalog.UpdateTemplate)
		admin.POST("/templates/refresh-embeddings", h.catalog.RefreshEmbeddings)
		admin.POST("/stickers", h.stickers.CreateSticker)
		admin.POST("/stickers/refresh-embeddings", h.stickers.RefreshEmbeddings)
		admin.POST("/categories", h.catalog.CreateCategory)
		admin.POST("/designs/:id/publish", h.catalog.PublishDesign)
		admin.DELETE("/designs/:id", h.catalog.DeleteDesign)

		admin.POST("/giftcards/cancel", h.giftcards.CancelCard)

		admin.POST("/managers", middleware.RequireRole("admin"), h.auth.CreateManager)
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
