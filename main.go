package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-api/config"
	"storefront-api/consumers"
	"storefront-api/controllers"
	"storefront-api/logger"
	"storefront-api/middleware"
	"storefront-api/rabbitmq"
	"storefront-api/routes"
	"storefront-api/services"
	"storefront-api/utils"
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	cfg := config.LoadConfig()
	log := logger.New(logger.Options{
		Service:   "storefront-api",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: cfg.AppEnv != "prod",
	})
	if envErr != nil {
		log.Info("no .env file found, using process environment")
	}

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	utils.JwtKey = []byte(cfg.JWTSecret)

	ctx, stop := utils.WithSignals(context.Background())
	defer stop()

	// Connect to MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	client, err := utils.ConnectDB(connectCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		log.Error("connect mongodb", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Error("disconnect mongodb", slog.Any("err", err))
		}
	}()
	db := client.Database(cfg.DBName)
	if err := utils.EnsureIndexes(ctx, db); err != nil {
		log.Error("ensure indexes", slog.Any("err", err))
		os.Exit(1)
	}

	emailService := utils.NewEmailService(cfg.EmailProvider, cfg.EmailSender, cfg.PostmarkAPIToken, cfg.SendgridAPIKey)
	store := services.NewMongoStore(db)
	notifier := &services.OrderNotifier{Users: store, Email: emailService}

	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewRabbitMQ(cfg)
		if err != nil {
			log.Warn("rabbitmq unavailable, order e-mails are sent directly", slog.Any("err", err))
		} else {
			defer mq.Close()
			if err := mq.SetupQueues(); err != nil {
				log.Error("setup rabbitmq queues", slog.Any("err", err))
				os.Exit(1)
			}
			if err := consumers.StartOrderConsumer(mq.Channel, cfg, emailService); err != nil {
				log.Error("start order consumer", slog.Any("err", err))
				os.Exit(1)
			}
			notifier.Publisher = mq
		}
	}

	vouchers := &services.MongoVoucherStore{Collection: db.Collection(utils.VouchersCollection)}
	orderService := services.NewOrderService(store, store, store, vouchers, notifier)

	vnpay := utils.NewVNPay(utils.VNPayConfig{
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
		PayURL:     cfg.VNPayURL,
		ReturnURL:  cfg.VNPayReturnURL,
	})
	stripeGateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripeCurrency)

	var llm services.LLM
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn("gemini unavailable, chat answers with the fallback reply", slog.Any("err", err))
		} else {
			defer gemini.Close()
			llm = gemini
		}
	}
	relay := services.NewChatRelay(&services.MongoChatStore{DB: db}, llm, cfg.ChatHistoryLimit, cfg.ChatTimeout)

	secure := cfg.AppEnv == "prod"
	router := newRouter()
	routes.RegisterRoutes(router, routes.Controllers{
		User:     controllers.NewUserController(db, emailService, secure),
		Address:  controllers.NewAddressController(db),
		Category: controllers.NewCategoryController(db),
		Product:  controllers.NewProductController(db),
		Cart:     controllers.NewCartController(db, store),
		Order:    controllers.NewOrderController(db, orderService, notifier),
		Payment:  controllers.NewPaymentController(db, orderService, vnpay, stripeGateway, cfg.FrontendURL),
		Voucher:  controllers.NewVoucherController(db),
		Review:   controllers.NewReviewController(db),
		Chat:     controllers.NewChatController(relay, cfg.ChatTimeout, secure),
		Summary:  controllers.NewSummaryController(&services.Dashboard{DB: db}),
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.FrontendURL}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.RecoveryHandler(handlers.PrintRecoveryStack(cfg.AppEnv != "prod"))(cors(router)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server is running", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", slog.Any("err", err))
	}
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.PrometheusMiddleware)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, "ok", nil)
	}).Methods(http.MethodGet)
	return router
}
