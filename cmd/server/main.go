package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/api"
	"github.com/nevera/nevera_server/internal/api/handler"
	"github.com/nevera/nevera_server/internal/database"
	"github.com/nevera/nevera_server/internal/logger"
	"github.com/nevera/nevera_server/internal/pkg/ai"
	"github.com/nevera/nevera_server/internal/pkg/queue"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/repository"
	"github.com/nevera/nevera_server/internal/service"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// The AI client is optional: without a key the bot still runs on
	// patterns and static templates.
	var generator ai.TextGenerator
	if cfg.AI.APIKey != "" {
		client, err := ai.NewClient(context.Background(), &cfg.AI)
		if err != nil {
			log.Printf("Warning: AI client unavailable: %v", err)
		} else {
			generator = client
			defer client.Close()
			log.Println("AI client initialized")
		}
	}

	sender := whatsapp.NewClient(&cfg.WhatsApp)
	notifyQueue := queue.NewQueue(rdb, cfg.Quota.NotifyQueue)

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	historyRepo := repository.NewHistoryRepository(db, cfg.Bot.HistoryLimit)
	alertRepo := repository.NewAlertRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	contextRepo := repository.NewContextRepository(rdb, time.Duration(cfg.Bot.ContextTTLMinutes)*time.Minute)

	quotaService := service.NewQuotaService(usageRepo, userRepo, rdb, notifyQueue, cfg, logger.New("quota"))
	intentService := service.NewIntentService(generator, productRepo, historyRepo, cfg, logger.New("intent"))
	botService := service.NewBotService(userRepo, productRepo, historyRepo, contextRepo, quotaService, intentService, generator, cfg, logger.New("bot"))
	alertService := service.NewAlertService(userRepo, productRepo, alertRepo, historyRepo, usageRepo, sender, generator, cfg, logger.New("alerts"))
	paymentService := service.NewPaymentService(userRepo, paymentRepo, quotaService, sender, cfg, logger.New("payments"))
	authService := service.NewAuthService(userRepo, rdb, sender, cfg, logger.New("auth"))

	webhookHandler := handler.NewWebhookHandler(botService, sender, cfg, logger.New("webhook"))
	paymentHandler := handler.NewPaymentHandler(paymentService, logger.New("payment_http"))
	jobsHandler := handler.NewJobsHandler(alertService, logger.New("jobs"))
	authHandler := handler.NewAuthHandler(authService, logger.New("auth_http"))
	userHandler := handler.NewUserHandler(userRepo, productRepo, quotaService, logger.New("user_http"))

	router := api.NewRouter(
		webhookHandler,
		paymentHandler,
		jobsHandler,
		authHandler,
		userHandler,
		cfg,
	)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
