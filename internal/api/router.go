package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/api/handler"
	"github.com/nevera/nevera_server/internal/api/middleware"
)

type Router struct {
	webhookHandler *handler.WebhookHandler
	paymentHandler *handler.PaymentHandler
	jobsHandler    *handler.JobsHandler
	authHandler    *handler.AuthHandler
	userHandler    *handler.UserHandler
	cfg            *config.Config
}

func NewRouter(
	webhookHandler *handler.WebhookHandler,
	paymentHandler *handler.PaymentHandler,
	jobsHandler *handler.JobsHandler,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		webhookHandler: webhookHandler,
		paymentHandler: paymentHandler,
		jobsHandler:    jobsHandler,
		authHandler:    authHandler,
		userHandler:    userHandler,
		cfg:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Inbound platform webhooks, authenticated by their own handshakes.
	webhook := engine.Group("/webhook")
	{
		webhook.GET("/whatsapp", r.webhookHandler.Verify)
		webhook.POST("/whatsapp", r.webhookHandler.Receive)
		webhook.POST("/payment", r.paymentHandler.Notify)
	}

	// Scheduled campaigns, guarded by the shared cron secret.
	jobs := engine.Group("/jobs")
	jobs.Use(middleware.CronAuth(r.cfg.Cron.Secret))
	{
		jobs.POST("/daily-digest", r.jobsHandler.DailyDigest)
		jobs.POST("/urgent-sweep", r.jobsHandler.UrgentSweep)
		jobs.POST("/weekly-report", r.jobsHandler.WeeklyReport)
	}

	api := engine.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/link", r.authHandler.Link)
			auth.POST("/verify", r.authHandler.Verify)
		}

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			user := authenticated.Group("/user")
			{
				user.GET("/quota", r.userHandler.GetQuota)
				user.GET("/products", r.userHandler.GetProducts)
			}
		}
	}

	return engine
}
