package router

import (
	"github.com/gin-gonic/gin"

	"github.com/monkeysworks/monkeyswork-backend/internal/config"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/middleware"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// Handlers — все HTTP-обработчики приложения.
type Handlers struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Contracts     *handlers.ContractHandler
	Milestones    *handlers.MilestoneHandler
	Disputes      *handlers.DisputeHandler
	Evidence      *handlers.EvidenceHandler
	Escrow        *handlers.EscrowHandler
	Billing       *handlers.BillingHandler
	Payouts       *handlers.PayoutHandler
	Notifications *handlers.NotificationHandler
	AdminDisputes *handlers.AdminDisputeHandler
	AdminContract *handlers.AdminContractHandler
	AdminBilling  *handlers.AdminBillingHandler
	WS            *handlers.WSHandler
}

// SetupRouter собирает маршруты и middleware приложения.
func SetupRouter(cfg *config.Config, h Handlers, tokens *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Check)
	r.GET("/ws", h.WS.Connect)

	api := r.Group("/api/v1")

	// Аутентификация: публичные маршруты с rate limit на перебор.
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.GET("/auth/me", h.Auth.Me)

		contracts := protected.Group("/contracts")
		{
			contracts.POST("", h.Contracts.Create)
			contracts.GET("", h.Contracts.ListMine)
			contracts.GET("/my", h.Contracts.ListMine)
			withID := contracts.Group("/:id", middleware.UUIDValidator("id"))
			{
				withID.GET("", h.Contracts.Get)
				withID.POST("/activate", h.Contracts.Activate)
				withID.POST("/milestones", h.Contracts.CreateMilestone)
				withID.GET("/milestones", h.Contracts.ListMilestones)
				withID.GET("/escrow", h.Contracts.GetLedger)
				withID.GET("/transactions", h.Contracts.ListTransactions)
			}
		}

		milestones := protected.Group("/milestones")
		{
			milestones.GET("/me", h.Milestones.ListMine)
			withID := milestones.Group("/:id", middleware.UUIDValidator("id"))
			{
				withID.GET("", h.Milestones.Get)
				withID.POST("/fund", h.Milestones.Fund)
				withID.POST("/start", h.Milestones.Start)
				withID.POST("/submit", h.Milestones.Submit)
				withID.POST("/accept", h.Milestones.Accept)
				withID.POST("/request-revision", h.Milestones.RequestRevision)
				withID.GET("/escrow", h.Milestones.GetBalance)
			}
		}

		disputes := protected.Group("/disputes")
		{
			disputes.POST("", h.Disputes.File)
			disputes.GET("", h.Disputes.ListMine)
			withID := disputes.Group("/:id", middleware.UUIDValidator("id"))
			{
				withID.GET("", h.Disputes.Get)
				withID.GET("/messages", h.Disputes.ListMessages)
				withID.POST("/messages", h.Disputes.SendMessage)
				withID.POST("/escalate", h.Disputes.Escalate)
				withID.POST("/evidence", h.Evidence.Upload)
				withID.GET("/evidence", h.Evidence.List)
			}
		}

		protected.POST("/evidence", h.Evidence.UploadForm)
		protected.GET("/evidence/:id", middleware.UUIDValidator("id"), h.Evidence.Download)

		escrow := protected.Group("/escrow")
		{
			escrow.GET("/balance", h.Escrow.GetBalance)
			escrow.GET("/transactions", h.Escrow.ListTransactions)
			escrow.GET("/transactions/:id", middleware.UUIDValidator("id"), h.Escrow.GetTransaction)
		}

		billing := protected.Group("/billing")
		{
			billing.GET("/summary", h.Billing.GetSummary)
			billing.GET("/transactions", h.Billing.ListTransactions)
		}

		payouts := protected.Group("/payouts")
		{
			payouts.POST("", h.Payouts.Request)
			payouts.GET("", h.Payouts.ListMine)
			payouts.GET("/available", h.Payouts.GetAvailable)
			payouts.GET("/:id", middleware.UUIDValidator("id"), h.Payouts.Get)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notifications.List)
			notifications.GET("/unread/count", h.Notifications.UnreadCount)
			notifications.PUT("/read-all", h.Notifications.MarkAllRead)
			notifications.PUT("/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkRead)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			adminDisputes := admin.Group("/disputes")
			{
				adminDisputes.GET("", h.AdminDisputes.List)
				withID := adminDisputes.Group("/:id", middleware.UUIDValidator("id"))
				{
					withID.GET("", h.AdminDisputes.Get)
					withID.GET("/messages", h.AdminDisputes.ListMessages)
					withID.POST("/messages", h.AdminDisputes.SendMessage)
					withID.POST("/resolve", h.AdminDisputes.Resolve)
				}
			}

			adminContracts := admin.Group("/contracts")
			{
				adminContracts.GET("", h.AdminContract.List)
				adminContracts.GET("/:id", middleware.UUIDValidator("id"), h.AdminContract.Get)
				adminContracts.PATCH("/:id/status", middleware.UUIDValidator("id"), h.AdminContract.ChangeStatus)
			}

			admin.POST("/milestones/:id/refund", middleware.UUIDValidator("id"), h.AdminContract.RefundMilestone)

			adminBilling := admin.Group("/billing")
			{
				adminBilling.GET("/overview", h.AdminBilling.GetOverview)
				adminBilling.GET("/revenue-report", h.AdminBilling.GetRevenueReport)
				adminBilling.GET("/financial-report", h.AdminBilling.GetFinancialReport)
				adminBilling.GET("/payouts", h.AdminBilling.ListPayouts)
				adminBilling.PATCH("/payouts/:id", middleware.UUIDValidator("id"), h.AdminBilling.UpdatePayout)
			}
		}
	}

	return r
}
