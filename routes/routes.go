package routes

import (
	"github.com/gin-gonic/gin"

	config "github.com/phillip/crowdfund-backend/config"
	controllers "github.com/phillip/crowdfund-backend/controllers"
	middleware "github.com/phillip/crowdfund-backend/middleware"
	payments "github.com/phillip/crowdfund-backend/payments"
	store "github.com/phillip/crowdfund-backend/store"
	sweeper "github.com/phillip/crowdfund-backend/sweeper"
)

// Deps bundles what the handlers close over.
type Deps struct {
	Campaigns     store.CampaignStore
	Contributions store.ContributionStore
	Engine        *payments.Engine
	Dispatcher    *payments.Dispatcher
	Sweeper       *sweeper.Sweeper
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, d Deps) {
	// public
	r.GET("/health", controllers.Health(cfg))
	r.GET("/campaigns", controllers.ListCampaigns(d.Campaigns))
	r.GET("/campaigns/:id", controllers.GetCampaign(d.Campaigns))
	r.POST("/campaigns/:id/share", controllers.ShareCampaign(d.Campaigns))

	// payment gateway boundary (signature-verified, not JWT)
	r.POST("/webhooks/gateway", controllers.HandleGatewayWebhook(cfg, d.Dispatcher))

	// pledges: anonymous allowed, authenticated callers get attributed
	optional := middleware.OptionalAuth(cfg)
	contributions := r.Group("/contributions")
	contributions.Use(optional)
	{
		contributions.POST("", controllers.CreatePledge(d.Engine))
		contributions.GET("", controllers.ListContributions(d.Contributions))
		contributions.GET("/:id", controllers.GetContribution(d.Contributions))
		contributions.POST("/:id/session", controllers.AttachSession(d.Engine))
		contributions.POST("/:id/cancel", controllers.CancelPledge(d.Engine))
	}

	// protected
	auth := middleware.AuthMiddleware(cfg)

	campaigns := r.Group("/campaigns")
	campaigns.Use(auth)
	{
		campaigns.POST("", controllers.CreateCampaign(cfg, d.Campaigns))
		campaigns.PATCH("/:id", controllers.UpdateCampaign(cfg, d.Campaigns))
		campaigns.DELETE("/:id", controllers.DeleteCampaign(cfg, d.Campaigns, d.Contributions))
	}

	admin := r.Group("/admin")
	admin.Use(auth, middleware.RequireAdmin())
	{
		admin.POST("/sweeper/start", controllers.StartSweeper(d.Sweeper))
		admin.POST("/sweeper/stop", controllers.StopSweeper(d.Sweeper))
		admin.GET("/sweeper/stats", controllers.SweeperStats(d.Sweeper))
	}
}
