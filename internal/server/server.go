package server

import (
	"net/http"

	"github.com/farellandr/showticket/internal/handlers"
	"github.com/farellandr/showticket/internal/metrics"
	"github.com/farellandr/showticket/internal/middleware"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
)

const webhookBodyLimit = 1 << 20

type Deps struct {
	Store      repository.Store
	Checkout   *services.Checkout
	Queries    *services.Queries
	Reconciler *services.Reconciler
	Admin      *services.Admin
	Catalog    *services.Catalog
	Links      services.Links
	JWTSecret  string
	// FilesDir is served under /files when tickets are stored locally.
	FilesDir string
}

func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CorrelationID(), middleware.RequestLogger())
	setupRoutes(r, deps)
	return r
}

func setupRoutes(r *gin.Engine, deps Deps) {
	auth := handlers.NewAuthHandler(deps.Store, deps.JWTSecret)
	purchases := handlers.NewPurchaseHandler(deps.Checkout, deps.Queries, deps.Links)
	tickets := handlers.NewTicketHandler(deps.Queries)
	webhooks := handlers.NewWebhookHandler(deps.Reconciler)
	events := handlers.NewEventHandler(deps.Catalog)
	admin := handlers.NewAdminHandler(deps.Admin)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if deps.FilesDir != "" {
		r.Static("/files", deps.FilesDir)
	}

	r.POST("/webhooks/:provider", middleware.RawBody(webhookBodyLimit), webhooks.Receive)
	r.GET("/ticket/:token", tickets.Verify)
	r.GET("/status/:token", purchases.Status)

	public := r.Group("/v1")
	{
		public.POST("/login", auth.Login)
		public.POST("/purchases", purchases.Buy)
		public.GET("/purchases/:token", purchases.Status)
		public.GET("/events/:slug/shows", events.ListShows)
	}

	protected := r.Group("/v1/admin")
	protected.Use(middleware.JWTAuthMiddleware(deps.JWTSecret), middleware.RequireRole(models.RoleNameAdmin))
	{
		protected.GET("/me", handlers.GetProfile)

		protected.GET("/purchases", admin.ListPurchases)
		protected.POST("/purchases/:token/confirm", admin.ConfirmReservation)
		protected.POST("/purchases/:token/cancel", admin.Cancel)
		protected.POST("/purchases/:token/mark-paid", admin.MarkPaid)
		protected.POST("/purchases/:token/refulfill", admin.Refulfill)

		protected.POST("/events", events.CreateEvent)
		protected.GET("/events/:slug/shows", events.AdminListShows)
		protected.POST("/events/:slug/shows", events.CreateShow)
		protected.PATCH("/shows/:id", events.UpdateShow)
	}
}
