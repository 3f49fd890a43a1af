package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/roleta_leads/backend/internal/config"
	"github.com/roleta_leads/backend/internal/db"
	"github.com/roleta_leads/backend/internal/http/handlers"
	"github.com/roleta_leads/backend/internal/http/middleware"
	"github.com/roleta_leads/backend/internal/service"

	_ "github.com/roleta_leads/backend/docs"
)

func Router(cfg config.Config, store *db.Store, resolver *service.Resolver, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Resolver:  resolver,
		Validator: validator.New(),
		Logger:    logger,
		AdminKey:  cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/webhooks/lead", h.LeadWebhook)
		api.GET("/units", h.UnitsList)
		api.GET("/units/:id/queue", h.QueueView)
		api.GET("/units/:id/log", h.AssignmentLog)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/units/:id/advance", h.Advance)
		admin.PUT("/units/:id/queue", h.Reorder)
		admin.POST("/units/:id/queue/swap", h.Swap)
		admin.POST("/units/:id/enroll", h.Enroll)
		admin.DELETE("/units/:id/enroll", h.Unenroll)
		admin.POST("/units/:id/queue/sellers", h.QueueSellerAdd)
		admin.DELETE("/units/:id/queue/sellers/:sellerID", h.QueueSellerRemove)
		admin.GET("/units/:id/absences", h.AbsencesForUnit)
		admin.POST("/absences", h.AbsenceAdd)
		admin.DELETE("/absences/:id", h.AbsenceRemove)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
