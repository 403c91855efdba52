package router

import (
	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/handler"
	"anchorline.app/resolver/internal/http/middleware"
	"anchorline.app/resolver/internal/service"
)

type RouterConfig struct {
	AdminAPIKey     string
	TraceHeaderName string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAdminAPIKey(cfg.AdminAPIKey))
	{
		recordHandler := handler.NewRecordHandler(services.Records(), cfg.TraceHeaderName)
		RecordRouter(v1.Group("/records"), recordHandler)

		entityHandler := handler.NewEntityHandler(services.Catalog())
		EntityRouter(v1.Group("/entities"), entityHandler)

		suggestionHandler := handler.NewSuggestionHandler(services.Reviews())
		SuggestionRouter(v1.Group("/suggestions"), suggestionHandler)

		redirectHandler := handler.NewRedirectHandler(services.Redirects())
		RedirectRouter(v1.Group("/redirects"), redirectHandler)

		patternHandler := handler.NewPatternHandler(services.Stats())
		PatternRouter(v1.Group("/patterns"), patternHandler)
	}
}
