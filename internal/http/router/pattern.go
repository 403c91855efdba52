package router

import (
	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/handler"
)

func PatternRouter(router *gin.RouterGroup, handler *handler.PatternHandler) {
	router.GET("", handler.List)
	router.GET("/stats", handler.Stats)
}
