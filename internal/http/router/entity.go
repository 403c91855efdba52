package router

import (
	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/handler"
)

func EntityRouter(router *gin.RouterGroup, handler *handler.EntityHandler) {
	router.PUT("", handler.Sync)
	router.GET("", handler.List)
	router.GET("/:code", handler.Get)
}
