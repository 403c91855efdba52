package router

import (
	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/handler"
)

func RecordRouter(router *gin.RouterGroup, handler *handler.RecordHandler) {
	router.POST("", handler.Ingest)
	router.GET("/:id", handler.Get)
}
