package router

import (
	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/handler"
)

func SuggestionRouter(router *gin.RouterGroup, handler *handler.SuggestionHandler) {
	router.GET("", handler.List)
	router.GET("/:id", handler.Get)
	router.POST("/:id/approve", handler.Approve)
	router.POST("/:id/reject", handler.Reject)
	router.POST("/:id/correct", handler.Correct)
}
