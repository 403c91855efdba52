package router

import (
	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/handler"
)

func RedirectRouter(router *gin.RouterGroup, handler *handler.RedirectHandler) {
	router.POST("", handler.Register)
}
