package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/dto"
	"anchorline.app/resolver/internal/service"
)

type RedirectHandler struct {
	service service.RedirectService
}

func NewRedirectHandler(service service.RedirectService) *RedirectHandler {
	return &RedirectHandler{service: service}
}

func (h *RedirectHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterRedirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pattern, err := h.service.Register(ctx, req.OldCode, req.NewCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRedirect):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrEntityNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "target entity not found"})
		default:
			slog.ErrorContext(ctx, "failed to register redirect", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register redirect"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterRedirectResponse{Pattern: pattern})
}
