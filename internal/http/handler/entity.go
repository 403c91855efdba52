package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/dto"
	"anchorline.app/resolver/internal/service"
)

type EntityHandler struct {
	service service.CatalogService
}

func NewEntityHandler(service service.CatalogService) *EntityHandler {
	return &EntityHandler{service: service}
}

func (h *EntityHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SyncEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid catalog sync request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries := make([]service.CatalogEntry, 0, len(req.Entities))
	for _, e := range req.Entities {
		entries = append(entries, service.CatalogEntry{
			Kind:    e.Kind,
			Code:    e.Code,
			Name:    e.Name,
			Aliases: e.Aliases,
			Company: e.Company,
			Domain:  e.Domain,
			Active:  e.Active,
		})
	}

	result, err := h.service.Sync(ctx, entries)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEntity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to sync catalog", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sync catalog"})
		return
	}

	c.JSON(http.StatusOK, dto.SyncEntitiesResponse{Synced: result.Synced})
}

func (h *EntityHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	entities, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list entities", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entities"})
		return
	}

	c.JSON(http.StatusOK, dto.EntityListResponse{Entities: entities, Count: len(entities)})
}

func (h *EntityHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	entity, err := h.service.Get(ctx, c.Param("code"))
	if err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch entity", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch entity"})
		return
	}

	c.JSON(http.StatusOK, entity)
}
