package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/service"
)

type PatternHandler struct {
	service service.StatsService
}

func NewPatternHandler(service service.StatsService) *PatternHandler {
	return &PatternHandler{service: service}
}

func (h *PatternHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	var top int64
	if raw := c.Query("top"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a positive integer"})
			return
		}
		top = parsed
	}

	stats, err := h.service.PatternStats(ctx, int32(top))
	if err != nil {
		slog.ErrorContext(ctx, "failed to compute pattern stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute pattern stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *PatternHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	patterns, err := h.service.PatternsForKey(ctx, c.Query("key"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPatternQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to list patterns", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list patterns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
}
