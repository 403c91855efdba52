package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"anchorline.app/resolver/internal/http/dto"
	"anchorline.app/resolver/internal/service"
)

const defaultSuggestionLimit = 50

type SuggestionHandler struct {
	service service.ReviewService
}

func NewSuggestionHandler(service service.ReviewService) *SuggestionHandler {
	return &SuggestionHandler{service: service}
}

func (h *SuggestionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultSuggestionLimit)), 10, 32)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	suggestions, err := h.service.ListPending(ctx, int32(limit))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list suggestions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list suggestions"})
		return
	}

	c.JSON(http.StatusOK, dto.SuggestionListResponse{Suggestions: suggestions, Count: len(suggestions)})
}

func (h *SuggestionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	sug, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSuggestionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch suggestion", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch suggestion"})
		return
	}

	c.JSON(http.StatusOK, sug)
}

func (h *SuggestionHandler) Approve(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ApproveSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Approve(ctx, c.Param("id"), req.EntityCode, req.ReviewerNote)
	if err != nil {
		h.respondReviewError(c, "approve", err)
		return
	}

	c.JSON(http.StatusOK, toReviewResponse(result))
}

func (h *SuggestionHandler) Reject(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RejectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Reject(ctx, c.Param("id"), req.Reason)
	if err != nil {
		h.respondReviewError(c, "reject", err)
		return
	}

	c.JSON(http.StatusOK, toReviewResponse(result))
}

func (h *SuggestionHandler) Correct(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CorrectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Correct(ctx, c.Param("id"), req.EntityCode, req.ReviewerNote)
	if err != nil {
		h.respondReviewError(c, "correct", err)
		return
	}

	c.JSON(http.StatusOK, toReviewResponse(result))
}

// respondReviewError maps review sentinels onto statuses. Approve, reject,
// and correct share the same failure surface.
func (h *SuggestionHandler) respondReviewError(c *gin.Context, action string, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, service.ErrSuggestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
	case errors.Is(err, service.ErrEntityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
	case errors.Is(err, service.ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"error": "suggestion already reviewed"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "review conflicted with a concurrent change, retry"})
	case errors.Is(err, service.ErrNotInShortlist):
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity is not on the shortlist"})
	case errors.Is(err, service.ErrEntityRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_code is required"})
	default:
		slog.ErrorContext(ctx, "review failed", "action", action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action + " suggestion"})
	}
}

func toReviewResponse(result *service.ReviewResult) dto.ReviewResponse {
	return dto.ReviewResponse{
		Suggestion: result.Suggestion,
		Counts: dto.ReinforcementCountsPayload{
			PatternsCreated:   result.Counts.PatternsCreated,
			PatternsUpdated:   result.Counts.PatternsUpdated,
			PatternsPenalized: result.Counts.PatternsPenalized,
		},
	}
}
