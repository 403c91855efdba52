package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"anchorline.app/resolver/internal/http/dto"
	"anchorline.app/resolver/internal/service"
)

type RecordHandler struct {
	service     service.RecordIngestService
	traceHeader string
}

func NewRecordHandler(service service.RecordIngestService, traceHeader string) *RecordHandler {
	return &RecordHandler{
		service:     service,
		traceHeader: traceHeader,
	}
}

func (h *RecordHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.RecordIngestParams{
		SenderAddress: req.SenderAddress,
		SenderName:    req.SenderName,
		Subject:       req.Subject,
		Body:          req.Body,
		SourceKind:    req.SourceKind,
	}
	if req.OccurredAt != nil {
		params.OccurredAt = *req.OccurredAt
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.service.Ingest(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest record", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest record"})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestRecordResponse{
		RecordID: result.Record.ID,
		ShortID:  result.Record.ShortID,
		Status:   string(result.Record.ResolutionStatus),
		Enqueued: result.Enqueued,
	})
}

func (h *RecordHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	detail, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch record", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch record"})
		return
	}

	c.JSON(http.StatusOK, dto.RecordDetailResponse{
		Record:      detail.Record,
		Bindings:    detail.Bindings,
		Suggestions: detail.Suggestions,
	})
}
