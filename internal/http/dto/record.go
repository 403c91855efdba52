package dto

import (
	"time"

	"anchorline.app/resolver/internal/model"
)

type IngestRecordRequest struct {
	SenderAddress string     `json:"sender_address" binding:"required"`
	SenderName    *string    `json:"sender_name,omitempty"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	SourceKind    string     `json:"source_kind,omitempty"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

type IngestRecordResponse struct {
	RecordID int64  `json:"record_id"`
	ShortID  string `json:"short_id"`
	Status   string `json:"status"`
	Enqueued bool   `json:"enqueued"`
}

type RecordDetailResponse struct {
	Record      *model.Record         `json:"record"`
	Bindings    []model.RecordBinding `json:"bindings"`
	Suggestions []model.Suggestion    `json:"suggestions"`
}
