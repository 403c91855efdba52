package model

import "time"

type SourceKind string

const (
	SourceKindCorrespondence SourceKind = "correspondence"
	SourceKindTranscript     SourceKind = "transcript"
)

type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusAutoLinked RecordStatus = "auto_linked"
	RecordStatusSuggested  RecordStatus = "suggested"
	RecordStatusUnresolved RecordStatus = "unresolved"
	RecordStatusLinked     RecordStatus = "linked"
	RecordStatusDismissed  RecordStatus = "dismissed"
)

// Record is one unit of unstructured input (a message or transcript).
// Content fields are written once at ingest and never mutated; only
// ResolutionStatus changes as the engine and reviewers act on it.
type Record struct {
	ID               int64        `json:"id"`
	ShortID          string       `json:"short_id"`
	SenderAddress    string       `json:"sender_address"`
	SenderName       *string      `json:"sender_name,omitempty"`
	Subject          string       `json:"subject"`
	Body             string       `json:"body"`
	SourceKind       SourceKind   `json:"source_kind"`
	OccurredAt       time.Time    `json:"occurred_at"`
	ResolutionStatus RecordStatus `json:"resolution_status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
