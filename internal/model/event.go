package model

import (
	"encoding/json"
	"time"
)

type ResolutionEventKind string

const (
	ResolutionEventAutoLinked          ResolutionEventKind = "auto_linked"
	ResolutionEventSuggestionCreated   ResolutionEventKind = "suggestion_created"
	ResolutionEventMarkedUnresolved    ResolutionEventKind = "marked_unresolved"
	ResolutionEventSuggestionApproved  ResolutionEventKind = "suggestion_approved"
	ResolutionEventSuggestionRejected  ResolutionEventKind = "suggestion_rejected"
	ResolutionEventSuggestionCorrected ResolutionEventKind = "suggestion_corrected"
	ResolutionEventRedirectRegistered  ResolutionEventKind = "redirect_registered"
)

// ResolutionEvent is one append-only audit row. Every engine decision and
// review outcome leaves one, so no binding ever appears without a trail.
type ResolutionEvent struct {
	ID        int64               `json:"id"`
	RecordID  *int64              `json:"record_id,omitempty"`
	Kind      ResolutionEventKind `json:"kind"`
	Detail    json.RawMessage     `json:"detail,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
