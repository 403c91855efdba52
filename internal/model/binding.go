package model

import "time"

type BindingSource string

const (
	BindingSourceAuto     BindingSource = "auto"
	BindingSourceReview   BindingSource = "review"
	BindingSourceRedirect BindingSource = "redirect"
)

// RecordBinding links a record to one resolved entity. A record may carry
// several bindings; at most one per (record, entity) pair.
type RecordBinding struct {
	ID         int64         `json:"id"`
	RecordID   int64         `json:"record_id"`
	EntityCode string        `json:"entity_code"`
	Source     BindingSource `json:"source"`
	Method     Method        `json:"method"`
	Score      float64       `json:"score"`
	BoundAt    time.Time     `json:"bound_at"`
}
