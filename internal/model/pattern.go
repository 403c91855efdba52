package model

import "time"

type PatternType string

const (
	PatternTypeSender     PatternType = "sender"
	PatternTypeDomain     PatternType = "domain"
	PatternTypeKeyword    PatternType = "keyword"
	PatternTypeDomainSkip PatternType = "domain_skip"
	PatternTypeRedirect   PatternType = "redirect"
)

// LearnedPattern is a durable, reinforced matching rule derived from human
// review decisions. Confidence stays within [ConfidenceFloor, ConfidenceCeiling]
// for all types except redirect, which is pinned at 1.0. Patterns are never
// deleted, only deactivated.
type LearnedPattern struct {
	ID                  int64       `json:"id"`
	Type                PatternType `json:"type"`
	Key                 string      `json:"key"`
	TargetEntityCode    string      `json:"target_entity_code,omitempty"`
	Confidence          float64     `json:"confidence"`
	TimesCorrect        int         `json:"times_correct"`
	TimesRejected       int         `json:"times_rejected"`
	Active              bool        `json:"active"`
	Note                *string     `json:"note,omitempty"`
	CreatedFromRecordID *int64      `json:"created_from_record_id,omitempty"`
	LastUsedAt          *time.Time  `json:"last_used_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// PatternStats is the operational metrics view of the pattern store.
type PatternStats struct {
	CountsByType        map[PatternType]int     `json:"counts_by_type"`
	AvgConfidenceByType map[PatternType]float64 `json:"avg_confidence_by_type"`
	TopEntities         []EntityPatternCount    `json:"top_entities"`
}

type EntityPatternCount struct {
	EntityCode   string `json:"entity_code"`
	PatternCount int    `json:"pattern_count"`
}
