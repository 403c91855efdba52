package domain

import (
	"time"

	"anchorline.app/resolver/internal/model"
)

// Candidate is one generator's scored guess that a record relates to an
// entity. Candidates live only within a single resolution pass; they are
// never persisted directly.
type Candidate struct {
	EntityCode     string       `json:"entity_code"`
	Score          float64      `json:"score"`
	Method         model.Method `json:"method"`
	Evidence       string       `json:"evidence"`
	PatternID      int64        `json:"pattern_id,omitempty"`
	PatternLastUse *time.Time   `json:"pattern_last_use,omitempty"`
	ViaRedirect    bool         `json:"via_redirect,omitempty"`
}

// ScoredEntity is one aggregated shortlist entry: all corroborating methods
// for an entity merged into a single capped score. ChosenMethod is the
// highest-contributing method, the one the gate judges for auto-link safety.
// PatternIDs carries the learned patterns that contributed, so an applied
// decision can stamp their last use.
type ScoredEntity struct {
	EntityCode     string         `json:"entity_code"`
	EntityName     string         `json:"entity_name,omitempty"`
	Score          float64        `json:"score"`
	ChosenMethod   model.Method   `json:"chosen_method"`
	Methods        []model.Method `json:"methods"`
	Evidence       []string       `json:"evidence,omitempty"`
	HasExactCode   bool           `json:"has_exact_code"`
	ViaRedirect    bool           `json:"via_redirect,omitempty"`
	LastPatternUse *time.Time     `json:"last_pattern_use,omitempty"`
	PatternIDs     []int64        `json:"pattern_ids,omitempty"`
}
