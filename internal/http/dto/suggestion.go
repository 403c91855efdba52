package dto

import "anchorline.app/resolver/internal/model"

type ApproveSuggestionRequest struct {
	// EntityCode optionally picks an alternate shortlisted entity; empty
	// approves the top suggestion.
	EntityCode   string  `json:"entity_code,omitempty"`
	ReviewerNote *string `json:"reviewer_note,omitempty"`
}

type RejectSuggestionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type CorrectSuggestionRequest struct {
	EntityCode   string  `json:"entity_code" binding:"required"`
	ReviewerNote *string `json:"reviewer_note,omitempty"`
}

type ReinforcementCountsPayload struct {
	PatternsCreated   int `json:"patterns_created"`
	PatternsUpdated   int `json:"patterns_updated"`
	PatternsPenalized int `json:"patterns_penalized"`
}

type ReviewResponse struct {
	Suggestion *model.Suggestion          `json:"suggestion"`
	Counts     ReinforcementCountsPayload `json:"counts"`
}

type SuggestionListResponse struct {
	Suggestions []model.Suggestion `json:"suggestions"`
	Count       int                `json:"count"`
}
