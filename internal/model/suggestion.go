package model

import "time"

// Method identifies the matching strategy that produced a candidate. The set
// is closed: the aggregator and gate switch exhaustively over it.
type Method string

const (
	MethodExactCode          Method = "exact_code_in_subject"
	MethodKnownSender        Method = "known_sender_pattern"
	MethodDomainPattern      Method = "domain_pattern"
	MethodDistinctiveKeyword Method = "distinctive_keyword_in_subject"
	MethodMultiKeyword       Method = "multi_keyword_in_body"
	MethodCompanyMention     Method = "company_mention"
	MethodExternalClassifier Method = "external_classifier"
)

type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "pending"
	SuggestionStatusApproved  SuggestionStatus = "approved"
	SuggestionStatusRejected  SuggestionStatus = "rejected"
	SuggestionStatusCorrected SuggestionStatus = "corrected"
	SuggestionStatusApplied   SuggestionStatus = "applied"
)

// ProposedBinding is one ranked shortlist entry carried by a Suggestion.
// Serialized as JSONB in the suggestions.shortlist column.
type ProposedBinding struct {
	EntityCode string   `json:"entity_code"`
	EntityName string   `json:"entity_name,omitempty"`
	Score      float64  `json:"score"`
	Methods    []Method `json:"methods"`
	Evidence   []string `json:"evidence,omitempty"`
}

// Suggestion is a human-reviewable candidate binding awaiting approval,
// rejection, or correction. pending is the only initial state; applied is
// terminal and no transition is reversible.
type Suggestion struct {
	ID            int64             `json:"id"`
	ShortID       string            `json:"short_id"`
	RecordID      int64             `json:"record_id"`
	TopEntityCode string            `json:"top_entity_code"`
	ChosenMethod  Method            `json:"chosen_method"`
	Shortlist     []ProposedBinding `json:"shortlist"`
	Status        SuggestionStatus  `json:"status"`
	ReviewerNote  *string           `json:"reviewer_note,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
	AppliedAt     *time.Time        `json:"applied_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
