package domain

// DecisionKind is the gate's verdict for one record.
type DecisionKind string

const (
	DecisionAutoLink       DecisionKind = "auto_link"
	DecisionSuggest        DecisionKind = "suggest"
	DecisionUnresolved     DecisionKind = "unresolved"
	DecisionAlreadyHandled DecisionKind = "already_handled"
)

// Resolution is the full outcome of resolving one record: the ranked
// shortlist plus the gate decision. Winner is nil when the shortlist is
// empty.
type Resolution struct {
	RecordID  int64          `json:"record_id"`
	Shortlist []ScoredEntity `json:"shortlist"`
	Decision  DecisionKind   `json:"decision"`
	Winner    *ScoredEntity  `json:"winner,omitempty"`
}
