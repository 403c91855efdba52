package engine

import (
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// autoLinkMethods is the closed set of methods trusted to carry an
// auto-link. Keywords, company mentions, and the classifier can corroborate
// a score but never be the decisive method for bypassing review.
var autoLinkMethods = map[model.Method]struct{}{
	model.MethodExactCode:   {},
	model.MethodKnownSender: {},
}

// gate turns a ranked shortlist into the per-record decision: auto-link only
// when the aggregate clears the threshold and the decisive method is one a
// human has effectively vouched for. The gate is pure; the idempotence
// checks (existing binding, existing pending suggestion) happen where the
// decision is applied, inside the transaction.
type gate struct {
	threshold float64
}

func (g gate) Decide(shortlist []domain.ScoredEntity) (domain.DecisionKind, *domain.ScoredEntity) {
	if len(shortlist) == 0 {
		return domain.DecisionUnresolved, nil
	}

	top := &shortlist[0]
	if top.Score >= g.threshold {
		if _, safe := autoLinkMethods[top.ChosenMethod]; safe {
			return domain.DecisionAutoLink, top
		}
	}
	return domain.DecisionSuggest, top
}
