package engine

import (
	"context"
	"fmt"

	"anchorline.app/resolver/common"
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// senderGenerator matches the normalized sender address against learned
// sender→entity patterns. A malformed sender simply contributes nothing;
// the other strategies still run.
type senderGenerator struct{}

func (senderGenerator) Name() string { return "known_sender" }

func (senderGenerator) Generate(_ context.Context, rec *model.Record, _ *CatalogSnapshot, pat *PatternSnapshot) []domain.Candidate {
	address, err := common.NormalizeAddress(rec.SenderAddress)
	if err != nil {
		return nil
	}

	var out []domain.Candidate
	for _, p := range pat.SendersFor(address) {
		out = append(out, domain.Candidate{
			EntityCode:     p.TargetEntityCode,
			Score:          p.Confidence,
			Method:         model.MethodKnownSender,
			Evidence:       fmt.Sprintf("sender %s matched pattern (confidence %.2f)", address, p.Confidence),
			PatternID:      p.ID,
			PatternLastUse: p.LastUsedAt,
		})
	}
	return out
}
