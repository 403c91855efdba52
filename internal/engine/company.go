package engine

import (
	"context"
	"fmt"

	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

const scoreCompanyMention = 0.70

// companyGenerator matches distinctive words from an entity's company name
// anywhere in subject or body. Company names are shared across an entity's
// projects, so this method alone can never clear the auto-link gate.
type companyGenerator struct{}

func (companyGenerator) Name() string { return "company_mention" }

func (companyGenerator) Generate(_ context.Context, rec *model.Record, cat *CatalogSnapshot, _ *PatternSnapshot) []domain.Candidate {
	text := tokenSet(rec.Subject + " " + rec.Body)
	if len(text) == 0 {
		return nil
	}

	var out []domain.Candidate
	for i := range cat.Entities {
		e := &cat.Entities[i]
		if e.Company == nil {
			continue
		}
		for _, word := range distinctiveWords(*e.Company, bodyTokenMinLen) {
			if _, ok := text[word]; !ok {
				continue
			}
			out = append(out, domain.Candidate{
				EntityCode: e.Code,
				Score:      scoreCompanyMention,
				Method:     model.MethodCompanyMention,
				Evidence:   fmt.Sprintf("company word %q from %s mentioned", word, *e.Company),
			})
			break
		}
	}
	return out
}
