package engine

import (
	"context"
	"fmt"
	"strings"

	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// scoreExactCode is the score for a literal entity code in the subject, and
// the score a redirect short-circuits to. It equals the confidence ceiling:
// nothing outranks an explicit code.
const scoreExactCode = 0.98

// codeGenerator finds literal entity codes in the subject line. Redirect
// patterns are consulted first: a redirected code yields a candidate for the
// redirect target and the old code is not matched against the catalog.
type codeGenerator struct{}

func (codeGenerator) Name() string { return "exact_code" }

func (codeGenerator) Generate(_ context.Context, rec *model.Record, cat *CatalogSnapshot, pat *PatternSnapshot) []domain.Candidate {
	subject := strings.ToUpper(rec.Subject)
	if subject == "" {
		return nil
	}

	var out []domain.Candidate
	redirected := make(map[string]struct{})

	for oldCode, p := range pat.Redirects() {
		if !containsCode(subject, oldCode) {
			continue
		}
		redirected[oldCode] = struct{}{}
		out = append(out, domain.Candidate{
			EntityCode:     p.TargetEntityCode,
			Score:          scoreExactCode,
			Method:         model.MethodExactCode,
			Evidence:       fmt.Sprintf("code %s in subject, redirected to %s", oldCode, p.TargetEntityCode),
			PatternID:      p.ID,
			PatternLastUse: p.LastUsedAt,
			ViaRedirect:    true,
		})
	}

	for i := range cat.Entities {
		code := strings.ToUpper(cat.Entities[i].Code)
		if _, skip := redirected[code]; skip {
			continue
		}
		if !containsCode(subject, code) {
			continue
		}
		out = append(out, domain.Candidate{
			EntityCode: cat.Entities[i].Code,
			Score:      scoreExactCode,
			Method:     model.MethodExactCode,
			Evidence:   fmt.Sprintf("code %s in subject", cat.Entities[i].Code),
		})
	}

	return out
}
