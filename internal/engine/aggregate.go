package engine

import (
	"sort"
	"strings"

	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// methodCeiling bounds what one method may contribute to an aggregate score.
// Riskier methods get lower ceilings so they can never alone clear the
// auto-link threshold. The switch is exhaustive over the closed method set.
func methodCeiling(m model.Method) float64 {
	switch m {
	case model.MethodExactCode:
		return 0.98
	case model.MethodKnownSender:
		return 0.95
	case model.MethodDomainPattern:
		return 0.90
	case model.MethodDistinctiveKeyword:
		return 0.85
	case model.MethodMultiKeyword:
		return 0.80
	case model.MethodCompanyMention:
		return 0.70
	case model.MethodExternalClassifier:
		return 0.70
	}
	return 0
}

// methodRank fixes the reporting order of methods: strongest evidence first.
func methodRank(m model.Method) int {
	switch m {
	case model.MethodExactCode:
		return 0
	case model.MethodKnownSender:
		return 1
	case model.MethodDomainPattern:
		return 2
	case model.MethodDistinctiveKeyword:
		return 3
	case model.MethodMultiKeyword:
		return 4
	case model.MethodCompanyMention:
		return 5
	case model.MethodExternalClassifier:
		return 6
	}
	return 7
}

// aggregator merges raw candidates into the ranked shortlist: group by
// entity, keep the best candidate per method, cap each method's
// contribution at its ceiling, sum, rank, floor, truncate.
type aggregator struct {
	floor float64
	size  int
}

func (a aggregator) Aggregate(candidates []domain.Candidate, cat *CatalogSnapshot) []domain.ScoredEntity {
	byEntity := make(map[string]map[model.Method]domain.Candidate)
	for _, c := range candidates {
		code := strings.ToUpper(c.EntityCode)
		if _, known := cat.FindByCode(code); !known {
			continue
		}
		perMethod, ok := byEntity[code]
		if !ok {
			perMethod = make(map[model.Method]domain.Candidate)
			byEntity[code] = perMethod
		}
		if best, ok := perMethod[c.Method]; !ok || c.Score > best.Score {
			perMethod[c.Method] = c
		}
	}

	shortlist := make([]domain.ScoredEntity, 0, len(byEntity))
	for code, perMethod := range byEntity {
		entity, _ := cat.FindByCode(code)

		kept := make([]domain.Candidate, 0, len(perMethod))
		for _, c := range perMethod {
			kept = append(kept, c)
		}
		sort.Slice(kept, func(i, j int) bool {
			return methodRank(kept[i].Method) < methodRank(kept[j].Method)
		})

		entry := domain.ScoredEntity{
			EntityCode: entity.Code,
			EntityName: entity.Name,
		}
		var sum, best float64
		for _, c := range kept {
			capped := c.Score
			if ceiling := methodCeiling(c.Method); capped > ceiling {
				capped = ceiling
			}
			sum += capped

			// Candidates arrive rank-ordered, so on equal contribution the
			// stronger method class stays chosen.
			if capped > best {
				best = capped
				entry.ChosenMethod = c.Method
			}

			entry.Methods = append(entry.Methods, c.Method)
			if c.Evidence != "" {
				entry.Evidence = append(entry.Evidence, c.Evidence)
			}
			if c.Method == model.MethodExactCode {
				entry.HasExactCode = true
			}
			if c.ViaRedirect {
				entry.ViaRedirect = true
			}
			if c.PatternID != 0 {
				entry.PatternIDs = append(entry.PatternIDs, c.PatternID)
			}
			if c.PatternLastUse != nil &&
				(entry.LastPatternUse == nil || c.PatternLastUse.After(*entry.LastPatternUse)) {
				entry.LastPatternUse = c.PatternLastUse
			}
		}
		if sum > 1.0 {
			sum = 1.0
		}
		entry.Score = sum

		if entry.Score < a.floor {
			continue
		}
		shortlist = append(shortlist, entry)
	}

	sort.Slice(shortlist, func(i, j int) bool {
		return lessRanked(&shortlist[j], &shortlist[i])
	})

	if a.size > 0 && len(shortlist) > a.size {
		shortlist = shortlist[:a.size]
	}
	return shortlist
}

// lessRanked reports whether a ranks below b: lower score, then the
// tie-breaks (exact code present, more distinct methods, most recent
// contributing pattern), then code for a stable order.
func lessRanked(a, b *domain.ScoredEntity) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.HasExactCode != b.HasExactCode {
		return !a.HasExactCode
	}
	if len(a.Methods) != len(b.Methods) {
		return len(a.Methods) < len(b.Methods)
	}
	switch {
	case a.LastPatternUse == nil && b.LastPatternUse != nil:
		return true
	case a.LastPatternUse != nil && b.LastPatternUse == nil:
		return false
	case a.LastPatternUse != nil && b.LastPatternUse != nil &&
		!a.LastPatternUse.Equal(*b.LastPatternUse):
		return a.LastPatternUse.Before(*b.LastPatternUse)
	}
	return a.EntityCode > b.EntityCode
}
