package engine

import (
	"context"
	"fmt"
	"strings"

	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

const (
	scoreDistinctiveKeyword = 0.85
	multiKeywordBase        = 0.65
	multiKeywordPerMatch    = 0.05
)

// keywordGenerator implements the distinctive-keyword strategy: a long,
// non-generic word from an entity's name (or alias) appearing in the subject
// line. Learned keyword→entity patterns extend the same strategy, scored at
// their own confidence instead of the flat keyword score.
type keywordGenerator struct{}

func (keywordGenerator) Name() string { return "distinctive_keyword" }

func (keywordGenerator) Generate(_ context.Context, rec *model.Record, cat *CatalogSnapshot, pat *PatternSnapshot) []domain.Candidate {
	subject := tokenSet(rec.Subject)
	if len(subject) == 0 {
		return nil
	}

	var out []domain.Candidate

	for i := range cat.Entities {
		e := &cat.Entities[i]
		for _, word := range entityNameWords(e, subjectTokenMinLen) {
			if _, ok := subject[word]; !ok {
				continue
			}
			out = append(out, domain.Candidate{
				EntityCode: e.Code,
				Score:      scoreDistinctiveKeyword,
				Method:     model.MethodDistinctiveKeyword,
				Evidence:   fmt.Sprintf("keyword %q from %s in subject", word, e.Name),
			})
			break
		}
	}

	for token := range subject {
		for _, p := range pat.KeywordsFor(token) {
			out = append(out, domain.Candidate{
				EntityCode:     p.TargetEntityCode,
				Score:          p.Confidence,
				Method:         model.MethodDistinctiveKeyword,
				Evidence:       fmt.Sprintf("learned keyword %q in subject (confidence %.2f)", token, p.Confidence),
				PatternID:      p.ID,
				PatternLastUse: p.LastUsedAt,
			})
		}
	}

	return out
}

// multiKeywordGenerator implements the weaker corroboration strategy: two or
// more non-generic entity-name words anywhere in subject or body. Single
// common-word hits stay below the shortlist floor by construction.
type multiKeywordGenerator struct{}

func (multiKeywordGenerator) Name() string { return "multi_keyword" }

func (multiKeywordGenerator) Generate(_ context.Context, rec *model.Record, cat *CatalogSnapshot, _ *PatternSnapshot) []domain.Candidate {
	text := tokenSet(rec.Subject + " " + rec.Body)
	if len(text) == 0 {
		return nil
	}

	var out []domain.Candidate
	for i := range cat.Entities {
		e := &cat.Entities[i]

		var matched []string
		for _, word := range entityNameWords(e, bodyTokenMinLen) {
			if _, ok := text[word]; ok {
				matched = append(matched, word)
			}
		}
		if len(matched) < 2 {
			continue
		}

		out = append(out, domain.Candidate{
			EntityCode: e.Code,
			Score:      multiKeywordBase + multiKeywordPerMatch*float64(len(matched)),
			Method:     model.MethodMultiKeyword,
			Evidence:   fmt.Sprintf("%d name words in text: %s", len(matched), strings.Join(matched, ", ")),
		})
	}
	return out
}

// MatchedNameKeywords returns the distinctive name and alias words of an
// entity that appear in the subject line. The reinforcement loop uses it to
// learn keyword patterns from the same evidence the keyword strategy scores,
// without re-running a full resolution pass.
func MatchedNameKeywords(subject string, e *model.Entity) []string {
	tokens := tokenSet(subject)
	if len(tokens) == 0 {
		return nil
	}

	var matched []string
	for _, word := range entityNameWords(e, subjectTokenMinLen) {
		if _, ok := tokens[word]; ok {
			matched = append(matched, word)
		}
	}
	return matched
}

// entityNameWords collects the distinctive words of an entity's display name
// and aliases.
func entityNameWords(e *model.Entity, minLen int) []string {
	words := distinctiveWords(e.Name, minLen)
	for _, alias := range e.Aliases {
		for _, w := range distinctiveWords(alias, minLen) {
			if !containsWord(words, w) {
				words = append(words, w)
			}
		}
	}
	return words
}

func containsWord(words []string, w string) bool {
	for _, have := range words {
		if have == w {
			return true
		}
	}
	return false
}
