package engine

import (
	"strings"
	"unicode"
)

// Minimum token lengths. Subject keywords carry a 0.85 score on their own,
// so they need more length to be distinctive; body tokens only ever count
// in combination.
const (
	subjectTokenMinLen = 6
	bodyTokenMinLen    = 4
)

// genericWords is the denylist of common business nouns that appear in many
// entity names without identifying any of them. Kept lowercase.
var genericWords = map[string]struct{}{
	"hotel":         {},
	"resort":        {},
	"project":       {},
	"group":         {},
	"design":        {},
	"build":         {},
	"construction":  {},
	"development":   {},
	"company":       {},
	"corp":          {},
	"corporation":   {},
	"incorporated":  {},
	"limited":       {},
	"holdings":      {},
	"partners":      {},
	"associates":    {},
	"services":      {},
	"solutions":     {},
	"systems":       {},
	"international": {},
	"global":        {},
	"center":        {},
	"centre":        {},
	"office":        {},
	"suites":        {},
	"tower":         {},
	"plaza":         {},
	"street":        {},
	"avenue":        {},
	"north":         {},
	"south":         {},
	"phase":         {},
	"meeting":       {},
	"proposal":      {},
	"contract":      {},
	"invoice":       {},
	"update":        {},
	"renovation":    {},
}

func isGeneric(word string) bool {
	_, ok := genericWords[word]
	return ok
}

// tokenize splits text into lowercase alphanumeric words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenSet is the membership view of tokenize.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// distinctiveWords returns the non-generic words of minimum length from a
// display name, deduplicated in order of first appearance.
func distinctiveWords(name string, minLen int) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, tok := range tokenize(name) {
		if len(tok) < minLen || isGeneric(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		words = append(words, tok)
	}
	return words
}

// containsCode reports whether subject contains code on word boundaries.
// Both arguments must already share case. Substring matching alone would
// let OLD-1 match inside OLD-10.
func containsCode(subject, code string) bool {
	if code == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(subject[start:], code)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(code)
		beforeOK := idx == 0 || !isCodeRune(rune(subject[idx-1]))
		afterOK := end == len(subject) || !isCodeRune(rune(subject[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isCodeRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
