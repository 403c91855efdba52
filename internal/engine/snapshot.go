package engine

import (
	"strings"

	"anchorline.app/resolver/internal/model"
)

// CatalogSnapshot is an immutable view of the active entity catalog, captured
// once per batch. Generators only ever read it, which is what makes records
// within a batch independently resolvable.
type CatalogSnapshot struct {
	Entities []model.Entity

	byCode map[string]*model.Entity
}

func NewCatalogSnapshot(entities []model.Entity) *CatalogSnapshot {
	snap := &CatalogSnapshot{
		Entities: entities,
		byCode:   make(map[string]*model.Entity, len(entities)),
	}
	for i := range snap.Entities {
		snap.byCode[strings.ToUpper(snap.Entities[i].Code)] = &snap.Entities[i]
	}
	return snap
}

// FindByCode looks up an entity by its stable code, case-insensitively.
func (s *CatalogSnapshot) FindByCode(code string) (*model.Entity, bool) {
	e, ok := s.byCode[strings.ToUpper(code)]
	return e, ok
}

func (s *CatalogSnapshot) Len() int {
	return len(s.Entities)
}

// PatternSnapshot is an immutable view of the active learned patterns,
// indexed by type and normalized key. Like the catalog snapshot it is
// captured once per batch; the reinforcement loop never mutates it, only
// the store it was built from.
type PatternSnapshot struct {
	senders   map[string][]model.LearnedPattern
	domains   map[string][]model.LearnedPattern
	keywords  map[string][]model.LearnedPattern
	skips     map[string]model.LearnedPattern
	redirects map[string]model.LearnedPattern

	total int
}

func NewPatternSnapshot(patterns []model.LearnedPattern) *PatternSnapshot {
	snap := &PatternSnapshot{
		senders:   make(map[string][]model.LearnedPattern),
		domains:   make(map[string][]model.LearnedPattern),
		keywords:  make(map[string][]model.LearnedPattern),
		skips:     make(map[string]model.LearnedPattern),
		redirects: make(map[string]model.LearnedPattern),
	}

	for _, p := range patterns {
		if !p.Active {
			continue
		}
		snap.total++

		switch p.Type {
		case model.PatternTypeSender:
			key := strings.ToLower(p.Key)
			snap.senders[key] = append(snap.senders[key], p)
		case model.PatternTypeDomain:
			key := strings.ToLower(p.Key)
			snap.domains[key] = append(snap.domains[key], p)
		case model.PatternTypeKeyword:
			key := strings.ToLower(p.Key)
			snap.keywords[key] = append(snap.keywords[key], p)
		case model.PatternTypeDomainSkip:
			snap.skips[strings.ToLower(p.Key)] = p
		case model.PatternTypeRedirect:
			snap.redirects[strings.ToUpper(p.Key)] = p
		}
	}

	return snap
}

// SendersFor returns the active sender→entity patterns for a normalized
// address. A sender legitimately maps to several entities.
func (s *PatternSnapshot) SendersFor(address string) []model.LearnedPattern {
	return s.senders[strings.ToLower(address)]
}

// DomainsFor returns the active domain→entity patterns for a domain.
func (s *PatternSnapshot) DomainsFor(domain string) []model.LearnedPattern {
	return s.domains[strings.ToLower(domain)]
}

// KeywordsFor returns the active keyword→entity patterns for a token.
func (s *PatternSnapshot) KeywordsFor(token string) []model.LearnedPattern {
	return s.keywords[strings.ToLower(token)]
}

// SkipFor reports whether an active domain→skip pattern suppresses the
// domain strategy for this domain.
func (s *PatternSnapshot) SkipFor(domain string) (model.LearnedPattern, bool) {
	p, ok := s.skips[strings.ToLower(domain)]
	return p, ok
}

// RedirectFor returns the active redirect pattern for an old entity code.
func (s *PatternSnapshot) RedirectFor(code string) (model.LearnedPattern, bool) {
	p, ok := s.redirects[strings.ToUpper(code)]
	return p, ok
}

// Redirects returns all active redirect patterns keyed by old code. The
// code generator scans these against the subject before anything else.
func (s *PatternSnapshot) Redirects() map[string]model.LearnedPattern {
	return s.redirects
}

func (s *PatternSnapshot) Len() int {
	return s.total
}
