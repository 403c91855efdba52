// Package engine implements the resolution core: candidate generators over
// immutable catalog/pattern snapshots, the confidence aggregator, and the
// auto-apply gate. Everything here is pure and deterministic except the
// optional external classifier, which is bounded by a timeout and fails
// open.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"anchorline.app/resolver/common/llm"
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// Config carries the scoring tunables the engine needs. Values come from
// core/config; the defaults there reproduce the shipped behavior.
type Config struct {
	AutoLinkThreshold float64
	ShortlistFloor    float64
	ShortlistSize     int
	FreeMailDomains   []string
	StaffDomains      []string
	ClassifierTimeout time.Duration
}

type Engine struct {
	deterministic []Generator
	classifier    Generator
	aggregator    aggregator
	gate          gate
}

// New builds the engine. llmClient may be nil: the classifier strategy is
// optional and the deterministic core runs without any network dependency.
func New(cfg Config, llmClient llm.Client) *Engine {
	e := &Engine{
		deterministic: []Generator{
			codeGenerator{},
			senderGenerator{},
			domainGenerator{policy: NewDomainPolicy(cfg.FreeMailDomains, cfg.StaffDomains)},
			keywordGenerator{},
			multiKeywordGenerator{},
			companyGenerator{},
		},
		aggregator: aggregator{floor: cfg.ShortlistFloor, size: cfg.ShortlistSize},
		gate:       gate{threshold: cfg.AutoLinkThreshold},
	}
	if llmClient != nil {
		e.classifier = classifierGenerator{llm: llmClient, timeout: cfg.ClassifierTimeout}
	}
	return e
}

// Resolve runs one record through every strategy and returns the ranked
// shortlist with the gate decision. It reads only the snapshots; callers
// apply the decision transactionally.
func (e *Engine) Resolve(ctx context.Context, rec *model.Record, cat *CatalogSnapshot, pat *PatternSnapshot) domain.Resolution {
	var candidates []domain.Candidate
	for _, g := range e.deterministic {
		candidates = append(candidates, g.Generate(ctx, rec, cat, pat)...)
	}

	if e.classifier != nil {
		for _, c := range e.classifier.Generate(ctx, rec, cat, pat) {
			if contradicted(candidates, c.EntityCode) {
				slog.DebugContext(ctx, "classifier candidate contradicted, dropped",
					"record_id", rec.ID,
					"code", c.EntityCode)
				continue
			}
			candidates = append(candidates, c)
		}
	}

	shortlist := e.aggregator.Aggregate(candidates, cat)
	decision, winner := e.gate.Decide(shortlist)

	return domain.Resolution{
		RecordID:  rec.ID,
		Shortlist: shortlist,
		Decision:  decision,
		Winner:    winner,
	}
}

// contradicted reports whether any deterministic candidate names a different
// entity than the classifier's pick.
func contradicted(candidates []domain.Candidate, code string) bool {
	for _, c := range candidates {
		if !strings.EqualFold(c.EntityCode, code) {
			return true
		}
	}
	return false
}
