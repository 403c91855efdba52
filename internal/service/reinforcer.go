package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"anchorline.app/resolver/common"
	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/core/config"
	"anchorline.app/resolver/internal/engine"
	"anchorline.app/resolver/internal/model"
)

// ReinforcementCounts reports what one review decision did to the pattern
// store. Returned to the reviewer so the learning effect is visible.
type ReinforcementCounts struct {
	PatternsCreated   int `json:"patterns_created"`
	PatternsUpdated   int `json:"patterns_updated"`
	PatternsPenalized int `json:"patterns_penalized"`
}

// reinforcer owns every piece of confidence arithmetic. Stores only persist
// what it computes, and it only ever runs inside a review transaction, which
// is what keeps concurrent reviewers from losing updates.
//
// Invariants, for every pattern it touches:
//   - sender patterns live in [ConfidenceFloor, ConfidenceCeiling]
//   - domain patterns never exceed their initial confidence
//   - keyword patterns never exceed KeywordConfidenceCeiling
//   - redirect patterns are pinned at 1.0 and never reinforced here
type reinforcer struct {
	cfg    config.ResolverConfig
	policy engine.DomainPolicy
}

func newReinforcer(cfg config.ResolverConfig) *reinforcer {
	return &reinforcer{
		cfg:    cfg,
		policy: engine.NewDomainPolicy(cfg.FreeMailDomains, cfg.StaffDomains),
	}
}

// approve reinforces every pattern family the confirmed (record, entity)
// pair supports: the sender mapping, the sender's external domain, and any
// distinctive name keywords present in the subject.
func (r *reinforcer) approve(ctx context.Context, sp StoreProvider, rec *model.Record, entity *model.Entity, counts *ReinforcementCounts) error {
	address, err := common.NormalizeAddress(rec.SenderAddress)
	if err != nil {
		slog.WarnContext(ctx, "sender not learnable, skipping sender patterns",
			"record_id", rec.ID,
			"error", err)
	} else {
		if err := r.upsertReinforced(ctx, sp, reinforcement{
			patternType: model.PatternTypeSender,
			key:         address,
			target:      entity.Code,
			initial:     r.cfg.SenderInitialConfidence,
			ceiling:     r.cfg.ConfidenceCeiling,
			recordID:    rec.ID,
		}, counts); err != nil {
			return err
		}

		if dom := common.AddressDomain(address); r.policy.External(dom) {
			if err := r.upsertReinforced(ctx, sp, reinforcement{
				patternType: model.PatternTypeDomain,
				key:         dom,
				target:      entity.Code,
				initial:     r.cfg.DomainInitialConfidence,
				ceiling:     r.cfg.DomainInitialConfidence,
				recordID:    rec.ID,
			}, counts); err != nil {
				return err
			}
		}
	}

	for _, word := range engine.MatchedNameKeywords(rec.Subject, entity) {
		if err := r.upsertReinforced(ctx, sp, reinforcement{
			patternType: model.PatternTypeKeyword,
			key:         word,
			target:      entity.Code,
			initial:     r.cfg.KeywordInitialConfidence,
			ceiling:     r.cfg.KeywordConfidenceCeiling,
			recordID:    rec.ID,
		}, counts); err != nil {
			return err
		}
	}

	return nil
}

// reject writes a domain→skip pattern for the sender's external domain so
// future passes stop proposing matches for it. Sender patterns pointing at
// other entities are deliberately untouched.
func (r *reinforcer) reject(ctx context.Context, sp StoreProvider, rec *model.Record, counts *ReinforcementCounts) error {
	address, err := common.NormalizeAddress(rec.SenderAddress)
	if err != nil {
		slog.DebugContext(ctx, "sender not learnable, nothing to skip",
			"record_id", rec.ID)
		return nil
	}

	dom := common.AddressDomain(address)
	if !r.policy.External(dom) {
		// Free-mail and staff domains never feed the domain strategy, so a
		// skip pattern for them would suppress nothing.
		slog.DebugContext(ctx, "domain not external, no skip pattern written",
			"record_id", rec.ID,
			"domain", dom)
		return nil
	}

	return r.upsertReinforced(ctx, sp, reinforcement{
		patternType: model.PatternTypeDomainSkip,
		key:         dom,
		target:      "",
		initial:     r.cfg.SkipConfidence,
		ceiling:     r.cfg.SkipConfidence,
		recordID:    rec.ID,
	}, counts)
}

// penalize reduces confidence on every sender pattern that pointed the
// record's sender at the wrong entity. Patterns for the corrected entity are
// never penalized; approve already reinforced them.
func (r *reinforcer) penalize(ctx context.Context, sp StoreProvider, rec *model.Record, wrongCode, correctCode string, counts *ReinforcementCounts) error {
	address, err := common.NormalizeAddress(rec.SenderAddress)
	if err != nil {
		return nil
	}

	patterns, err := sp.Patterns().FindByKey(ctx, model.PatternTypeSender, address)
	if err != nil {
		return fmt.Errorf("finding sender patterns: %w", err)
	}

	note := fmt.Sprintf("corrected to %s", correctCode)
	for i := range patterns {
		p := &patterns[i]
		if !strings.EqualFold(p.TargetEntityCode, wrongCode) ||
			strings.EqualFold(p.TargetEntityCode, correctCode) {
			continue
		}

		confidence := p.Confidence - r.cfg.PenaltyDelta
		if confidence < r.cfg.ConfidenceFloor {
			confidence = r.cfg.ConfidenceFloor
		}
		if err := sp.Patterns().Penalize(ctx, p.ID, confidence, note); err != nil {
			return fmt.Errorf("penalizing pattern %d: %w", p.ID, err)
		}
		counts.PatternsPenalized++

		slog.InfoContext(ctx, "pattern penalized",
			"pattern_id", p.ID,
			"key", p.Key,
			"wrong_entity", p.TargetEntityCode,
			"confidence", confidence)
	}

	return nil
}

// reinforcement describes one read-modify-write against a pattern key.
type reinforcement struct {
	patternType model.PatternType
	key         string
	target      string
	initial     float64
	ceiling     float64
	recordID    int64
}

func (r *reinforcer) upsertReinforced(ctx context.Context, sp StoreProvider, rf reinforcement, counts *ReinforcementCounts) error {
	existing, err := sp.Patterns().FindByKey(ctx, rf.patternType, rf.key)
	if err != nil {
		return fmt.Errorf("finding %s patterns: %w", rf.patternType, err)
	}

	for i := range existing {
		p := &existing[i]
		if !strings.EqualFold(p.TargetEntityCode, rf.target) {
			continue
		}

		confidence := p.Confidence + r.cfg.ApproveDelta
		if confidence > rf.ceiling {
			confidence = rf.ceiling
		}
		p.Confidence = confidence
		p.TimesCorrect++
		// A deactivated pattern that a human vouches for again resumes its
		// history rather than starting over.
		p.Active = true

		if err := sp.Patterns().Upsert(ctx, p); err != nil {
			return fmt.Errorf("reinforcing %s pattern: %w", rf.patternType, err)
		}
		counts.PatternsUpdated++

		slog.InfoContext(ctx, "pattern reinforced",
			"pattern_id", p.ID,
			"pattern_type", rf.patternType,
			"key", rf.key,
			"target", rf.target,
			"confidence", confidence,
			"times_correct", p.TimesCorrect)
		return nil
	}

	recordID := rf.recordID
	p := &model.LearnedPattern{
		ID:                  id.New(),
		Type:                rf.patternType,
		Key:                 rf.key,
		TargetEntityCode:    rf.target,
		Confidence:          rf.initial,
		TimesCorrect:        1,
		Active:              true,
		CreatedFromRecordID: &recordID,
	}
	if err := sp.Patterns().Upsert(ctx, p); err != nil {
		return fmt.Errorf("creating %s pattern: %w", rf.patternType, err)
	}
	counts.PatternsCreated++

	slog.InfoContext(ctx, "pattern learned",
		"pattern_id", p.ID,
		"pattern_type", rf.patternType,
		"key", rf.key,
		"target", rf.target,
		"confidence", rf.initial)
	return nil
}
