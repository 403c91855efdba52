package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/store"
)

var ErrInvalidRedirect = errors.New("invalid redirect")

// RedirectService maintains code redirect patterns: retired or renamed codes
// that should resolve to a successor entity. Redirects are administrative
// facts pinned at confidence 1.0, outside the reinforcement loop.
type RedirectService interface {
	Register(ctx context.Context, oldCode, newCode string) (*model.LearnedPattern, error)
}

type redirectService struct {
	txRunner TxRunner
}

func NewRedirectService(txRunner TxRunner) RedirectService {
	return &redirectService{txRunner: txRunner}
}

func (s *redirectService) Register(ctx context.Context, oldCode, newCode string) (*model.LearnedPattern, error) {
	oldCode = strings.ToUpper(strings.TrimSpace(oldCode))
	newCode = strings.ToUpper(strings.TrimSpace(newCode))
	if oldCode == "" || newCode == "" {
		return nil, fmt.Errorf("%w: old_code and new_code are required", ErrInvalidRedirect)
	}
	if oldCode == newCode {
		return nil, fmt.Errorf("%w: old_code and new_code are the same", ErrInvalidRedirect)
	}

	var redirect *model.LearnedPattern

	// The old code is deliberately not checked against the catalog: retired
	// codes are usually gone from it, and that is the whole point of a
	// redirect. The target has to exist, though.
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := getEntity(ctx, sp, newCode); err != nil {
			return err
		}

		existing, err := sp.Patterns().FindByKey(ctx, model.PatternTypeRedirect, oldCode)
		if err != nil {
			return fmt.Errorf("finding redirects for %s: %w", oldCode, err)
		}

		// One old code resolves to exactly one target. Re-pointing a
		// redirect deactivates the previous one instead of deleting it.
		for i := range existing {
			p := &existing[i]
			if !p.Active || strings.EqualFold(p.TargetEntityCode, newCode) {
				continue
			}
			if err := sp.Patterns().Deactivate(ctx, p.ID); err != nil {
				return fmt.Errorf("deactivating redirect %d: %w", p.ID, err)
			}
			slog.InfoContext(ctx, "previous redirect deactivated",
				"old_code", oldCode,
				"previous_target", p.TargetEntityCode,
				"new_target", newCode)
		}

		redirect = &model.LearnedPattern{
			ID:               id.New(),
			Type:             model.PatternTypeRedirect,
			Key:              oldCode,
			TargetEntityCode: newCode,
			Confidence:       1.0,
			TimesCorrect:     1,
			Active:           true,
		}
		for i := range existing {
			if strings.EqualFold(existing[i].TargetEntityCode, newCode) {
				redirect.TimesCorrect = existing[i].TimesCorrect
				break
			}
		}
		if err := sp.Patterns().Upsert(ctx, redirect); err != nil {
			return err
		}

		return sp.Events().Append(ctx, &model.ResolutionEvent{
			ID:   id.New(),
			Kind: model.ResolutionEventRedirectRegistered,
			Detail: eventDetail(map[string]any{
				"old_code": oldCode,
				"new_code": newCode,
			}),
		})
	}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "redirect registered",
		"old_code", oldCode,
		"new_code", newCode,
		"pattern_id", redirect.ID)
	return redirect, nil
}
