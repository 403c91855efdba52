package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/core/config"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/store"
)

var (
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrAlreadyReviewed    = errors.New("suggestion has already been reviewed")
	ErrEntityNotFound     = errors.New("entity not found")
	ErrNotInShortlist     = errors.New("entity is not on the suggestion shortlist")
	ErrEntityRequired     = errors.New("entity code is required")
	ErrConflict           = errors.New("concurrent review conflict")
)

// ReviewResult is the synchronous outcome of one review decision: the final
// suggestion state plus what the reinforcement loop did.
type ReviewResult struct {
	Suggestion *model.Suggestion   `json:"suggestion"`
	Counts     ReinforcementCounts `json:"counts"`
}

// ReviewService drives the suggestion lifecycle. Every decision runs its
// state transition, its reinforcement, and its side effect in one
// transaction, so a suggestion can never end up reviewed but unlearned.
type ReviewService interface {
	// Approve confirms the suggested entity, or an alternate shortlisted one
	// when entityCode is set.
	Approve(ctx context.Context, ref, entityCode string, reviewerNote *string) (*ReviewResult, error)
	// Reject records that the record relates to no catalog entity.
	Reject(ctx context.Context, ref, reason string) (*ReviewResult, error)
	// Correct replaces the suggested entity with the right one, which need
	// not be on the shortlist, and penalizes patterns that led to the wrong
	// entity.
	Correct(ctx context.Context, ref, entityCode string, reviewerNote *string) (*ReviewResult, error)
	ListPending(ctx context.Context, limit int32) ([]model.Suggestion, error)
	Get(ctx context.Context, ref string) (*model.Suggestion, error)
}

type reviewService struct {
	stores     StoreProvider
	txRunner   TxRunner
	reinforcer *reinforcer
}

func NewReviewService(stores StoreProvider, txRunner TxRunner, cfg config.ResolverConfig) ReviewService {
	return &reviewService{
		stores:     stores,
		txRunner:   txRunner,
		reinforcer: newReinforcer(cfg),
	}
}

func (s *reviewService) Approve(ctx context.Context, ref, entityCode string, reviewerNote *string) (*ReviewResult, error) {
	var result *ReviewResult

	err := s.runReview(ctx, func(sp StoreProvider) error {
		sug, err := findSuggestion(ctx, sp, ref)
		if err != nil {
			return err
		}
		if sug.Status != model.SuggestionStatusPending {
			return ErrAlreadyReviewed
		}

		code := strings.ToUpper(strings.TrimSpace(entityCode))
		if code == "" {
			code = sug.TopEntityCode
		}
		entry := shortlistEntry(sug, code)
		if entry == nil {
			return ErrNotInShortlist
		}

		entity, err := getEntity(ctx, sp, code)
		if err != nil {
			return err
		}
		rec, err := sp.Records().GetByID(ctx, sug.RecordID)
		if err != nil {
			return fmt.Errorf("fetching record %d: %w", sug.RecordID, err)
		}

		if _, err := sp.Suggestions().MarkReviewed(ctx, sug.ID, model.SuggestionStatusApproved, reviewerNote); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("marking suggestion approved: %w", err)
		}

		var counts ReinforcementCounts
		if err := s.reinforcer.approve(ctx, sp, rec, entity, &counts); err != nil {
			return err
		}

		method := sug.ChosenMethod
		if !strings.EqualFold(code, sug.TopEntityCode) && len(entry.Methods) > 0 {
			method = entry.Methods[0]
		}
		if err := bindOnce(ctx, sp, rec.ID, &model.RecordBinding{
			ID:         id.New(),
			RecordID:   rec.ID,
			EntityCode: entity.Code,
			Source:     model.BindingSourceReview,
			Method:     method,
			Score:      entry.Score,
		}); err != nil {
			return err
		}
		if err := sp.Records().SetResolutionStatus(ctx, rec.ID, model.RecordStatusLinked); err != nil {
			return fmt.Errorf("marking record linked: %w", err)
		}
		if err := sp.Suggestions().MarkApplied(ctx, sug.ID); err != nil {
			return fmt.Errorf("marking suggestion applied: %w", err)
		}

		if err := sp.Events().Append(ctx, &model.ResolutionEvent{
			ID:       id.New(),
			RecordID: &rec.ID,
			Kind:     model.ResolutionEventSuggestionApproved,
			Detail: eventDetail(map[string]any{
				"suggestion_id": sug.ID,
				"entity_code":   entity.Code,
				"counts":        counts,
			}),
		}); err != nil {
			return fmt.Errorf("appending approval event: %w", err)
		}

		final, err := sp.Suggestions().GetByID(ctx, sug.ID)
		if err != nil {
			return fmt.Errorf("reloading suggestion: %w", err)
		}
		result = &ReviewResult{Suggestion: final, Counts: counts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "suggestion approved",
		"suggestion_id", result.Suggestion.ID,
		"record_id", result.Suggestion.RecordID,
		"entity_code", result.Suggestion.TopEntityCode,
		"patterns_created", result.Counts.PatternsCreated,
		"patterns_updated", result.Counts.PatternsUpdated)
	return result, nil
}

func (s *reviewService) Reject(ctx context.Context, ref, reason string) (*ReviewResult, error) {
	var result *ReviewResult

	note := strings.TrimSpace(reason)
	var notePtr *string
	if note != "" {
		notePtr = &note
	}

	err := s.runReview(ctx, func(sp StoreProvider) error {
		sug, err := findSuggestion(ctx, sp, ref)
		if err != nil {
			return err
		}
		if sug.Status != model.SuggestionStatusPending {
			return ErrAlreadyReviewed
		}

		rec, err := sp.Records().GetByID(ctx, sug.RecordID)
		if err != nil {
			return fmt.Errorf("fetching record %d: %w", sug.RecordID, err)
		}

		if _, err := sp.Suggestions().MarkReviewed(ctx, sug.ID, model.SuggestionStatusRejected, notePtr); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("marking suggestion rejected: %w", err)
		}

		var counts ReinforcementCounts
		if err := s.reinforcer.reject(ctx, sp, rec, &counts); err != nil {
			return err
		}

		// A record linked through another suggestion keeps its link; the
		// rejection only settles this shortlist.
		bound, err := sp.Bindings().ExistsForRecord(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("checking bindings: %w", err)
		}
		if !bound {
			if err := sp.Records().SetResolutionStatus(ctx, rec.ID, model.RecordStatusDismissed); err != nil {
				return fmt.Errorf("marking record dismissed: %w", err)
			}
		}
		if err := sp.Suggestions().MarkApplied(ctx, sug.ID); err != nil {
			return fmt.Errorf("marking suggestion applied: %w", err)
		}

		if err := sp.Events().Append(ctx, &model.ResolutionEvent{
			ID:       id.New(),
			RecordID: &rec.ID,
			Kind:     model.ResolutionEventSuggestionRejected,
			Detail: eventDetail(map[string]any{
				"suggestion_id": sug.ID,
				"reason":        note,
				"counts":        counts,
			}),
		}); err != nil {
			return fmt.Errorf("appending rejection event: %w", err)
		}

		final, err := sp.Suggestions().GetByID(ctx, sug.ID)
		if err != nil {
			return fmt.Errorf("reloading suggestion: %w", err)
		}
		result = &ReviewResult{Suggestion: final, Counts: counts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "suggestion rejected",
		"suggestion_id", result.Suggestion.ID,
		"record_id", result.Suggestion.RecordID,
		"patterns_created", result.Counts.PatternsCreated,
		"patterns_updated", result.Counts.PatternsUpdated)
	return result, nil
}

func (s *reviewService) Correct(ctx context.Context, ref, entityCode string, reviewerNote *string) (*ReviewResult, error) {
	code := strings.ToUpper(strings.TrimSpace(entityCode))
	if code == "" {
		return nil, ErrEntityRequired
	}

	var result *ReviewResult

	err := s.runReview(ctx, func(sp StoreProvider) error {
		sug, err := findSuggestion(ctx, sp, ref)
		if err != nil {
			return err
		}
		if sug.Status != model.SuggestionStatusPending {
			return ErrAlreadyReviewed
		}

		entity, err := getEntity(ctx, sp, code)
		if err != nil {
			return err
		}
		rec, err := sp.Records().GetByID(ctx, sug.RecordID)
		if err != nil {
			return fmt.Errorf("fetching record %d: %w", sug.RecordID, err)
		}

		if _, err := sp.Suggestions().MarkReviewed(ctx, sug.ID, model.SuggestionStatusCorrected, reviewerNote); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("marking suggestion corrected: %w", err)
		}

		var counts ReinforcementCounts
		if err := s.reinforcer.approve(ctx, sp, rec, entity, &counts); err != nil {
			return err
		}
		if err := s.reinforcer.penalize(ctx, sp, rec, sug.TopEntityCode, entity.Code, &counts); err != nil {
			return err
		}

		binding := &model.RecordBinding{
			ID:         id.New(),
			RecordID:   rec.ID,
			EntityCode: entity.Code,
			Source:     model.BindingSourceReview,
		}
		// The corrected entity is usually off the shortlist; when it was on
		// it, carry the evidence that supported it.
		if entry := shortlistEntry(sug, entity.Code); entry != nil {
			if len(entry.Methods) > 0 {
				binding.Method = entry.Methods[0]
			}
			binding.Score = entry.Score
		}
		if err := bindOnce(ctx, sp, rec.ID, binding); err != nil {
			return err
		}
		if err := sp.Records().SetResolutionStatus(ctx, rec.ID, model.RecordStatusLinked); err != nil {
			return fmt.Errorf("marking record linked: %w", err)
		}
		if err := sp.Suggestions().MarkApplied(ctx, sug.ID); err != nil {
			return fmt.Errorf("marking suggestion applied: %w", err)
		}

		if err := sp.Events().Append(ctx, &model.ResolutionEvent{
			ID:       id.New(),
			RecordID: &rec.ID,
			Kind:     model.ResolutionEventSuggestionCorrected,
			Detail: eventDetail(map[string]any{
				"suggestion_id": sug.ID,
				"from_entity":   sug.TopEntityCode,
				"to_entity":     entity.Code,
				"counts":        counts,
			}),
		}); err != nil {
			return fmt.Errorf("appending correction event: %w", err)
		}

		final, err := sp.Suggestions().GetByID(ctx, sug.ID)
		if err != nil {
			return fmt.Errorf("reloading suggestion: %w", err)
		}
		result = &ReviewResult{Suggestion: final, Counts: counts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "suggestion corrected",
		"suggestion_id", result.Suggestion.ID,
		"record_id", result.Suggestion.RecordID,
		"from_entity", result.Suggestion.TopEntityCode,
		"to_entity", code,
		"patterns_penalized", result.Counts.PatternsPenalized)
	return result, nil
}

func (s *reviewService) ListPending(ctx context.Context, limit int32) ([]model.Suggestion, error) {
	return s.stores.Suggestions().ListPending(ctx, limit)
}

func (s *reviewService) Get(ctx context.Context, ref string) (*model.Suggestion, error) {
	sug, err := findSuggestionIn(ctx, s.stores.Suggestions(), ref)
	if err != nil {
		return nil, err
	}
	return sug, nil
}

// runReview executes one review decision, retrying the whole transaction
// once on a write conflict. A second conflict surfaces as ErrConflict so the
// reviewer can retry the action.
func (s *reviewService) runReview(ctx context.Context, fn func(sp StoreProvider) error) error {
	err := s.txRunner.WithTx(ctx, fn)
	if err == nil || !isWriteConflict(err) {
		return err
	}

	slog.WarnContext(ctx, "review write conflict, retrying once", "error", err)
	if err = s.txRunner.WithTx(ctx, fn); err == nil {
		return nil
	}
	if isWriteConflict(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isWriteConflict(err error) bool {
	return store.IsUniqueViolation(err) || store.IsSerializationFailure(err)
}

func findSuggestion(ctx context.Context, sp StoreProvider, ref string) (*model.Suggestion, error) {
	return findSuggestionIn(ctx, sp.Suggestions(), ref)
}

func findSuggestionIn(ctx context.Context, suggestions store.SuggestionStore, ref string) (*model.Suggestion, error) {
	var (
		sug *model.Suggestion
		err error
	)
	if numericID, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil {
		sug, err = suggestions.GetByID(ctx, numericID)
	} else {
		sug, err = suggestions.GetByShortID(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSuggestionNotFound
		}
		return nil, fmt.Errorf("fetching suggestion: %w", err)
	}
	return sug, nil
}

func getEntity(ctx context.Context, sp StoreProvider, code string) (*model.Entity, error) {
	entity, err := sp.Entities().GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("fetching entity %s: %w", code, err)
	}
	return entity, nil
}

// bindOnce creates the binding unless the record already carries one. The
// uniqueness constraint catches the race two concurrent reviews would open;
// the transaction retry then lands on the bound branch.
func bindOnce(ctx context.Context, sp StoreProvider, recordID int64, b *model.RecordBinding) error {
	bound, err := sp.Bindings().ExistsForRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("checking bindings: %w", err)
	}
	if bound {
		slog.InfoContext(ctx, "record already bound, keeping existing binding",
			"record_id", recordID,
			"entity_code", b.EntityCode)
		return nil
	}
	if err := sp.Bindings().Create(ctx, b); err != nil {
		return fmt.Errorf("creating binding: %w", err)
	}
	return nil
}

func shortlistEntry(sug *model.Suggestion, code string) *model.ProposedBinding {
	for i := range sug.Shortlist {
		if strings.EqualFold(sug.Shortlist[i].EntityCode, code) {
			return &sug.Shortlist[i]
		}
	}
	return nil
}

func eventDetail(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
