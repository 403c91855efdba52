package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/common/logger"
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/store"
)

func (w *Worker) processWithSnapshots(ctx context.Context, msg queue.Message, snaps *snapshots) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "resolver.worker",
		RecordID:  logger.Ptr(msg.RecordID),
		MessageID: logger.Ptr(msg.ID),
		TaskType:  logger.Ptr(string(msg.TaskType)),
	})

	rec, err := w.stores.Records().GetByID(ctx, msg.RecordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "record no longer exists, dropping task")
			return w.consumer.Ack(ctx, msg)
		}
		return fmt.Errorf("fetching record: %w", err)
	}

	if rec.ResolutionStatus != model.RecordStatusPending && rec.ResolutionStatus != model.RecordStatusUnresolved {
		slog.InfoContext(ctx, "record already handled, dropping task",
			"status", rec.ResolutionStatus)
		if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
			slog.WarnContext(ctx, "failed to ack message", "error", ackErr)
		}
		return nil
	}

	// Scoring runs against the batch snapshot, outside any transaction.
	// Only the decision's writes need transactional guarantees.
	res := w.resolver.Resolve(ctx, rec, snaps.catalog, snaps.patterns)

	txErr := w.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		return w.apply(ctx, sp, rec, res)
	})
	if txErr != nil {
		if store.IsUniqueViolation(txErr) {
			// Duplicate delivery raced another consumer; the outcome is
			// already persisted, so the message is done.
			slog.InfoContext(ctx, "resolution already applied, dropping task")
			return w.consumer.Ack(ctx, msg)
		}
		return fmt.Errorf("applying resolution: %w", txErr)
	}

	if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
		// The decision is durable; a redelivery gets dropped by the
		// status check above.
		slog.WarnContext(ctx, "failed to ack message", "error", ackErr)
	}
	return nil
}

// apply persists one resolution inside a transaction. The status re-check
// guards against a review or a concurrent worker having moved the record
// between scoring and commit.
func (w *Worker) apply(ctx context.Context, sp StoreProvider, rec *model.Record, res domain.Resolution) error {
	current, err := sp.Records().GetByID(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("re-fetching record: %w", err)
	}
	if current.ResolutionStatus != model.RecordStatusPending && current.ResolutionStatus != model.RecordStatusUnresolved {
		slog.InfoContext(ctx, "record moved since scoring, discarding resolution",
			"status", current.ResolutionStatus)
		return nil
	}

	switch res.Decision {
	case domain.DecisionAutoLink:
		return w.applyAutoLink(ctx, sp, rec, res)
	case domain.DecisionSuggest:
		return w.applySuggestion(ctx, sp, rec, res)
	case domain.DecisionUnresolved:
		return w.applyUnresolved(ctx, sp, rec, res)
	default:
		return fmt.Errorf("unknown decision %q for record %d", res.Decision, rec.ID)
	}
}

func (w *Worker) applyAutoLink(ctx context.Context, sp StoreProvider, rec *model.Record, res domain.Resolution) error {
	winner := res.Winner
	if winner == nil {
		return fmt.Errorf("auto_link decision without winner for record %d", rec.ID)
	}

	source := model.BindingSourceAuto
	if winner.ViaRedirect {
		source = model.BindingSourceRedirect
	}
	binding := &model.RecordBinding{
		ID:         id.New(),
		RecordID:   rec.ID,
		EntityCode: winner.EntityCode,
		Source:     source,
		Method:     winner.ChosenMethod,
		Score:      winner.Score,
	}
	if err := sp.Bindings().Create(ctx, binding); err != nil {
		return fmt.Errorf("creating binding: %w", err)
	}

	if err := sp.Records().SetResolutionStatus(ctx, rec.ID, model.RecordStatusAutoLinked); err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}

	if len(winner.PatternIDs) > 0 {
		if err := sp.Patterns().MarkUsed(ctx, winner.PatternIDs, time.Now().UTC()); err != nil {
			return fmt.Errorf("stamping pattern use: %w", err)
		}
	}

	if err := sp.Events().Append(ctx, &model.ResolutionEvent{
		ID:       id.New(),
		RecordID: &rec.ID,
		Kind:     model.ResolutionEventAutoLinked,
		Detail: eventDetail(map[string]any{
			"entity_code":  winner.EntityCode,
			"method":       winner.ChosenMethod,
			"score":        winner.Score,
			"via_redirect": winner.ViaRedirect,
		}),
	}); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	slog.InfoContext(ctx, "record auto-linked",
		"entity_code", winner.EntityCode,
		"method", winner.ChosenMethod,
		"score", winner.Score,
		"via_redirect", winner.ViaRedirect)
	return nil
}

func (w *Worker) applySuggestion(ctx context.Context, sp StoreProvider, rec *model.Record, res domain.Resolution) error {
	if len(res.Shortlist) == 0 {
		return fmt.Errorf("suggest decision with empty shortlist for record %d", rec.ID)
	}
	top := res.Shortlist[0]

	// A resweep or duplicate delivery can re-resolve a record that already
	// has this suggestion waiting. One open question per (record, entity)
	// at a time.
	pending, err := sp.Suggestions().HasPendingForRecord(ctx, rec.ID, top.EntityCode)
	if err != nil {
		return fmt.Errorf("checking pending suggestions: %w", err)
	}
	if pending {
		slog.InfoContext(ctx, "pending suggestion already exists, skipping",
			"entity_code", top.EntityCode)
		return nil
	}

	shortlist := make([]model.ProposedBinding, 0, len(res.Shortlist))
	patternIDs := make([]int64, 0, len(res.Shortlist))
	seen := make(map[int64]struct{})
	for _, entry := range res.Shortlist {
		shortlist = append(shortlist, model.ProposedBinding{
			EntityCode: entry.EntityCode,
			EntityName: entry.EntityName,
			Score:      entry.Score,
			Methods:    entry.Methods,
			Evidence:   entry.Evidence,
		})
		for _, pid := range entry.PatternIDs {
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			patternIDs = append(patternIDs, pid)
		}
	}

	suggestionID := id.New()
	sug := &model.Suggestion{
		ID:            suggestionID,
		ShortID:       id.Ref("sug", suggestionID),
		RecordID:      rec.ID,
		TopEntityCode: top.EntityCode,
		ChosenMethod:  top.ChosenMethod,
		Shortlist:     shortlist,
		Status:        model.SuggestionStatusPending,
	}
	if err := sp.Suggestions().Create(ctx, sug); err != nil {
		return fmt.Errorf("creating suggestion: %w", err)
	}

	if err := sp.Records().SetResolutionStatus(ctx, rec.ID, model.RecordStatusSuggested); err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}

	if len(patternIDs) > 0 {
		if err := sp.Patterns().MarkUsed(ctx, patternIDs, time.Now().UTC()); err != nil {
			return fmt.Errorf("stamping pattern use: %w", err)
		}
	}

	if err := sp.Events().Append(ctx, &model.ResolutionEvent{
		ID:       id.New(),
		RecordID: &rec.ID,
		Kind:     model.ResolutionEventSuggestionCreated,
		Detail: eventDetail(map[string]any{
			"suggestion_id":   sug.ID,
			"top_entity_code": top.EntityCode,
			"score":           top.Score,
			"shortlist_size":  len(shortlist),
		}),
	}); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	slog.InfoContext(ctx, "suggestion created",
		"suggestion_id", sug.ID,
		"short_id", sug.ShortID,
		"top_entity_code", top.EntityCode,
		"score", top.Score,
		"shortlist_size", len(shortlist))
	return nil
}

func (w *Worker) applyUnresolved(ctx context.Context, sp StoreProvider, rec *model.Record, res domain.Resolution) error {
	if err := sp.Records().SetResolutionStatus(ctx, rec.ID, model.RecordStatusUnresolved); err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}

	if err := sp.Events().Append(ctx, &model.ResolutionEvent{
		ID:       id.New(),
		RecordID: &rec.ID,
		Kind:     model.ResolutionEventMarkedUnresolved,
		Detail: eventDetail(map[string]any{
			"candidates": len(res.Shortlist),
		}),
	}); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	slog.InfoContext(ctx, "record marked unresolved",
		"candidates", len(res.Shortlist))
	return nil
}

func eventDetail(fields map[string]any) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return raw
}
