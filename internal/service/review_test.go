package service_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/core/config"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/service"
	"anchorline.app/resolver/internal/store"
)

func resolverTestConfig() config.ResolverConfig {
	return config.ResolverConfig{
		AutoLinkThreshold:        0.90,
		ShortlistFloor:           0.30,
		ShortlistSize:            3,
		ConfidenceFloor:          0.30,
		ConfidenceCeiling:        0.98,
		ApproveDelta:             0.05,
		PenaltyDelta:             0.15,
		SenderInitialConfidence:  0.80,
		DomainInitialConfidence:  0.70,
		KeywordInitialConfidence: 0.70,
		KeywordConfidenceCeiling: 0.85,
		SkipConfidence:           0.90,
		FreeMailDomains:          []string{"gmail.com"},
		StaffDomains:             []string{"ourfirm.com"},
	}
}

var _ = Describe("ReviewService", func() {
	var (
		ctx      context.Context
		provider *mockStoreProvider
		txRunner *mockTxRunner
		svc      service.ReviewService
	)

	newPendingSuggestion := func() *model.Suggestion {
		return &model.Suggestion{
			ID:            5001,
			ShortID:       "sug_3vt",
			RecordID:      1001,
			TopEntityCode: "PRJ-104",
			ChosenMethod:  model.MethodDomainPattern,
			Shortlist: []model.ProposedBinding{
				{
					EntityCode: "PRJ-104",
					EntityName: "Lakeside Pavilion",
					Score:      0.70,
					Methods:    []model.Method{model.MethodDomainPattern},
				},
				{
					EntityCode: "PRJ-209",
					EntityName: "Harborview Annex",
					Score:      0.45,
					Methods:    []model.Method{model.MethodDistinctiveKeyword},
				},
			},
			Status: model.SuggestionStatusPending,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		provider = newMockStoreProvider()
		txRunner = &mockTxRunner{provider: provider}

		provider.suggestions.getByIDFn = func(ctx context.Context, sid int64) (*model.Suggestion, error) {
			if sid == 5001 {
				return newPendingSuggestion(), nil
			}
			return nil, store.ErrNotFound
		}
		provider.records.getByIDFn = func(ctx context.Context, rid int64) (*model.Record, error) {
			if rid == 1001 {
				return &model.Record{
					ID:               1001,
					ShortID:          "rec_9ix",
					SenderAddress:    "dana@clientco.com",
					Subject:          "Lakeside sync",
					Body:             "Agenda attached.",
					ResolutionStatus: model.RecordStatusSuggested,
				}, nil
			}
			return nil, store.ErrNotFound
		}
		provider.entities.getByCodeFn = func(ctx context.Context, code string) (*model.Entity, error) {
			switch code {
			case "PRJ-104":
				return &model.Entity{ID: 1, Code: "PRJ-104", Name: "Lakeside Pavilion", Active: true}, nil
			case "PRJ-209":
				return &model.Entity{ID: 2, Code: "PRJ-209", Name: "Harborview Annex", Active: true}, nil
			case "NEW-002":
				return &model.Entity{ID: 3, Code: "NEW-002", Name: "Grandview Lobby", Active: true}, nil
			}
			return nil, store.ErrNotFound
		}

		svc = service.NewReviewService(provider, txRunner, resolverTestConfig())
	})

	Describe("Approve", func() {
		It("learns sender, domain, and keyword patterns at their initial confidences", func() {
			result, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsCreated).To(Equal(3))
			Expect(result.Counts.PatternsUpdated).To(Equal(0))

			senders := provider.patterns.upsertsOfType(model.PatternTypeSender)
			Expect(senders).To(HaveLen(1))
			Expect(senders[0].Key).To(Equal("dana@clientco.com"))
			Expect(senders[0].TargetEntityCode).To(Equal("PRJ-104"))
			Expect(senders[0].Confidence).To(BeNumerically("~", 0.80, 1e-9))
			Expect(senders[0].TimesCorrect).To(Equal(1))
			Expect(senders[0].Active).To(BeTrue())
			Expect(senders[0].CreatedFromRecordID).NotTo(BeNil())
			Expect(*senders[0].CreatedFromRecordID).To(Equal(int64(1001)))

			domains := provider.patterns.upsertsOfType(model.PatternTypeDomain)
			Expect(domains).To(HaveLen(1))
			Expect(domains[0].Key).To(Equal("clientco.com"))
			Expect(domains[0].Confidence).To(BeNumerically("~", 0.70, 1e-9))

			keywords := provider.patterns.upsertsOfType(model.PatternTypeKeyword)
			Expect(keywords).To(HaveLen(1))
			Expect(keywords[0].Key).To(Equal("lakeside"))
			Expect(keywords[0].Confidence).To(BeNumerically("~", 0.70, 1e-9))
		})

		It("binds the record, marks it linked, and applies the suggestion", func() {
			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.suggestions.reviewedWith).To(Equal([]model.SuggestionStatus{model.SuggestionStatusApproved}))
			Expect(provider.suggestions.appliedIDs).To(Equal([]int64{5001}))

			Expect(provider.bindings.capturedBinding).NotTo(BeNil())
			Expect(provider.bindings.capturedBinding.RecordID).To(Equal(int64(1001)))
			Expect(provider.bindings.capturedBinding.EntityCode).To(Equal("PRJ-104"))
			Expect(provider.bindings.capturedBinding.Source).To(Equal(model.BindingSourceReview))
			Expect(provider.bindings.capturedBinding.Method).To(Equal(model.MethodDomainPattern))
			Expect(provider.bindings.capturedBinding.Score).To(BeNumerically("~", 0.70, 1e-9))

			Expect(provider.records.capturedStatusUpdates).To(Equal([]model.RecordStatus{model.RecordStatusLinked}))

			Expect(provider.events.capturedEvents).To(HaveLen(1))
			Expect(provider.events.capturedEvents[0].Kind).To(Equal(model.ResolutionEventSuggestionApproved))
			Expect(provider.events.capturedEvents[0].RecordID).NotTo(BeNil())
			Expect(*provider.events.capturedEvents[0].RecordID).To(Equal(int64(1001)))
		})

		It("reinforces an existing sender pattern by the approve delta", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeSender && key == "dana@clientco.com" {
					return []model.LearnedPattern{
						{ID: 71, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.80, TimesCorrect: 1, Active: true},
					}, nil
				}
				return nil, nil
			}

			result, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsUpdated).To(Equal(1))
			Expect(result.Counts.PatternsCreated).To(Equal(2))

			senders := provider.patterns.upsertsOfType(model.PatternTypeSender)
			Expect(senders).To(HaveLen(1))
			Expect(senders[0].ID).To(Equal(int64(71)))
			Expect(senders[0].Confidence).To(BeNumerically("~", 0.85, 1e-9))
			Expect(senders[0].TimesCorrect).To(Equal(2))
		})

		It("caps sender confidence at the global ceiling", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeSender {
					return []model.LearnedPattern{
						{ID: 71, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.96, TimesCorrect: 9, Active: true},
					}, nil
				}
				return nil, nil
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			senders := provider.patterns.upsertsOfType(model.PatternTypeSender)
			Expect(senders[0].Confidence).To(BeNumerically("~", 0.98, 1e-9))
		})

		It("never grows a domain pattern past its initial confidence", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeDomain && key == "clientco.com" {
					return []model.LearnedPattern{
						{ID: 72, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.70, TimesCorrect: 4, Active: true},
					}, nil
				}
				return nil, nil
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			domains := provider.patterns.upsertsOfType(model.PatternTypeDomain)
			Expect(domains).To(HaveLen(1))
			Expect(domains[0].Confidence).To(BeNumerically("~", 0.70, 1e-9))
			Expect(domains[0].TimesCorrect).To(Equal(5))
		})

		It("reactivates a deactivated pattern the reviewer vouches for again", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeSender {
					return []model.LearnedPattern{
						{ID: 71, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.30, TimesCorrect: 2, Active: false},
					}, nil
				}
				return nil, nil
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			senders := provider.patterns.upsertsOfType(model.PatternTypeSender)
			Expect(senders[0].Active).To(BeTrue())
			Expect(senders[0].Confidence).To(BeNumerically("~", 0.35, 1e-9))
		})

		It("accepts an alternate entity from the shortlist and carries its evidence", func() {
			result, err := svc.Approve(ctx, "5001", "PRJ-209", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsCreated).To(BeNumerically(">=", 2))

			Expect(provider.bindings.capturedBinding.EntityCode).To(Equal("PRJ-209"))
			Expect(provider.bindings.capturedBinding.Method).To(Equal(model.MethodDistinctiveKeyword))
			Expect(provider.bindings.capturedBinding.Score).To(BeNumerically("~", 0.45, 1e-9))

			senders := provider.patterns.upsertsOfType(model.PatternTypeSender)
			Expect(senders[0].TargetEntityCode).To(Equal("PRJ-209"))
		})

		It("rejects an entity that is not on the shortlist", func() {
			_, err := svc.Approve(ctx, "5001", "NEW-002", nil)

			Expect(err).To(MatchError(service.ErrNotInShortlist))
			Expect(provider.suggestions.reviewedWith).To(BeEmpty())
			Expect(provider.patterns.capturedUpserts).To(BeEmpty())
		})

		It("skips sender and domain learning for a malformed sender address", func() {
			provider.records.getByIDFn = func(ctx context.Context, rid int64) (*model.Record, error) {
				return &model.Record{
					ID:            1001,
					SenderAddress: "not-an-address",
					Subject:       "Lakeside sync",
				}, nil
			}

			result, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.patterns.upsertsOfType(model.PatternTypeSender)).To(BeEmpty())
			Expect(provider.patterns.upsertsOfType(model.PatternTypeDomain)).To(BeEmpty())
			// Keyword learning does not depend on the sender.
			Expect(provider.patterns.upsertsOfType(model.PatternTypeKeyword)).To(HaveLen(1))
			Expect(result.Counts.PatternsCreated).To(Equal(1))
		})

		It("does not double-bind a record that already carries a binding", func() {
			provider.bindings.existsForRecordFn = func(ctx context.Context, recordID int64) (bool, error) {
				return true, nil
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.bindings.capturedBinding).To(BeNil())
			Expect(provider.records.capturedStatusUpdates).To(Equal([]model.RecordStatus{model.RecordStatusLinked}))
		})

		It("returns ErrAlreadyReviewed for a settled suggestion", func() {
			provider.suggestions.getByIDFn = func(ctx context.Context, sid int64) (*model.Suggestion, error) {
				sug := newPendingSuggestion()
				sug.Status = model.SuggestionStatusApplied
				return sug, nil
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).To(MatchError(service.ErrAlreadyReviewed))
			Expect(provider.patterns.capturedUpserts).To(BeEmpty())
		})

		It("returns ErrSuggestionNotFound for an unknown reference", func() {
			_, err := svc.Approve(ctx, "9999", "", nil)

			Expect(err).To(MatchError(service.ErrSuggestionNotFound))
		})

		It("resolves short references through the short ID lookup", func() {
			provider.suggestions.getByShortIDFn = func(ctx context.Context, shortID string) (*model.Suggestion, error) {
				if shortID == "sug_3vt" {
					return newPendingSuggestion(), nil
				}
				return nil, store.ErrNotFound
			}

			_, err := svc.Approve(ctx, "sug_3vt", "", nil)

			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Reject", func() {
		It("writes a domain skip pattern and dismisses the record", func() {
			result, err := svc.Reject(ctx, "5001", "vendor newsletter")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsCreated).To(Equal(1))

			skips := provider.patterns.upsertsOfType(model.PatternTypeDomainSkip)
			Expect(skips).To(HaveLen(1))
			Expect(skips[0].Key).To(Equal("clientco.com"))
			Expect(skips[0].TargetEntityCode).To(BeEmpty())
			Expect(skips[0].Confidence).To(BeNumerically("~", 0.90, 1e-9))

			Expect(provider.suggestions.reviewedWith).To(Equal([]model.SuggestionStatus{model.SuggestionStatusRejected}))
			Expect(provider.records.capturedStatusUpdates).To(Equal([]model.RecordStatus{model.RecordStatusDismissed}))
			Expect(provider.events.capturedEvents).To(HaveLen(1))
			Expect(provider.events.capturedEvents[0].Kind).To(Equal(model.ResolutionEventSuggestionRejected))
		})

		It("refreshes an existing skip pattern without exceeding the skip confidence", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeDomainSkip && key == "clientco.com" {
					return []model.LearnedPattern{
						{ID: 80, Type: typ, Key: key, Confidence: 0.90, TimesCorrect: 3, Active: true},
					}, nil
				}
				return nil, nil
			}

			result, err := svc.Reject(ctx, "5001", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsUpdated).To(Equal(1))
			skips := provider.patterns.upsertsOfType(model.PatternTypeDomainSkip)
			Expect(skips[0].Confidence).To(BeNumerically("~", 0.90, 1e-9))
			Expect(skips[0].TimesCorrect).To(Equal(4))
		})

		It("writes no skip pattern for a free-mail sender", func() {
			provider.records.getByIDFn = func(ctx context.Context, rid int64) (*model.Record, error) {
				return &model.Record{ID: 1001, SenderAddress: "someone@gmail.com", Subject: "hello"}, nil
			}

			result, err := svc.Reject(ctx, "5001", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsCreated).To(Equal(0))
			Expect(provider.patterns.capturedUpserts).To(BeEmpty())
			Expect(provider.records.capturedStatusUpdates).To(Equal([]model.RecordStatus{model.RecordStatusDismissed}))
		})

		It("keeps the record linked when another review already bound it", func() {
			provider.bindings.existsForRecordFn = func(ctx context.Context, recordID int64) (bool, error) {
				return true, nil
			}

			_, err := svc.Reject(ctx, "5001", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.records.capturedStatusUpdates).To(BeEmpty())
		})
	})

	Describe("Correct", func() {
		It("accepts an entity outside the shortlist and links the record", func() {
			result, err := svc.Correct(ctx, "5001", "NEW-002", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.suggestions.reviewedWith).To(Equal([]model.SuggestionStatus{model.SuggestionStatusCorrected}))

			Expect(provider.bindings.capturedBinding.EntityCode).To(Equal("NEW-002"))
			Expect(provider.bindings.capturedBinding.Source).To(Equal(model.BindingSourceReview))
			// Off-list corrections carry no engine evidence.
			Expect(provider.bindings.capturedBinding.Method).To(BeEmpty())
			Expect(provider.bindings.capturedBinding.Score).To(BeZero())

			Expect(provider.records.capturedStatusUpdates).To(Equal([]model.RecordStatus{model.RecordStatusLinked}))
			Expect(result.Counts.PatternsCreated).To(BeNumerically(">=", 2))

			senders := provider.patterns.upsertsOfType(model.PatternTypeSender)
			Expect(senders).To(HaveLen(1))
			Expect(senders[0].TargetEntityCode).To(Equal("NEW-002"))
			Expect(senders[0].Confidence).To(BeNumerically("~", 0.80, 1e-9))
		})

		It("penalizes only the sender patterns that pointed at the wrong entity", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeSender && key == "dana@clientco.com" {
					return []model.LearnedPattern{
						{ID: 71, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.60, TimesCorrect: 2, Active: true},
						{ID: 72, Type: typ, Key: key, TargetEntityCode: "PRJ-209", Confidence: 0.55, TimesCorrect: 1, Active: true},
					}, nil
				}
				return nil, nil
			}

			result, err := svc.Correct(ctx, "5001", "NEW-002", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Counts.PatternsPenalized).To(Equal(1))

			Expect(provider.patterns.capturedPenalties).To(HaveLen(1))
			Expect(provider.patterns.capturedPenalties[0].id).To(Equal(int64(71)))
			Expect(provider.patterns.capturedPenalties[0].confidence).To(BeNumerically("~", 0.45, 1e-9))
			Expect(provider.patterns.capturedPenalties[0].note).To(ContainSubstring("NEW-002"))
		})

		It("clamps the penalty at the confidence floor", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeSender {
					return []model.LearnedPattern{
						{ID: 71, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.40, TimesCorrect: 1, Active: true},
					}, nil
				}
				return nil, nil
			}

			_, err := svc.Correct(ctx, "5001", "NEW-002", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.patterns.capturedPenalties).To(HaveLen(1))
			Expect(provider.patterns.capturedPenalties[0].confidence).To(BeNumerically("~", 0.30, 1e-9))
		})

		It("does not penalize when the correction confirms the suggested entity", func() {
			provider.patterns.findByKeyFn = func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
				if typ == model.PatternTypeSender {
					return []model.LearnedPattern{
						{ID: 71, Type: typ, Key: key, TargetEntityCode: "PRJ-104", Confidence: 0.60, TimesCorrect: 2, Active: true},
					}, nil
				}
				return nil, nil
			}

			result, err := svc.Correct(ctx, "5001", "PRJ-104", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.patterns.capturedPenalties).To(BeEmpty())
			Expect(result.Counts.PatternsPenalized).To(Equal(0))
			// The pattern was reinforced instead.
			Expect(result.Counts.PatternsUpdated).To(BeNumerically(">=", 1))
		})

		It("requires an entity code", func() {
			_, err := svc.Correct(ctx, "5001", "  ", nil)

			Expect(err).To(MatchError(service.ErrEntityRequired))
			Expect(txRunner.txCalls).To(BeZero())
		})

		It("returns ErrEntityNotFound for an unknown entity", func() {
			_, err := svc.Correct(ctx, "5001", "ZZZ-999", nil)

			Expect(err).To(MatchError(service.ErrEntityNotFound))
			Expect(provider.patterns.capturedUpserts).To(BeEmpty())
		})
	})

	Describe("conflict handling", func() {
		It("retries once on a unique violation and succeeds", func() {
			conflict := &pgconn.PgError{Code: "23505"}
			calls := 0
			txRunner.withTxFn = func(ctx context.Context, fn func(sp service.StoreProvider) error) error {
				calls++
				if calls == 1 {
					return conflict
				}
				return fn(provider)
			}

			result, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(2))
			Expect(result.Counts.PatternsCreated).To(Equal(3))
		})

		It("returns ErrConflict when the retry also conflicts", func() {
			txRunner.withTxFn = func(ctx context.Context, fn func(sp service.StoreProvider) error) error {
				return &pgconn.PgError{Code: "40001"}
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).To(MatchError(service.ErrConflict))
		})

		It("does not retry non-conflict errors", func() {
			boom := errors.New("connection lost")
			calls := 0
			txRunner.withTxFn = func(ctx context.Context, fn func(sp service.StoreProvider) error) error {
				calls++
				return boom
			}

			_, err := svc.Approve(ctx, "5001", "", nil)

			Expect(err).To(MatchError(boom))
			Expect(calls).To(Equal(1))
		})
	})
})
