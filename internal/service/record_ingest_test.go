package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/service"
	"anchorline.app/resolver/internal/store"
)

var _ = Describe("RecordIngestService", func() {
	var (
		ctx      context.Context
		provider *mockStoreProvider
		txRunner *mockTxRunner
		producer *mockQueueProducer
		svc      service.RecordIngestService
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		provider = newMockStoreProvider()
		txRunner = &mockTxRunner{provider: provider}
		producer = &mockQueueProducer{}
		svc = service.NewRecordIngestService(provider, txRunner, producer, nil)
	})

	Describe("Ingest", func() {
		It("stores the record as pending and enqueues a resolution task", func() {
			result, err := svc.Ingest(ctx, service.RecordIngestParams{
				SenderAddress: "dana@clientco.com",
				Subject:       "Lakeside pavilion schedule",
				Body:          "Updated schedule attached.",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Enqueued).To(BeTrue())

			rec := provider.records.capturedRecord
			Expect(rec).NotTo(BeNil())
			Expect(rec.ID).NotTo(BeZero())
			Expect(rec.ShortID).To(HavePrefix("rec_"))
			Expect(rec.ResolutionStatus).To(Equal(model.RecordStatusPending))
			Expect(rec.SourceKind).To(Equal(model.SourceKindCorrespondence))
			Expect(rec.OccurredAt).NotTo(BeZero())

			Expect(producer.enqueuedTasks).To(HaveLen(1))
			Expect(producer.enqueuedTasks[0].TaskType).To(Equal(queue.TaskTypeResolveRecord))
			Expect(producer.enqueuedTasks[0].RecordID).To(Equal(rec.ID))
			Expect(producer.enqueuedTasks[0].Attempt).To(Equal(1))
		})

		It("keeps a caller-provided occurred_at and source kind", func() {
			occurred := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)

			_, err := svc.Ingest(ctx, service.RecordIngestParams{
				SenderAddress: "dana@clientco.com",
				Subject:       "Walkthrough notes",
				SourceKind:    string(model.SourceKindTranscript),
				OccurredAt:    occurred,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.records.capturedRecord.SourceKind).To(Equal(model.SourceKindTranscript))
			Expect(provider.records.capturedRecord.OccurredAt).To(Equal(occurred))
		})

		It("accepts a record with a body and no subject", func() {
			_, err := svc.Ingest(ctx, service.RecordIngestParams{
				SenderAddress: "dana@clientco.com",
				Body:          "Voice memo transcript.",
			})

			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a record without a sender address", func() {
			_, err := svc.Ingest(ctx, service.RecordIngestParams{
				Subject: "No sender",
			})

			Expect(err).To(MatchError(service.ErrInvalidRecord))
			Expect(provider.records.capturedRecord).To(BeNil())
		})

		It("rejects a record with neither subject nor body", func() {
			_, err := svc.Ingest(ctx, service.RecordIngestParams{
				SenderAddress: "dana@clientco.com",
				Subject:       "   ",
			})

			Expect(err).To(MatchError(service.ErrInvalidRecord))
		})

		It("rejects an unknown source kind", func() {
			_, err := svc.Ingest(ctx, service.RecordIngestParams{
				SenderAddress: "dana@clientco.com",
				Subject:       "hello",
				SourceKind:    "carrier_pigeon",
			})

			Expect(err).To(MatchError(service.ErrInvalidRecord))
		})

		It("keeps the record when the enqueue fails", func() {
			producer.enqueueFn = func(ctx context.Context, task queue.Task) error {
				return errors.New("redis down")
			}

			result, err := svc.Ingest(ctx, service.RecordIngestParams{
				SenderAddress: "dana@clientco.com",
				Subject:       "Lakeside sync",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Enqueued).To(BeFalse())
			Expect(provider.records.capturedRecord).NotTo(BeNil())
		})
	})

	Describe("Get", func() {
		BeforeEach(func() {
			provider.records.getByIDFn = func(ctx context.Context, rid int64) (*model.Record, error) {
				if rid == 1001 {
					return &model.Record{ID: 1001, ShortID: "rec_9ix", ResolutionStatus: model.RecordStatusLinked}, nil
				}
				return nil, store.ErrNotFound
			}
			provider.bindings.listByRecordFn = func(ctx context.Context, recordID int64) ([]model.RecordBinding, error) {
				return []model.RecordBinding{{RecordID: recordID, EntityCode: "PRJ-104"}}, nil
			}
			provider.suggestions.listByRecordFn = func(ctx context.Context, recordID int64) ([]model.Suggestion, error) {
				return []model.Suggestion{{RecordID: recordID, Status: model.SuggestionStatusApplied}}, nil
			}
		})

		It("returns the record with its bindings and suggestions", func() {
			detail, err := svc.Get(ctx, "1001")

			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Record.ID).To(Equal(int64(1001)))
			Expect(detail.Bindings).To(HaveLen(1))
			Expect(detail.Bindings[0].EntityCode).To(Equal("PRJ-104"))
			Expect(detail.Suggestions).To(HaveLen(1))
		})

		It("resolves short references", func() {
			provider.records.getByShortIDFn = func(ctx context.Context, shortID string) (*model.Record, error) {
				if shortID == "rec_9ix" {
					return &model.Record{ID: 1001, ShortID: shortID}, nil
				}
				return nil, store.ErrNotFound
			}

			detail, err := svc.Get(ctx, "rec_9ix")

			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Record.ID).To(Equal(int64(1001)))
		})

		It("returns ErrRecordNotFound for an unknown reference", func() {
			_, err := svc.Get(ctx, "404404")

			Expect(err).To(MatchError(service.ErrRecordNotFound))
		})
	})
})
