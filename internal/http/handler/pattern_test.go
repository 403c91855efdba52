package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"anchorline.app/resolver/internal/http/handler"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/service"
)

var _ = Describe("PatternHandler", func() {
	var (
		router *gin.Engine
		svc    *mockStatsService
	)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockStatsService{}
		h := handler.NewPatternHandler(svc)
		router.GET("/patterns", h.List)
		router.GET("/patterns/stats", h.Stats)
	})

	Describe("Stats", func() {
		It("returns aggregated pattern stats", func() {
			svc.statsFn = func(_ context.Context, topEntities int32) (*model.PatternStats, error) {
				Expect(topEntities).To(Equal(int32(5)))
				return &model.PatternStats{
					CountsByType: map[model.PatternType]int{
						model.PatternTypeSender: 12,
						model.PatternTypeDomain: 4,
					},
					AvgConfidenceByType: map[model.PatternType]float64{
						model.PatternTypeSender: 0.82,
					},
					TopEntities: []model.EntityPatternCount{
						{EntityCode: "PRJ-104", PatternCount: 9},
					},
				}, nil
			}

			w := get("/patterns/stats?top=5")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"sender":12`))
			Expect(w.Body.String()).To(ContainSubstring(`"entity_code":"PRJ-104"`))
		})

		It("passes zero when top is absent so the service picks its default", func() {
			var captured int32 = -1
			svc.statsFn = func(_ context.Context, topEntities int32) (*model.PatternStats, error) {
				captured = topEntities
				return &model.PatternStats{}, nil
			}

			w := get("/patterns/stats")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(captured).To(Equal(int32(0)))
		})

		It("rejects a non-numeric top", func() {
			w := get("/patterns/stats?top=lots")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("positive integer"))
		})

		It("rejects a zero top", func() {
			w := get("/patterns/stats?top=0")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the service fails", func() {
			svc.statsFn = func(_ context.Context, _ int32) (*model.PatternStats, error) {
				return nil, errors.New("db down")
			}

			w := get("/patterns/stats")

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("List", func() {
		It("returns the patterns matching a key", func() {
			svc.patternsForKeyFn = func(_ context.Context, key string) ([]model.LearnedPattern, error) {
				Expect(key).To(Equal("dana@clientco.com"))
				return []model.LearnedPattern{
					{Type: model.PatternTypeSender, Key: "dana@clientco.com", TargetEntityCode: "PRJ-104", Confidence: 0.9, Active: true},
				}, nil
			}

			w := get("/patterns?key=dana@clientco.com")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"count":1`))
			Expect(w.Body.String()).To(ContainSubstring(`"target_entity_code":"PRJ-104"`))
		})

		It("rejects an invalid query", func() {
			svc.patternsForKeyFn = func(_ context.Context, _ string) ([]model.LearnedPattern, error) {
				return nil, service.ErrInvalidPatternQuery
			}

			w := get("/patterns")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the service fails", func() {
			svc.patternsForKeyFn = func(_ context.Context, _ string) ([]model.LearnedPattern, error) {
				return nil, errors.New("db down")
			}

			w := get("/patterns?key=dana@clientco.com")

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
