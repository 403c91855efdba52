package middleware_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"anchorline.app/resolver/internal/http/middleware"
)

var _ = Describe("RequireAdminAPIKey", func() {
	newRouter := func(key string) *gin.Engine {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(middleware.RequireAdminAPIKey(key))
		router.GET("/guarded", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return router
	}

	serve := func(router *gin.Engine, configure func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if configure != nil {
			configure(req)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("admits the key via X-Admin-API-Key", func() {
		router := newRouter("sekrit")

		w := serve(router, func(req *http.Request) {
			req.Header.Set("X-Admin-API-Key", "sekrit")
		})

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("admits the key as a bearer token", func() {
		router := newRouter("sekrit")

		w := serve(router, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer sekrit")
		})

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("rejects a wrong key", func() {
		router := newRouter("sekrit")

		w := serve(router, func(req *http.Request) {
			req.Header.Set("X-Admin-API-Key", "guess")
		})

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects a missing key", func() {
		router := newRouter("sekrit")

		w := serve(router, nil)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("invalid or missing"))
	})

	It("locks the surface down when no key is configured", func() {
		router := newRouter("")

		w := serve(router, func(req *http.Request) {
			req.Header.Set("X-Admin-API-Key", "anything")
		})

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
