package apierror_test

import (
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/endpoint-gateway/internal/apierror"
)

var _ = Describe("Error", func() {
	Describe("WriteJSON", func() {
		It("should write the not found body", func() {
			w := httptest.NewRecorder()
			apierror.ErrNotFound.WriteJSON(w)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(w.Body.String()).To(MatchJSON(`{"error_code":404,"message":"HTTP 404 Not Found"}`))
		})

		It("should include details when set", func() {
			w := httptest.NewRecorder()
			apierror.ErrBadRequest.WithDetails("body is not valid JSON").WriteJSON(w)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(MatchJSON(`{"error_code":400,"message":"HTTP 400 Bad Request","details":"body is not valid JSON"}`))
		})

		It("should write a distinct HTTP status when set", func() {
			e := apierror.New(1001, "custom")
			e.Status = http.StatusConflict

			w := httptest.NewRecorder()
			e.WriteJSON(w)
			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(w.Body.String()).To(MatchJSON(`{"error_code":1001,"message":"custom"}`))
		})
	})

	Describe("WithDetails", func() {
		It("should not mutate the shared error", func() {
			_ = apierror.ErrNotFound.WithDetails("x")
			Expect(apierror.ErrNotFound.Details).To(BeEmpty())
		})
	})

	Describe("Wrap", func() {
		It("should keep the underlying error", func() {
			cause := errors.New("dial tcp: refused")
			e := apierror.Wrap(cause, http.StatusBadGateway, apierror.Message(http.StatusBadGateway))
			Expect(errors.Is(e, cause)).To(BeTrue())
			Expect(e.Error()).To(ContainSubstring("refused"))
		})
	})

	Describe("Message", func() {
		It("should format standard and custom statuses", func() {
			Expect(apierror.Message(http.StatusGatewayTimeout)).To(Equal("HTTP 504 Gateway Timeout"))
			Expect(apierror.Message(apierror.StatusClientClosedRequest)).To(Equal("HTTP 499 Client Closed Request"))
		})
	})
})
