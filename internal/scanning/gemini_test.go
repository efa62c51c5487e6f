package scanning

import (
	"context"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Gemini", func() {
	var (
		server      *ghttp.Server
		gemini      *Gemini
		requestBody string
		text        string
		err         error
	)

	captureBody := func(w http.ResponseWriter, r *http.Request) {
		b, readErr := io.ReadAll(r.Body)
		Expect(readErr).NotTo(HaveOccurred())
		requestBody = string(b)
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		requestBody = ""

		var newErr error
		gemini, newErr = NewGemini("test-key", "", server.URL()+"/")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		payload := &Payload{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, Width: 1, Height: 1}
		text, err = gemini.Generate(context.Background(), NewRequest(payload))
	})

	When("the service answers with text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", HaveSuffix("/models/"+DefaultGeminiModel+":generateContent")),
				captureBody,
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"candidates": []any{
						map[string]any{
							"content": map[string]any{
								"role":  "model",
								"parts": []any{map[string]any{"text": "  مرحبا  "}},
							},
							"finishReason": "STOP",
						},
					},
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the raw text", func() {
			Expect(text).To(Equal("  مرحبا  "))
		})

		It("should send the image inline as JPEG", func() {
			Expect(requestBody).To(ContainSubstring(`"inlineData"`))
			Expect(requestBody).To(ContainSubstring(`"mimeType":"image/jpeg"`))
		})

		It("should send temperature 0 and a zero thinking budget", func() {
			Expect(requestBody).To(ContainSubstring(`"temperature":0`))
			Expect(requestBody).To(ContainSubstring(`"thinkingBudget":0`))
		})

		It("should make a single request", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the service answers with no candidates", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"candidates": []any{},
			}))
		})

		It("should return an empty string without error", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
		})
	})

	When("the service rejects the request", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusBadRequest, map[string]any{
				"error": map[string]any{
					"code":    400,
					"message": "API key not valid",
					"status":  "INVALID_ARGUMENT",
				},
			}))
		})

		It("should return an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("NewGemini", func() {
	It("should require an api key", func() {
		_, err := NewGemini("", "", "")
		Expect(err).To(HaveOccurred())
	})

	It("should default the model name", func() {
		g, err := NewGemini("key", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Name()).To(Equal("gemini/" + DefaultGeminiModel))
	})
})
